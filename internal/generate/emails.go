package generate

import (
	"context"
	"fmt"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/llm"
	"negofactory/internal/nego"
	"negofactory/internal/promptctx"
	"negofactory/internal/workflow"
)

const emailPrompt = `You are writing a professional negotiation email from the
buyer to the supplier. Ground it in the objectives, targets and insights
provided; respect the tone and the sourcing approach when present. Include a
subject line. Return JSON: {"email": "..."}.`

const emailReplyPrompt = `You are writing the buyer's reply to the supplier
email below. Hold the line on the objectives and targets provided and keep a
professional tone. Include a subject line. Return JSON: {"email": "..."}.`

const emailModifyPrompt = `You are revising the buyer's negotiation email per
the user's instruction. Keep the same thread and subject. Return JSON:
{"email": "..."}.`

// Emails manages the email threads: new thread, reply to a supplier
// email, and modification of the latest draft.
func (g *Generator) Emails(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	intent := req.Intent

	if intent == workflow.IntentEmailsReply && emailCTA(req.UserQuery) {
		return envelope.New("emails_reply_to_supplier", "Can you provide the email from supplier?"), nil
	}

	pctx, err := promptctx.Build(req.Pinned, req.Selected, nil, req.Category, workflow.ResponseType(intent), req.Round, promptctx.Options{})
	if err != nil {
		return nil, err
	}

	threads := append([]nego.Email(nil), req.Pinned.Emails...)
	if req.Selected != nil && len(req.Selected.Emails) > 0 {
		threads = append([]nego.Email(nil), req.Selected.Emails...)
	}

	switch {
	case intent == workflow.IntentEmailsReply:
		body := g.generateEmail(ctx, req, pctx, emailReplyPrompt, map[string]any{"supplier_email": req.UserQuery})
		threads = appendChild(threads, nego.Email{Details: body, Type: "reply_to_supplier"})
		return g.emailEnvelope(req, pctx, threads, "emails_reply_to_supplier",
			fmt.Sprintf("Reply to supplier email generated for supplier %s", pctx.SupplierName)), nil

	case strings.Contains(intent, "modify"):
		if len(threads) == 0 {
			return envelope.New("general",
				"There is no email to modify. Please generate an email to the supplier first.",
				envelope.WithPrompts([]nego.Prompt{{Prompt: "Generate email to supplier", Intent: workflow.IntentEmails}})), nil
		}
		body := g.generateEmail(ctx, req, pctx, emailModifyPrompt, map[string]any{
			"existing_email": latestEmailBody(threads),
			"instruction":    req.UserQuery,
		})
		threads = replaceLatest(threads, body)
		return g.emailEnvelope(req, pctx, threads, "emails_modify",
			fmt.Sprintf("Email modified for supplier %s", pctx.SupplierName)), nil

	default:
		body := g.generateEmail(ctx, req, pctx, emailPrompt, nil)
		threads = append(threads, nego.Email{
			ID:      fmt.Sprintf("EM_%d", len(threads)+1),
			Details: body,
			Type:    "new",
		})
		return g.emailEnvelope(req, pctx, threads, "emails_new",
			fmt.Sprintf("Email generated for supplier %s", pctx.SupplierName)), nil
	}
}

// SummaryEmail drafts the negotiation summary for the awarding section.
// Chat-driven turns are redirected there.
func (g *Generator) SummaryEmail(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	if req.BeforeUpdateRequestType != workflow.IntentSummaryEmail {
		return envelope.New("general",
			"`Generate Summary Email` feature is accessible through awarding section."), nil
	}

	pctx, err := promptctx.Build(req.Pinned, req.Selected, nil, req.Category, workflow.ResponseType(req.Intent), req.Round, promptctx.Options{AllObjectives: true})
	if err != nil {
		return nil, err
	}

	body := g.generateEmail(ctx, req, pctx, emailPrompt, map[string]any{
		"purpose": "Summarise the finished negotiation: the objectives, the agreed outcomes and the latest offers, as a wrap-up email to the supplier.",
	})
	emails := []nego.Email{{ID: "EM_1", Details: body, Type: "summary"}}

	if g.exporter != nil {
		if key, err := g.exporter.Gameplan(ctx, req.TenantID, req.ChatID, req.Pinned); err != nil {
			g.logger.Printf("generate: export gameplan: %v", err)
		} else {
			g.logger.Printf("generate: gameplan exported to %s", key)
		}
	}

	env := envelope.New("negotiation_summary_email",
		fmt.Sprintf("Summary email generated for supplier %s", pctx.SupplierName))
	env.Emails = emails
	return env, nil
}

func (g *Generator) emailEnvelope(req *workflow.Request, pctx *promptctx.Context, threads []nego.Email, responseType, message string) *envelope.Envelope {
	env := envelope.New(responseType, message,
		envelope.WithPrompts([]nego.Prompt{
			{Prompt: "Modify email", Intent: workflow.IntentEmails + "_modify"},
			{Prompt: "Reply to supplier email", Intent: workflow.IntentEmailsReply},
		}))
	env.Emails = threads
	return env
}

// generateEmail renders the email body, falling back to a deterministic
// draft from the objectives when no model is wired.
func (g *Generator) generateEmail(ctx context.Context, req *workflow.Request, pctx *promptctx.Context, prompt string, extra map[string]any) string {
	input := g.argumentInput(ctx, req, pctx, extra)
	if g.model != nil {
		raw, err := g.model.GenerateJSON(ctx, prompt, input)
		if err != nil {
			g.logger.Printf("generate: email: %v", err)
		} else if body := strings.TrimSpace(llm.Str(llm.ParseObject(raw), "email")); body != "" {
			return body
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s negotiation - next steps\n\nDear %s team,\n\n", pctx.Category, pctx.SupplierName)
	b.WriteString("Following our ongoing negotiation, we would like to align on the points below:\n")
	for _, o := range pctx.Objectives {
		fmt.Fprintf(&b, "- %s\n", o.Objective)
	}
	b.WriteString("\nWe look forward to your response.\n\nBest regards")
	return b.String()
}

// appendChild attaches a reply to the most recent thread, creating a
// thread when none exists.
func appendChild(threads []nego.Email, child nego.Email) []nego.Email {
	if len(threads) == 0 {
		child.ID = "EM_1"
		return []nego.Email{child}
	}
	last := len(threads) - 1
	child.ID = fmt.Sprintf("%s_%d", threads[last].ID, len(threads[last].Children)+1)
	threads[last].Children = append(threads[last].Children, child)
	return threads
}

// replaceLatest rewrites the most recent draft in place: the last child
// of the last thread, or the thread root when it has no children.
func replaceLatest(threads []nego.Email, body string) []nego.Email {
	last := len(threads) - 1
	if n := len(threads[last].Children); n > 0 {
		threads[last].Children[n-1].Details = body
	} else {
		threads[last].Details = body
	}
	return threads
}

func latestEmailBody(threads []nego.Email) string {
	last := threads[len(threads)-1]
	if n := len(last.Children); n > 0 {
		return last.Children[n-1].Details
	}
	return last.Details
}

// emailCTA spots the reply button click, which carries no supplier
// content yet.
func emailCTA(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return q == "" || q == "reply to supplier email"
}
