package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"negofactory/internal/envelope"
	"negofactory/internal/llm"
	"negofactory/internal/nego"
	"negofactory/internal/promptctx"
	"negofactory/internal/workflow"
)

const argumentsNewPrompt = `You are a negotiation expert drafting buyer-side
arguments for an upcoming supplier negotiation. Ground every argument in the
objectives, targets and insights provided; respect the tone and the carrots
and sticks when present. Return JSON with up to five arguments:
{"message": "...", "argument1": "...", "argument2": "...", "argument3": "...",
"argument4": "...", "argument5": "..."}. Leave unused keys out.`

const argumentsModifyPrompt = `You are a negotiation expert revising existing
buyer-side arguments per the user's instruction. Keep the same number of
arguments and their order. Return JSON:
{"message": "...", "argument1": "...", "argument2": "...", "argument3": "...",
"argument4": "...", "argument5": "..."}. Leave unused keys out.`

const counterPrompt = `You are a negotiation expert. For each numbered buyer
argument below, anticipate the single strongest counter argument the supplier
is likely to raise. Return JSON: {"responses": "..."} where responses holds
one counter per argument, in order, separated by "|".`

const rebuttalPrompt = `You are a negotiation expert. For each numbered
supplier argument below, draft the buyer's reply, grounded in the objectives
and targets provided. Return JSON: {"responses": "..."} where responses holds
one reply per argument, in order, separated by "|".`

// Arguments handles the whole arguments family. The orchestrator has
// already narrowed generic intents; what arrives here is specific.
func (g *Generator) Arguments(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	intent := req.Intent
	if env := workflow.ArgumentPrereq(intent, argumentPins(req)); env != nil {
		return env, nil
	}

	switch intent {
	case workflow.IntentArguments:
		// Resolution failed to narrow; ask instead of guessing.
		return envelope.New("arguments", "What type of arguments would you like to create?",
			envelope.WithPrompts(workflow.SectionPrompts(workflow.SectionArgumentsName))), nil
	case workflow.IntentArgumentsReply:
		return envelope.New("arguments_reply", "Can you provide the arguments from supplier?"), nil
	}

	pctx, err := g.argumentContext(req, intent)
	if err != nil {
		return nil, err
	}

	switch intent {
	case workflow.IntentArgumentsNew:
		return g.newArguments(ctx, req, pctx)
	case workflow.IntentArgumentsModify:
		return g.modifyArguments(ctx, req, pctx)
	case workflow.IntentCounterArguments:
		return g.counterArguments(ctx, req, pctx)
	case workflow.IntentRebuttals:
		return g.rebuttals(ctx, req, pctx)
	case workflow.IntentRebuttalsModify:
		return g.modifyRebuttals(ctx, req, pctx)
	}
	return nil, fmt.Errorf("generate: unexpected argument intent %q", intent)
}

// argumentPins overlays the sections the prerequisite checks read.
func argumentPins(req *workflow.Request) *nego.PinnedElements {
	out := nego.PinnedElements{}
	if req.Pinned != nil {
		out = *req.Pinned
	}
	sel := req.Selected
	if sel == nil {
		return &out
	}
	if len(sel.Objectives) > 0 {
		out.Objectives = sel.Objectives
	}
	if len(sel.Arguments) > 0 {
		out.Arguments = sel.Arguments
	}
	if len(sel.CounterArguments) > 0 {
		out.CounterArguments = sel.CounterArguments
	}
	if len(sel.Rebuttals) > 0 {
		out.Rebuttals = sel.Rebuttals
	}
	return &out
}

func (g *Generator) argumentContext(req *workflow.Request, intent string) (*promptctx.Context, error) {
	return promptctx.Build(req.Pinned, req.Selected, nil, req.Category, workflow.ResponseType(intent), req.Round, promptctx.Options{})
}

func (g *Generator) newArguments(ctx context.Context, req *workflow.Request, pctx *promptctx.Context) (*envelope.Envelope, error) {
	input := g.argumentInput(ctx, req, pctx, nil)
	parts := g.generateArgumentTexts(ctx, argumentsNewPrompt, input, pctx)

	elements := make([]nego.Element, 0, len(parts))
	for i, text := range parts {
		elements = append(elements, nego.Element{
			ID:      elementID(i),
			Raw:     fmt.Sprintf("Argument %d", i+1),
			Details: text,
		})
	}
	env := envelope.New("arguments_new",
		fmt.Sprintf("Arguments generated for supplier %s", pctx.SupplierName),
		envelope.WithPrompts(workflow.ArgumentSectionPrompts(workflow.IntentArgumentsNew)))
	env.Arguments = elements
	return env, nil
}

func (g *Generator) modifyArguments(ctx context.Context, req *workflow.Request, pctx *promptctx.Context) (*envelope.Envelope, error) {
	previous := argumentPins(req).Arguments
	if len(previous) == 0 {
		return envelope.New("general",
			"There are no arguments pinned to modify. Please generate new arguments first.",
			envelope.WithPrompts([]nego.Prompt{{Prompt: "Generate new arguments", Intent: workflow.IntentArgumentsNew}})), nil
	}

	input := g.argumentInput(ctx, req, pctx, map[string]any{
		"existing_arguments": elementTexts(previous),
		"instruction":        req.UserQuery,
	})
	parts := g.generateArgumentTexts(ctx, argumentsModifyPrompt, input, pctx)

	elements := make([]nego.Element, 0, len(parts))
	for i, text := range parts {
		el := nego.Element{ID: elementID(i), Raw: fmt.Sprintf("Argument %d", i+1), Details: text}
		if i < len(previous) {
			el.ID = previous[i].ID
			el.Raw = previous[i].Raw
		}
		elements = append(elements, el)
	}
	env := envelope.New("arguments_modify",
		fmt.Sprintf("Arguments modified for supplier %s", pctx.SupplierName),
		envelope.WithPrompts(workflow.ArgumentSectionPrompts(workflow.IntentArgumentsModify)))
	env.Arguments = elements
	return env, nil
}

func (g *Generator) counterArguments(ctx context.Context, req *workflow.Request, pctx *promptctx.Context) (*envelope.Envelope, error) {
	sources := argumentPins(req).Arguments
	parts := g.generatePairedTexts(ctx, counterPrompt, req, pctx, sources,
		"The supplier would push back on this point.")

	env := envelope.New("counter_arguments",
		fmt.Sprintf("Counter arguments generated for supplier %s", pctx.SupplierName),
		envelope.WithPrompts(append(
			workflow.ArgumentSectionPrompts(workflow.IntentCounterArguments),
			nego.Prompt{Prompt: "Generate email to supplier", Intent: workflow.IntentEmails})))
	env.CounterArguments = pairElements(sources, parts, "Counter Argument")
	return env, nil
}

func (g *Generator) rebuttals(ctx context.Context, req *workflow.Request, pctx *promptctx.Context) (*envelope.Envelope, error) {
	sources := argumentPins(req).CounterArguments
	// A free-text turn carries the supplier's own argument to answer.
	if q := strings.TrimSpace(req.UserQuery); q != "" && !looksLikeCTA(q) {
		sources = append(sources, nego.Element{
			ID:      elementID(len(sources)),
			Raw:     "Supplier Argument",
			Details: q,
		})
	}
	if len(sources) == 0 {
		return envelope.New("arguments_reply", "Can you provide the arguments from supplier?"), nil
	}

	parts := g.generatePairedTexts(ctx, rebuttalPrompt, req, pctx, sources,
		"We will come back to this point with supporting data.")

	env := envelope.New("rebuttals",
		fmt.Sprintf("Reply to supplier argument for supplier %s", pctx.SupplierName),
		envelope.WithPrompts(append(
			workflow.ArgumentSectionPrompts(workflow.IntentArgumentsReply),
			nego.Prompt{Prompt: "Generate email to supplier", Intent: workflow.IntentEmails})))
	env.Rebuttals = pairElements(sources, parts, "Reply")
	return env, nil
}

func (g *Generator) modifyRebuttals(ctx context.Context, req *workflow.Request, pctx *promptctx.Context) (*envelope.Envelope, error) {
	previous := argumentPins(req).Rebuttals
	if len(previous) == 0 {
		return envelope.New("general",
			"There are no replies pinned to modify. Please reply to the supplier arguments first.",
			envelope.WithPrompts([]nego.Prompt{{Prompt: "Reply to supplier arguments", Intent: workflow.IntentArgumentsReply}})), nil
	}

	input := g.argumentInput(ctx, req, pctx, map[string]any{
		"existing_replies": elementTexts(previous),
		"instruction":      req.UserQuery,
	})
	parts := g.generateArgumentTexts(ctx, argumentsModifyPrompt, input, pctx)

	elements := make([]nego.Element, 0, len(parts))
	for i, text := range parts {
		el := nego.Element{ID: elementID(i), Raw: fmt.Sprintf("Reply %d", i+1), Details: text}
		if i < len(previous) {
			el = previous[i]
			el.Details = text
		}
		elements = append(elements, el)
	}
	env := envelope.New("rebuttals_modify",
		fmt.Sprintf("Reply to supplier argument modified for supplier %s", pctx.SupplierName),
		envelope.WithPrompts(workflow.ArgumentSectionPrompts(workflow.IntentArgumentsReply)))
	env.Rebuttals = elements
	return env, nil
}

// argumentInput assembles the structured generation payload: the turn
// context plus retrieved knowledge when a retriever is wired.
func (g *Generator) argumentInput(ctx context.Context, req *workflow.Request, pctx *promptctx.Context, extra map[string]any) map[string]any {
	input := map[string]any{
		"supplier":          pctx.SupplierName,
		"category":          pctx.Category,
		"round":             pctx.Round,
		"objectives":        objectiveTexts(pctx.Objectives),
		"targets":           pctx.Targets,
		"insights":          pctx.Insights,
		"sourcing_approach": pctx.SourcingApproach,
		"sku_context":       pctx.SKUContext,
		"carrots":           pctx.Carrots,
		"sticks":            pctx.Sticks,
	}
	if pctx.Tone != nil {
		input["tone"] = pctx.Tone.Title + ": " + pctx.Tone.Description
	}
	if docs, err := g.retriever.Retrieve(ctx, req.UserQuery, g.conversation(req), req.Category); err != nil {
		g.logger.Printf("generate: retrieve: %v", err)
	} else if len(docs) > 0 {
		input["knowledge"] = llm.RenderDocuments(docs)
	}
	for k, v := range extra {
		input[k] = v
	}
	return input
}

// generateArgumentTexts invokes the model and collects argument1..5 in
// order. Without a model, or on failure, one argument per objective
// target is derived deterministically.
func (g *Generator) generateArgumentTexts(ctx context.Context, prompt string, input map[string]any, pctx *promptctx.Context) []string {
	if g.model != nil {
		raw, err := g.model.GenerateJSON(ctx, prompt, input)
		if err != nil {
			g.logger.Printf("generate: arguments: %v", err)
		} else {
			obj := llm.ParseObject(raw)
			var parts []string
			for i := 1; i <= 5; i++ {
				if text := strings.TrimSpace(llm.Str(obj, fmt.Sprintf("argument%d", i))); text != "" {
					parts = append(parts, text)
				}
			}
			if len(parts) > 0 {
				return parts
			}
		}
	}
	var parts []string
	for _, o := range pctx.Objectives {
		line := fmt.Sprintf("We need to make progress on %s.", strings.ToLower(o.ObjectiveType))
		if o.Target != "" {
			line = fmt.Sprintf("Our data supports a target of %s %s for %s.", o.Target, o.Unit, strings.ToLower(o.ObjectiveType))
		}
		parts = append(parts, line)
		if len(parts) == 5 {
			break
		}
	}
	return parts
}

// generatePairedTexts invokes the model for per-source responses and
// splits them on "|". Short model output or no model degrades to the
// fallback line per source.
func (g *Generator) generatePairedTexts(ctx context.Context, prompt string, req *workflow.Request, pctx *promptctx.Context, sources []nego.Element, fallback string) []string {
	parts := make([]string, len(sources))
	for i := range parts {
		parts[i] = fallback
	}
	if g.model == nil || len(sources) == 0 {
		return parts
	}
	input := g.argumentInput(ctx, req, pctx, map[string]any{"numbered_arguments": elementTexts(sources)})
	raw, err := g.model.GenerateJSON(ctx, prompt, input)
	if err != nil {
		g.logger.Printf("generate: paired arguments: %v", err)
		return parts
	}
	split := strings.Split(llm.Str(llm.ParseObject(raw), "responses"), "|")
	for i := range parts {
		if i < len(split) && strings.TrimSpace(split[i]) != "" {
			parts[i] = strings.TrimSpace(split[i])
		}
	}
	return parts
}

// pairElements ties each generated response back to its source element.
func pairElements(sources []nego.Element, parts []string, label string) []nego.Element {
	out := make([]nego.Element, 0, len(sources))
	for i, src := range sources {
		detail := ""
		if i < len(parts) {
			detail = parts[i]
		}
		out = append(out, nego.Element{
			ID:               elementID(i),
			Raw:              fmt.Sprintf("%s %d", label, i+1),
			Details:          detail,
			ReferenceID:      src.ID,
			ReferenceRaw:     src.Raw,
			ReferenceDetails: src.Details,
		})
	}
	return out
}

func elementTexts(elements []nego.Element) []string {
	out := make([]string, 0, len(elements))
	for i, el := range elements {
		out = append(out, fmt.Sprintf("%d. %s", i+1, el.Details))
	}
	return out
}

func objectiveTexts(objectives []nego.Objective) []string {
	out := make([]string, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, o.Objective)
	}
	return out
}

// looksLikeCTA spots a query that is a button click rather than pasted
// supplier content.
func looksLikeCTA(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, cta := range []string{
		"reply to supplier arguments",
		"generate negotiation counter arguments",
		"generate new arguments",
		"modify reply to supplier arguments",
	} {
		if q == cta {
			return true
		}
	}
	return false
}

func elementID(i int) string {
	return fmt.Sprintf("%d", time.Now().UnixMilli()+int64(i))
}

func (g *Generator) conversation(req *workflow.Request) string {
	msgs := make([]llm.Message, 0, len(req.History))
	for _, t := range req.History {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return llm.RenderConversation(msgs, g.cfg.ConversationWindow)
}
