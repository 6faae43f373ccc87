package generate

import (
	"context"
	"fmt"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/llm"
	"negofactory/internal/nego"
	"negofactory/internal/workflow"
)

// Offer records that the latest supplier offer was saved and proposes
// the next round or finishing. The offer values themselves ride on the
// pinned objectives.
func (g *Generator) Offer(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	fromCTA := req.BeforeUpdateRequestType == workflow.IntentOffer
	if env := workflow.OfferPrereq(fromCTA, argumentPins(req)); env != nil {
		return env, nil
	}
	return envelope.New("negotiation_offer",
		"**Offer Added**\nLatest offer added and progress towards objectives updated\n\nHow would you like to proceed?",
		envelope.WithPrompts([]nego.Prompt{
			{Prompt: "Start new round", Intent: workflow.IntentArguments},
			{Prompt: "Finish negotiation", Intent: workflow.IntentFinished},
		})), nil
}

// Finish closes the negotiation once at least one objective carries a
// latest offer, and hands over to the awarding section.
func (g *Generator) Finish(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	pins := argumentPins(req)
	if env := workflow.FinishPrereq(pins); env != nil {
		return env, nil
	}
	hasOffer := false
	for _, o := range pins.Objectives {
		if strings.TrimSpace(o.CurrentOffer) != "" {
			hasOffer = true
			break
		}
	}
	if !hasOffer {
		return envelope.New("general",
			"To effectively finish the negotiation, it's imperative to have objective and latest offer to be pinned/selected.\n"+
				"Please take necessary actions to proceed further."), nil
	}

	if g.exporter != nil {
		if key, err := g.exporter.Gameplan(ctx, req.TenantID, req.ChatID, req.Pinned); err != nil {
			g.logger.Printf("generate: export gameplan: %v", err)
		} else {
			g.logger.Printf("generate: gameplan exported to %s", key)
		}
	}

	return envelope.New("negotiation_finished",
		"Well done!!!.\nYou successfully finished the negotiation, \nlets redirect you to awarding section for negotiation summary email."), nil
}

const answerPrompt = `You answer procurement questions inside a negotiation
workspace. Use only the conversation, the supplier context and the knowledge
provided. When asked about money, use the stated currency. If the answer is
not supported by the context, say you cannot answer. Reply in plain text.`

const answerFailure = "We were unable to answer this question. Can you rephrase the question or be more specific?"

// UserAnswers is the fallback for free-text questions outside the
// workflow intents.
func (g *Generator) UserAnswers(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	if g.model == nil {
		return envelope.New("user_questions", answerFailure), nil
	}

	var b strings.Builder
	if conv := g.conversation(req); conv != "" {
		b.WriteString("Conversation so far:\n" + conv + "\n\n")
	}
	if supplier := req.SupplierName(); supplier != "" {
		fmt.Fprintf(&b, "Supplier in scope: %s\n", supplier)
	}
	fmt.Fprintf(&b, "Category: %s\nCurrency: %s\n", req.Category, req.Currency)
	if docs, err := g.retriever.Retrieve(ctx, req.UserQuery, g.conversation(req), req.Category); err != nil {
		g.logger.Printf("generate: retrieve: %v", err)
	} else if len(docs) > 0 {
		b.WriteString("\nKnowledge:\n" + llm.RenderDocuments(docs) + "\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s", req.UserQuery)

	answer, err := g.model.GenerateText(ctx, answerPrompt, b.String())
	if err != nil {
		g.logger.Printf("generate: user answer: %v", err)
		return envelope.New("user_questions", answerFailure), nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = answerFailure
	}
	return envelope.New("user_questions", answer), nil
}
