// Package workflow is the negotiation state machine: it classifies the
// turn's intent, checks prerequisites against the pinned state,
// dispatches to the artifact generator and shapes errors into uniform
// corrective responses.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/history"
	"negofactory/internal/llm"
	"negofactory/internal/nego"
	"negofactory/internal/refdata"
)

// Handler produces the artifact for one intent.
type Handler func(ctx context.Context, req *Request) (*envelope.Envelope, error)

// Orchestrator routes turns to handlers and owns the cross-cutting
// turn mechanics: history, intent resolution and error shaping.
type Orchestrator struct {
	handlers   map[string]Handler
	fallback   Handler
	history    *history.Store
	classifier llm.Client
	logger     *log.Logger

	window       int
	ctaThreshold int
}

type Options struct {
	History      *history.Store
	Classifier   llm.Client
	Logger       *log.Logger
	Window       int
	CTAThreshold int
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Window <= 0 {
		opts.Window = 6
	}
	if opts.CTAThreshold <= 0 {
		opts.CTAThreshold = 80
	}
	return &Orchestrator{
		handlers:     map[string]Handler{},
		history:      opts.History,
		classifier:   opts.Classifier,
		logger:       opts.Logger,
		window:       opts.Window,
		ctaThreshold: opts.CTAThreshold,
	}
}

// Register binds a handler to an intent. The last registration wins.
func (o *Orchestrator) Register(intent string, h Handler) {
	o.handlers[intent] = h
}

// RegisterFallback binds the handler for intents outside the map,
// typically free-text question answering.
func (o *Orchestrator) RegisterFallback(h Handler) {
	o.fallback = h
}

// Turn runs one user turn end to end. The returned envelope is always
// non-nil; hard failures are shaped into exception responses.
func (o *Orchestrator) Turn(ctx context.Context, req *Request) *envelope.Envelope {
	req.ApplyDefaults()

	if req.Reference == nil && len(req.RawReferenceData) > 0 {
		ref, err := refdata.Parse(req.RawReferenceData)
		if err != nil {
			o.logger.Printf("workflow: reference data for chat %s: %v", req.ChatID, err)
		}
		req.Reference = ref
	}
	if req.History == nil {
		turns, err := o.history.Window(ctx, req.ChatID, o.window)
		if err != nil {
			o.logger.Printf("workflow: history for chat %s: %v", req.ChatID, err)
		}
		req.History = turns
	}

	// A turn may carry the supplier name as its query under a
	// "supplier_name|<next>" request type.
	if strings.HasPrefix(req.Intent, "supplier_name") {
		req.Pinned.SupplierName = strings.TrimSpace(req.UserQuery)
		if _, next, ok := strings.Cut(req.Intent, "|"); ok && next != "" {
			req.Intent = next
		} else {
			req.Intent = IntentBegin
		}
	}
	if req.BeforeUpdateRequestType == "" {
		req.BeforeUpdateRequestType = req.Intent
	}

	if req.Intent == "" {
		req.Intent = o.classifyIntent(ctx, req)
	}

	if req.Intent == IntentClearChat {
		return o.clearChat(ctx, req)
	}

	env, err := o.dispatch(ctx, req)
	if err != nil {
		env = o.shapeError(req, err)
	}
	o.record(ctx, req, env)
	return env
}

func (o *Orchestrator) dispatch(ctx context.Context, req *Request) (*envelope.Envelope, error) {
	intent := req.Intent
	switch {
	case strings.HasPrefix(intent, "negotiation_emails"):
		intent = IntentEmails
	case strings.HasPrefix(intent, "negotiation_arguments"),
		strings.HasPrefix(intent, "negotiation_counter_arguments"),
		strings.HasPrefix(intent, "negotiation_rebuttals"):
		req.Intent = ResolveArgumentIntent(req.Intent, req.UserQuery, req.History, o.ctaThreshold)
		intent = IntentArguments
	}

	if h, ok := o.handlers[intent]; ok {
		return h(ctx, req)
	}
	if o.fallback != nil {
		return o.fallback(ctx, req)
	}
	return nil, fmt.Errorf("workflow: no handler for intent %q", req.Intent)
}

const intentPrompt = `You classify one procurement-negotiation chat turn into an intent.
Valid intents: begin, select_skus, insights, objective, approach_cp, approach_sp,
approach_bp, approach_tnt, select_carrot_sticks, strategy, strategy_change,
arguments, counter_arguments, rebuttals, emails, summary_email, offer, finished,
user_questions. Answer with the single intent token, nothing else.`

// classifyIntent resolves an untyped turn: previous-response heuristics
// first, then the model, then free-text question answering.
func (o *Orchestrator) classifyIntent(ctx context.Context, req *Request) string {
	if intent := ProbableIntent(req.LastResponseType()); intent != "" {
		return intent
	}
	if o.classifier == nil {
		return IntentUserQuestions
	}
	input := llm.RenderConversation(historyMessages(req.History), o.window) + "\nuser: " + req.UserQuery
	raw, err := o.classifier.GenerateText(ctx, intentPrompt, input)
	if err != nil {
		o.logger.Printf("workflow: intent classifier: %v", err)
		return IntentUserQuestions
	}
	token := strings.Trim(strings.TrimSpace(raw), `"`)
	if token == "" {
		return IntentUserQuestions
	}
	if !strings.HasPrefix(token, "negotiation_") && token != IntentClearChat {
		token = "negotiation_" + token
	}
	return token
}

func historyMessages(turns []history.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

func (o *Orchestrator) clearChat(ctx context.Context, req *Request) *envelope.Envelope {
	if err := o.history.Clear(ctx, req.ChatID); err != nil {
		o.logger.Printf("workflow: clear chat %s: %v", req.ChatID, err)
		return envelope.New("exception", "Apologies, we could not process your request at this time. Please try again.")
	}
	return envelope.New("clear_chat_success",
		fmt.Sprintf("chat history successfully deleted for negotiation id: %s", req.ChatID))
}

// shapeError turns a failure into the uniform corrective response: user
// errors keep their message, everything else degrades to a generic
// exception. Both reuse the previous turn's prompts so the user can
// continue.
func (o *Orchestrator) shapeError(req *Request, err error) *envelope.Envelope {
	prompts := o.previousPrompts(req.History)
	if userErr, ok := nego.AsUserError(err); ok {
		for i := range prompts {
			if prompts[i].Intent == "supplier_name" && req.Intent != "" {
				prompts[i].Intent = "supplier_name|" + req.Intent
			}
		}
		return envelope.New("general", userErr.Message, envelope.WithPrompts(prompts))
	}
	o.logger.Printf("workflow: turn failed for chat %s intent %s: %v", req.ChatID, req.Intent, err)
	return envelope.New("exception", err.Error(), envelope.WithPrompts(prompts))
}

// previousPrompts recovers the suggested prompts of the last model turn.
func (o *Orchestrator) previousPrompts(turns []history.Turn) []nego.Prompt {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			continue
		}
		var env envelope.Envelope
		if err := json.Unmarshal([]byte(turns[i].Content), &env); err != nil {
			continue
		}
		if len(env.SuggestedPrompts) > 0 {
			return env.SuggestedPrompts
		}
	}
	return nil
}

// record appends the turn's request and response to the chat history.
func (o *Orchestrator) record(ctx context.Context, req *Request, env *envelope.Envelope) {
	if req.ChatID == "" {
		return
	}
	if err := o.history.Append(ctx, req.ChatID, history.Turn{Role: "user", Content: req.UserQuery}); err != nil {
		o.logger.Printf("workflow: record user turn for %s: %v", req.ChatID, err)
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		o.logger.Printf("workflow: marshal response for %s: %v", req.ChatID, err)
		return
	}
	if err := o.history.Append(ctx, req.ChatID, history.Turn{
		Role:         "model",
		Content:      string(payload),
		ResponseType: env.ResponseType,
	}); err != nil {
		o.logger.Printf("workflow: record model turn for %s: %v", req.ChatID, err)
	}
}
