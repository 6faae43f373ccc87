package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negofactory/internal/envelope"
	"negofactory/internal/history"
	"negofactory/internal/nego"
)

func TestProbableIntentFollowsPreviousResponse(t *testing.T) {
	assert.Equal(t, IntentRebuttals, ProbableIntent("arguments_reply"))
	assert.Equal(t, IntentEmails, ProbableIntent("negotiation_emails_new"))
	assert.Empty(t, ProbableIntent("insights"))
}

func TestResolveArgumentIntentFromHistory(t *testing.T) {
	turns := []history.Turn{
		{Role: "model", ResponseType: "insights"},
		{Role: "model", ResponseType: "arguments_new"},
		{Role: "model", ResponseType: "arguments_modify"},
	}
	got := ResolveArgumentIntent(IntentArguments, "", turns, 80)
	assert.Equal(t, IntentArgumentsModify, got)

	turns = []history.Turn{{Role: "model", ResponseType: "arguments_reply"}}
	assert.Equal(t, IntentRebuttals, ResolveArgumentIntent(IntentArguments, "", turns, 80))
}

func TestResolveArgumentIntentFallsBackToFuzzyCTA(t *testing.T) {
	got := ResolveArgumentIntent(IntentArguments, "please modify the arguments", nil, 80)
	assert.Equal(t, IntentArgumentsModify, got)

	// Below threshold defaults to new arguments.
	got = ResolveArgumentIntent(IntentArguments, "xyzzy", nil, 99)
	assert.Equal(t, IntentArgumentsNew, got)

	// Specific intents pass through untouched.
	got = ResolveArgumentIntent(IntentArgumentsReply, "anything", nil, 80)
	assert.Equal(t, IntentArgumentsReply, got)
}

func TestWorkflowPromptsSuggestNextUnfilledStep(t *testing.T) {
	pinned := &nego.PinnedElements{
		SupplierProfile: &nego.SupplierProfile{SupplierName: "Acme"},
		SKUs:            []nego.SKU{{ID: "1"}},
		Insights:        []nego.Insight{{ID: "I1"}},
	}
	prompts := WorkflowPrompts(pinned, WorkflowOptions{})
	require.NotEmpty(t, prompts)
	assert.Equal(t, "Set negotiation objectives", prompts[0].Prompt)
	assert.Equal(t, IntentObjective, prompts[0].Intent)
}

func TestWorkflowPromptsGateOnSupplierProfile(t *testing.T) {
	assert.Empty(t, WorkflowPrompts(&nego.PinnedElements{}, WorkflowOptions{}))
	assert.NotEmpty(t, WorkflowPrompts(&nego.PinnedElements{}, WorkflowOptions{SkipProfileCheck: true}))
}

func TestWorkflowPromptsEmailStepCarriesReplyVariant(t *testing.T) {
	pinned := &nego.PinnedElements{
		SupplierProfile:  &nego.SupplierProfile{SupplierName: "Acme"},
		SKUs:             []nego.SKU{{ID: "1"}},
		Insights:         []nego.Insight{{ID: "I1"}},
		Objectives:       []nego.Objective{{ID: "O1"}},
		Arguments:        []nego.Element{{ID: "A1"}},
		CounterArguments: []nego.Element{{ID: "C1"}},
		Rebuttals:        []nego.Element{{ID: "R1"}},
	}
	prompts := WorkflowPrompts(pinned, WorkflowOptions{})
	require.Len(t, prompts, 2)
	assert.Equal(t, "Generate email to supplier", prompts[0].Prompt)
	assert.Equal(t, IntentEmailsReply, prompts[1].Intent)
}

func TestApproachPromptsStripSatisfiedPairs(t *testing.T) {
	pinned := &nego.PinnedElements{
		CategoryPositioning: &nego.ValueDetail{Value: "Leverage"},
	}
	prompts := ApproachPrompts(IntentApproachCP, pinned, "")
	texts := make([]string, 0, len(prompts))
	for _, p := range prompts {
		texts = append(texts, p.Prompt)
	}
	assert.NotContains(t, texts, "Set category positioning")
	// Supplier positioning is unpinned, so its Change variant is stale.
	assert.NotContains(t, texts, "Change supplier positioning")
	assert.Contains(t, texts, "Set supplier positioning")
	// Sourcing approach not pinned: the per-methodology changes are stale.
	assert.NotContains(t, texts, "Change market approach")
}

func TestApproachPromptsChangeSourcingShortCircuit(t *testing.T) {
	prompts := ApproachPrompts(IntentStrategyChange, &nego.PinnedElements{}, "Change to RFP")
	for _, p := range prompts {
		assert.NotContains(t, p.Prompt, "positioning")
		assert.NotContains(t, p.Prompt, "sourcing approach")
	}
}

func TestArgumentPrereqRequiresObjectives(t *testing.T) {
	env := ArgumentPrereq(IntentArgumentsNew, &nego.PinnedElements{})
	require.NotNil(t, env)
	assert.Equal(t, "general", env.ResponseType)
	assert.Contains(t, env.Message, "pinned/selected")
	require.NotEmpty(t, env.SuggestedPrompts)
	assert.Equal(t, "Set negotiation objectives", env.SuggestedPrompts[0].Prompt)
	for _, p := range env.SuggestedPrompts {
		assert.NotEqual(t, "Generate new arguments", p.Prompt)
	}

	pinned := &nego.PinnedElements{Objectives: []nego.Objective{{ID: "O1"}}}
	assert.Nil(t, ArgumentPrereq(IntentArgumentsNew, pinned))
}

func TestCounterArgumentsRequireArguments(t *testing.T) {
	pinned := &nego.PinnedElements{Objectives: []nego.Objective{{ID: "O1"}}}
	env := ArgumentPrereq(IntentCounterArguments, pinned)
	require.NotNil(t, env)
	assert.Contains(t, env.Message, "counter arguments")

	pinned.Arguments = []nego.Element{{ID: "A1"}}
	assert.Nil(t, ArgumentPrereq(IntentCounterArguments, pinned))
}

func TestTonePrereqNamesTheMissingPositioning(t *testing.T) {
	env := TonePrereq(&nego.PinnedElements{})
	require.NotNil(t, env)
	assert.Contains(t, env.Message, "supplier positioning and buyer positioning")

	pinned := &nego.PinnedElements{SupplierPositioning: &nego.ValueDetail{Value: "Core"}}
	env = TonePrereq(pinned)
	require.NotNil(t, env)
	assert.Contains(t, env.Message, "buyer positioning")
	require.Len(t, env.SuggestedPrompts, 1)
	assert.Equal(t, IntentApproachBP, env.SuggestedPrompts[0].Intent)

	pinned.BuyerAttractiveness = &nego.ValueDetail{Value: "strategic"}
	assert.Nil(t, TonePrereq(pinned))
}

func TestOfferPrereqBlocksChatEntry(t *testing.T) {
	env := OfferPrereq(false, &nego.PinnedElements{Objectives: []nego.Objective{{ID: "O1"}}})
	require.NotNil(t, env)
	assert.Contains(t, env.Message, "navigation section")

	env = OfferPrereq(true, &nego.PinnedElements{})
	require.NotNil(t, env)
	assert.Contains(t, env.Message, "latest offer")

	assert.Nil(t, OfferPrereq(true, &nego.PinnedElements{Objectives: []nego.Objective{{ID: "O1"}}}))
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *history.Store) {
	t.Helper()
	store, err := history.NewFromDB(nil, 16, nil)
	require.NoError(t, err)
	return NewOrchestrator(Options{History: store}), store
}

func TestTurnDispatchesAndRecordsHistory(t *testing.T) {
	o, store := newTestOrchestrator(t)
	o.Register(IntentInsights, func(context.Context, *Request) (*envelope.Envelope, error) {
		return envelope.New("insights", "done"), nil
	})

	env := o.Turn(context.Background(), &Request{ChatID: "chat-1", Intent: IntentInsights, UserQuery: "show insights"})
	require.Equal(t, "insights", env.ResponseType)

	turns, err := store.Window(context.Background(), "chat-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "insights", turns[1].ResponseType)
}

func TestTurnSupplierNameRewrite(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	var got *Request
	o.Register(IntentSelectSKUs, func(_ context.Context, req *Request) (*envelope.Envelope, error) {
		got = req
		return envelope.New("select_skus", "ok"), nil
	})

	o.Turn(context.Background(), &Request{
		ChatID:    "chat-2",
		Intent:    "supplier_name|negotiation_select_skus",
		UserQuery: "Acme Bearings",
	})
	require.NotNil(t, got)
	assert.Equal(t, "Acme Bearings", got.Pinned.SupplierName)
	assert.Equal(t, IntentSelectSKUs, got.Intent)
}

func TestTurnShapesUserErrorsWithPreviousPrompts(t *testing.T) {
	o, store := newTestOrchestrator(t)
	previous := envelope.New("supplier_details", "pick one", envelope.WithPrompts([]nego.Prompt{
		{Prompt: "Acme Bearings", Intent: "supplier_name"},
	}))
	payload, err := jsonMarshal(previous)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "chat-3", history.Turn{
		Role: "model", Content: payload, ResponseType: "supplier_details",
	}))

	o.Register(IntentInsights, func(context.Context, *Request) (*envelope.Envelope, error) {
		return nil, nego.Userf("No active negotiation objectives found. Please set negotiation objectives before proceeding.")
	})
	env := o.Turn(context.Background(), &Request{ChatID: "chat-3", Intent: IntentInsights})
	assert.Equal(t, "general", env.ResponseType)
	assert.Contains(t, env.Message, "negotiation objectives")
	require.Len(t, env.SuggestedPrompts, 1)
	assert.Equal(t, "supplier_name|"+IntentInsights, env.SuggestedPrompts[0].Intent)
}

func TestTurnShapesUnexpectedErrorsAsException(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Register(IntentInsights, func(context.Context, *Request) (*envelope.Envelope, error) {
		return nil, errors.New("warehouse unreachable")
	})
	env := o.Turn(context.Background(), &Request{ChatID: "chat-4", Intent: IntentInsights})
	assert.Equal(t, "exception", env.ResponseType)
}

func TestTurnClearChat(t *testing.T) {
	o, store := newTestOrchestrator(t)
	require.NoError(t, store.Append(context.Background(), "chat-5", history.Turn{Role: "user", Content: "hi"}))

	env := o.Turn(context.Background(), &Request{ChatID: "chat-5", Intent: IntentClearChat})
	assert.Equal(t, "clear_chat_success", env.ResponseType)
	assert.Contains(t, env.Message, "chat-5")

	turns, err := store.Window(context.Background(), "chat-5", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestTurnGenericArgumentsRouteThroughResolver(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	var resolved string
	o.Register(IntentArguments, func(_ context.Context, req *Request) (*envelope.Envelope, error) {
		resolved = req.Intent
		return envelope.New(ResponseType(req.Intent), "ok"), nil
	})
	o.Turn(context.Background(), &Request{ChatID: "chat-6", Intent: IntentArguments, UserQuery: "generate new arguments"})
	assert.Equal(t, IntentArgumentsNew, resolved)
}

func jsonMarshal(env *envelope.Envelope) (string, error) {
	b, err := json.Marshal(env)
	return string(b), err
}
