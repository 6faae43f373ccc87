package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negofactory/internal/config"
	"negofactory/internal/insights"
	"negofactory/internal/nego"
	"negofactory/internal/profile"
	"negofactory/internal/refdata"
	"negofactory/internal/warehouse"
	"negofactory/internal/workflow"
)

// fakeReader serves canned tables keyed by a substring of the query.
type fakeReader struct {
	tables map[string]*warehouse.Table
}

func (f *fakeReader) Query(_ context.Context, query string, _ ...any) (*warehouse.Table, error) {
	for key, tbl := range f.tables {
		if strings.Contains(query, key) {
			return tbl, nil
		}
	}
	return warehouse.NewTable(nil, nil), nil
}

func (f *fakeReader) Select(ctx context.Context, spec warehouse.Spec) (*warehouse.Table, error) {
	return f.Query(ctx, spec.Table)
}

func (f *fakeReader) VectorSearch(context.Context, warehouse.VectorSpec, []float64, int) ([]warehouse.Document, error) {
	return nil, nil
}

func (f *fakeReader) TableNames(context.Context, string) (map[string]struct{}, error) {
	return nil, nil
}

func (f *fakeReader) ColumnNames(context.Context, string, string, []string) ([]string, error) {
	return nil, nil
}

func dimensionTable() *warehouse.Table {
	cols := []string{
		"SUPPLIER", "CATEGORY", "YEAR", "SPEND_YTD", "SPEND_LAST_YEAR",
		"SINGLE_SOURCE_SPEND_YTD", "SPEND_NO_PO_YTD",
		"PERCENTAGE_SPEND_ACROSS_CATEGORY_YTD", "NUMBER_OF_SUPPLIER_IN_CATEGORY",
		"PAYMENT_TERM_AVG", "SKU_LIST", "SUPPLIER_RELATIONSHIP", "CURRENCY_SYMBOL",
	}
	return warehouse.NewTable(cols, [][]any{
		{"Acme Bearings", "Bearings", 2025, 600.0, 500.0, 100.0, 60.0, 30.0, 4, 31.0, `["SKU-1"]`, "Preferred", "EUR"},
		{"Apex Industrial", "Bearings", 2025, 200.0, 150.0, 0.0, 10.0, 10.0, 4, 45.0, `["SKU-9"]`, "", "USD"},
	})
}

func skuDetailTable() *warehouse.Table {
	cols := []string{"SUPPLIER_NAME", "CATEGORY", "YEAR", "SKU_ID", "SKU_NAME", "UNIT_PRICE", "QUANTITY", "UOM", "SPEND", "REPORTING_CURRENCY"}
	return warehouse.NewTable(cols, [][]any{
		{"Acme Bearings", "Bearings", 2025, "S1", "Deep groove 6204", 10.0, 2.0, "EA", 20.0, "USD"},
		{"Acme Bearings", "Bearings", 2025, "S1", "Deep groove 6204", 20.0, 6.0, "EA", 120.0, "USD"},
	})
}

func insightsMasterTable() *warehouse.Table {
	cols := []string{"SUPPLIER", "CATEGORY", "YEAR", "ANALYTICS", "RESPONSE"}
	return warehouse.NewTable(cols, [][]any{
		{"Acme Bearings", "Bearings", 2025, "Spend", `["Spend grew 20% year over year"]`},
	})
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	reader := &fakeReader{tables: map[string]*warehouse.Table{
		"NEGO_SUPPLIER_MASTER":        dimensionTable(),
		"T_C_NEGOTIATION_FACTORY_T2":  skuDetailTable(),
		"NEGOTIATION_INSIGHTS_MASTER": insightsMasterTable(),
	}}
	profiles, err := profile.New(reader, nil, 20, 10)
	require.NoError(t, err)
	return New(Deps{
		Reader:    reader,
		Profiles:  profiles,
		Extractor: insights.New(reader, nil, nil),
		Config:    config.ModelConfig{ConversationWindow: 6},
	})
}

func referenceData() *refdata.Data {
	return &refdata.Data{
		References: []refdata.Reference{
			{Type: "carrot", Title: "Volume growth", Parameter: "volume", Value: "+10%"},
			{Type: "stick", Title: "Dual sourcing", Parameter: "share", Value: "-30%"},
		},
		Strategy: []refdata.StrategyRow{{
			Category:               "Bearings",
			PricingMethodology:     []string{"Fixed price", "Index based"},
			ContractingMethodology: []string{"Framework agreement"},
			AuctionPotential:       "High",
			MarketComplexity:       "Low",
		}},
		MarketMap: []refdata.MarketOption{
			{MarketApproach: "RFP", Details: "Run a structured RFP", Incumbency: 2,
				CategoryPositioning: []string{"Shop", "Leverage"}, SupplierRelationship: []string{"Preferred"}, AuctionPotential: "High"},
			{MarketApproach: "Auction", Details: "Run a reverse auction", Incumbency: 3,
				CategoryPositioning: []string{"Shop"}, SupplierRelationship: []string{"Preferred"}, AuctionPotential: "High"},
		},
		Tones: []refdata.ToneRow{{
			SupplierPositioning: "Core", BuyerPositioning: "strategic",
			Title: "Collaborative", Description: "Partner openly",
		}},
	}
}

func pinnedProfile() *nego.SupplierProfile {
	return &nego.SupplierProfile{
		SupplierName:                     "Acme Bearings",
		CategoryName:                     "Bearings",
		PercentageSpendAcrossCategoryYTD: 30,
		SupplierCountInCategory:          4,
		SupplierRelationship:             "Preferred",
	}
}

func newRequest(intent string, pinned *nego.PinnedElements) *workflow.Request {
	req := &workflow.Request{
		TenantID:  "acme-us",
		ChatID:    "chat-1",
		Category:  "Bearings",
		Intent:    intent,
		Pinned:    pinned,
		Reference: referenceData(),
	}
	req.ApplyDefaults()
	return req
}

func TestBeginResolvesSupplier(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentBegin, &nego.PinnedElements{SupplierName: "acme bearings"})

	env, err := g.Begin(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "supplier_details", env.ResponseType)
	assert.Contains(t, env.Message, "Thank you for selecting Acme Bearings")
	require.NotNil(t, env.SupplierProfile)
	assert.Equal(t, "Acme Bearings", env.SupplierProfile.SupplierName)
	require.Len(t, env.SuggestedPrompts, 1)
	assert.Equal(t, workflow.IntentSelectSKUs, env.SuggestedPrompts[0].Intent)
}

func TestBeginAmbiguousNameSuggestsCandidates(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentBegin, &nego.PinnedElements{SupplierName: "Ac"})

	env, err := g.Begin(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, env.Message, "Is the supplier you are looking for one of these?")
	require.NotEmpty(t, env.SuggestedPrompts)
	assert.Equal(t, "Acme Bearings", env.SuggestedPrompts[0].Prompt)
	assert.Equal(t, "supplier_name|"+workflow.IntentBegin, env.SuggestedPrompts[0].Intent)
}

func TestScopingAggregatesSKUs(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentSelectSKUs, &nego.PinnedElements{SupplierName: "Acme Bearings"})

	env, err := g.Scoping(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "select_skus", env.ResponseType)
	require.Len(t, env.SKUs, 1)
	sku := env.SKUs[0]
	assert.Equal(t, "S1", sku.ID)
	assert.Equal(t, 8.0, sku.Quantity)
	assert.Equal(t, 140.0, sku.Spend)
	// (10*2 + 20*6) / 8
	assert.InDelta(t, 17.5, sku.UnitPrice, 1e-9)
	assert.Equal(t, "EA", sku.UOM)
	assert.Equal(t, "$", sku.CurrencySymbol)
	assert.Contains(t, env.Message, "single SKU")
}

func TestInsightsBucketsFromMaster(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentInsights, &nego.PinnedElements{SupplierName: "Acme Bearings"})

	env, err := g.Insights(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "negotiation_insights_all", env.ResponseType)
	require.NotNil(t, env.AdditionalData)
	buckets, ok := env.AdditionalData["nego_insights"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, buckets, "spend")
	require.Len(t, env.SuggestedPrompts, 1)
	assert.Equal(t, workflow.IntentObjective, env.SuggestedPrompts[0].Intent)
}

func TestObjectivesGroupPinnedInsights(t *testing.T) {
	g := newGenerator(t)
	pinned := &nego.PinnedElements{
		SupplierName: "Acme Bearings",
		Insights: []nego.Insight{
			{Insight: "Unit price above market", InsightObjective: "price reduction", AnalyticsName: "Price benchmark", SKUs: []string{"SKU-1"}},
			{Insight: "Saving opportunity on volume", InsightObjective: "price reduction", AnalyticsName: "Spend analysis"},
			{Insight: "Payment terms below average", InsightObjective: "payment terms", AnalyticsName: "Payment terms"},
		},
	}
	env, err := g.Objectives(context.Background(), newRequest(workflow.IntentObjective, pinned))
	require.NoError(t, err)
	assert.Equal(t, "objective", env.ResponseType)
	require.Len(t, env.Objectives, 2)
	first := env.Objectives[0]
	assert.Equal(t, "price reduction", first.ObjectiveType)
	assert.Len(t, first.ObjectiveReinforcements, 2)
	assert.Equal(t, []string{"Price benchmark", "Spend analysis"}, first.AnalyticsNames)
	assert.Equal(t, []string{"SKU-1"}, first.SKUs)
	assert.Equal(t, "payment terms", env.Objectives[1].ObjectiveType)
}

func TestCategoryPositioningDerivedFromSpendShare(t *testing.T) {
	g := newGenerator(t)
	pinned := &nego.PinnedElements{SupplierProfile: pinnedProfile()}

	env, err := g.CategoryPositioning(context.Background(), newRequest(workflow.IntentApproachCP, pinned))
	require.NoError(t, err)
	assert.Equal(t, "approach_cp", env.ResponseType)
	// 30% spend share with low market complexity lands in Shop.
	assert.Equal(t, "Shop", env.SelectedPositioning)
	require.Len(t, env.CategoryPositions, 4)
	assert.Equal(t, "Shop", env.CategoryPositions[0].Value)
	assert.Contains(t, env.Message, "**Category positioning**: Shop")
}

func TestTonesAndTacticsRequirePositionings(t *testing.T) {
	g := newGenerator(t)
	pinned := &nego.PinnedElements{SupplierProfile: pinnedProfile()}

	env, err := g.TonesAndTactics(context.Background(), newRequest(workflow.IntentApproachTNT, pinned))
	require.NoError(t, err)
	assert.Contains(t, env.Message, "before setting up tone and tactics")

	pinned.SupplierPositioning = &nego.ValueDetail{Value: "Core"}
	pinned.BuyerAttractiveness = &nego.ValueDetail{Value: "strategic"}
	env, err = g.TonesAndTactics(context.Background(), newRequest(workflow.IntentApproachTNT, pinned))
	require.NoError(t, err)
	assert.Contains(t, env.Message, "**Core**")
	assert.Contains(t, env.Message, "**strategic**")
	require.Len(t, env.Tones, 1)
	assert.Equal(t, "Collaborative", env.Tones[0].Title)
}

func TestCarrotsAndSticksSplitReference(t *testing.T) {
	g := newGenerator(t)
	env, err := g.CarrotsAndSticks(context.Background(), newRequest(workflow.IntentSelectCarrotSticks, &nego.PinnedElements{}))
	require.NoError(t, err)
	require.Len(t, env.Carrots, 1)
	require.Len(t, env.Sticks, 1)
	assert.Equal(t, "Volume growth", env.Carrots[0].Title)
	assert.Equal(t, "Dual sourcing", env.Sticks[0].Title)
}

func TestStrategyPicksFirstApplicableApproach(t *testing.T) {
	g := newGenerator(t)
	pinned := &nego.PinnedElements{SupplierProfile: pinnedProfile()}

	env, err := g.Strategy(context.Background(), newRequest(workflow.IntentStrategy, pinned))
	require.NoError(t, err)
	assert.Equal(t, "strategy", env.ResponseType)
	assert.Contains(t, env.Message, "Great! Based on our expertise")
	assert.Equal(t, "RFP", env.NegotiationStrategy["market_approach"].Value)
	assert.Equal(t, "Fixed price", env.NegotiationStrategy["pricing_methodology"].Value)
	assert.Equal(t, "Framework agreement", env.NegotiationStrategy["contracting_methodology"].Value)
}

func TestStrategyNotFoundForUnknownRelationship(t *testing.T) {
	g := newGenerator(t)
	prof := pinnedProfile()
	prof.SupplierRelationship = "New"
	pinned := &nego.PinnedElements{SupplierProfile: prof}

	_, err := g.Strategy(context.Background(), newRequest(workflow.IntentStrategy, pinned))
	require.Error(t, err)
	userErr, ok := nego.AsUserError(err)
	require.True(t, ok)
	assert.Contains(t, userErr.Message, "Market approach not found based on the selected parameters")
}

func TestStrategyChangeToAlternative(t *testing.T) {
	g := newGenerator(t)
	pinned := &nego.PinnedElements{
		SupplierProfile: pinnedProfile(),
		NegotiationStrategy: map[string]nego.ValueDetail{
			"market_approach": {Value: "RFP", Details: "Run a structured RFP"},
		},
	}
	req := newRequest(workflow.IntentStrategyChange, pinned)
	req.UserQuery = "Change to Auction"

	env, err := g.StrategyChange(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "strategy_change", env.ResponseType)
	assert.Equal(t, "Auction", env.NegotiationStrategy["market_approach"].Value)
	assert.Equal(t, "Run a reverse auction", env.NegotiationStrategy["market_approach"].Details)
}

func TestStrategyChangeListsOptions(t *testing.T) {
	g := newGenerator(t)
	pinned := &nego.PinnedElements{SupplierProfile: pinnedProfile()}
	req := newRequest(workflow.IntentStrategyChange, pinned)
	req.UserQuery = "Change market approach"

	env, err := g.StrategyChange(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, env.SuggestedPrompts, 2)
	assert.Equal(t, "Change to RFP", env.SuggestedPrompts[0].Prompt)
	assert.Equal(t, workflow.IntentStrategyChange, env.SuggestedPrompts[0].Intent)
}

func argumentsPinned() *nego.PinnedElements {
	return &nego.PinnedElements{
		SupplierProfile: pinnedProfile(),
		Objectives: []nego.Objective{
			{ID: "O1", Objective: "Reduce unit price", ObjectiveType: "price reduction", Target: "5", Unit: "%"},
			{ID: "O2", Objective: "Extend payment terms", ObjectiveType: "payment terms"},
		},
	}
}

func TestArgumentsNewFallsBackToObjectives(t *testing.T) {
	g := newGenerator(t)
	env, err := g.Arguments(context.Background(), newRequest(workflow.IntentArgumentsNew, argumentsPinned()))
	require.NoError(t, err)
	assert.Equal(t, "arguments_new", env.ResponseType)
	assert.Equal(t, "Arguments generated for supplier Acme Bearings", env.Message)
	require.Len(t, env.Arguments, 2)
	assert.Equal(t, "Argument 1", env.Arguments[0].Raw)
	assert.Contains(t, env.Arguments[0].Details, "5 %")
}

func TestArgumentsRequireObjectives(t *testing.T) {
	g := newGenerator(t)
	env, err := g.Arguments(context.Background(), newRequest(workflow.IntentArgumentsNew, &nego.PinnedElements{}))
	require.NoError(t, err)
	assert.Equal(t, "general", env.ResponseType)
	assert.Contains(t, env.Message, "objective pinned/selected")
}

func TestCounterArgumentsPairWithSources(t *testing.T) {
	g := newGenerator(t)
	pinned := argumentsPinned()
	pinned.Arguments = []nego.Element{
		{ID: "A1", Raw: "Argument 1", Details: "Prices are above market"},
		{ID: "A2", Raw: "Argument 2", Details: "Payment terms lag peers"},
	}
	env, err := g.Arguments(context.Background(), newRequest(workflow.IntentCounterArguments, pinned))
	require.NoError(t, err)
	assert.Equal(t, "counter_arguments", env.ResponseType)
	assert.Equal(t, "Counter arguments generated for supplier Acme Bearings", env.Message)
	require.Len(t, env.CounterArguments, 2)
	first := env.CounterArguments[0]
	assert.Equal(t, "Counter Argument 1", first.Raw)
	assert.Equal(t, "A1", first.ReferenceID)
	assert.Equal(t, "Prices are above market", first.ReferenceDetails)

	var texts []string
	for _, p := range env.SuggestedPrompts {
		texts = append(texts, p.Prompt)
	}
	assert.Contains(t, texts, "Generate email to supplier")
}

func TestRebuttalsAnswerFreeTextSupplierArgument(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentRebuttals, argumentsPinned())
	req.UserQuery = "Our prices already match the market benchmark"

	env, err := g.Arguments(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rebuttals", env.ResponseType)
	require.Len(t, env.Rebuttals, 1)
	assert.Equal(t, "Reply 1", env.Rebuttals[0].Raw)
	assert.Equal(t, "Supplier Argument", env.Rebuttals[0].ReferenceRaw)
	assert.Equal(t, "Our prices already match the market benchmark", env.Rebuttals[0].ReferenceDetails)
}

func TestArgumentsReplyPromptsForSupplierText(t *testing.T) {
	g := newGenerator(t)
	env, err := g.Arguments(context.Background(), newRequest(workflow.IntentArgumentsReply, argumentsPinned()))
	require.NoError(t, err)
	assert.Equal(t, "arguments_reply", env.ResponseType)
	assert.Equal(t, "Can you provide the arguments from supplier?", env.Message)
}

func TestEmailsThreading(t *testing.T) {
	g := newGenerator(t)
	env, err := g.Emails(context.Background(), newRequest(workflow.IntentEmails, argumentsPinned()))
	require.NoError(t, err)
	assert.Equal(t, "emails_new", env.ResponseType)
	require.Len(t, env.Emails, 1)
	assert.Equal(t, "EM_1", env.Emails[0].ID)
	assert.Equal(t, "new", env.Emails[0].Type)
	assert.Contains(t, env.Emails[0].Details, "Subject:")

	// Reply CTA with no supplier content prompts for it.
	req := newRequest(workflow.IntentEmailsReply, argumentsPinned())
	req.UserQuery = "Reply to supplier email"
	env, err = g.Emails(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Can you provide the email from supplier?", env.Message)

	// Pasted supplier email threads under the last root.
	pinned := argumentsPinned()
	pinned.Emails = []nego.Email{{ID: "EM_1", Details: "original", Type: "new"}}
	req = newRequest(workflow.IntentEmailsReply, pinned)
	req.UserQuery = "We cannot accept the proposed price reduction."
	env, err = g.Emails(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, env.Emails, 1)
	require.Len(t, env.Emails[0].Children, 1)
	assert.Equal(t, "EM_1_1", env.Emails[0].Children[0].ID)
	assert.Equal(t, "reply_to_supplier", env.Emails[0].Children[0].Type)
}

func TestSummaryEmailGatedToAwarding(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentSummaryEmail, argumentsPinned())
	req.BeforeUpdateRequestType = workflow.IntentArguments

	env, err := g.SummaryEmail(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "general", env.ResponseType)
	assert.Contains(t, env.Message, "awarding section")

	req = newRequest(workflow.IntentSummaryEmail, argumentsPinned())
	req.BeforeUpdateRequestType = workflow.IntentSummaryEmail
	env, err = g.SummaryEmail(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "negotiation_summary_email", env.ResponseType)
	require.Len(t, env.Emails, 1)
	assert.Equal(t, "EM_1", env.Emails[0].ID)
	assert.Equal(t, "summary", env.Emails[0].Type)
}

func TestOfferGatesAndPrompts(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentOffer, argumentsPinned())
	req.BeforeUpdateRequestType = workflow.IntentArguments

	env, err := g.Offer(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, env.Message, "navigation section")

	req = newRequest(workflow.IntentOffer, argumentsPinned())
	req.BeforeUpdateRequestType = workflow.IntentOffer
	env, err = g.Offer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "negotiation_offer", env.ResponseType)
	assert.Contains(t, env.Message, "**Offer Added**")
	require.Len(t, env.SuggestedPrompts, 2)
	assert.Equal(t, "Start new round", env.SuggestedPrompts[0].Prompt)
	assert.Equal(t, workflow.IntentFinished, env.SuggestedPrompts[1].Intent)
}

func TestFinishNeedsLatestOffer(t *testing.T) {
	g := newGenerator(t)
	env, err := g.Finish(context.Background(), newRequest(workflow.IntentFinished, argumentsPinned()))
	require.NoError(t, err)
	assert.Contains(t, env.Message, "latest offer")

	pinned := argumentsPinned()
	pinned.Objectives[0].CurrentOffer = "4.5%"
	env, err = g.Finish(context.Background(), newRequest(workflow.IntentFinished, pinned))
	require.NoError(t, err)
	assert.Equal(t, "negotiation_finished", env.ResponseType)
	assert.Contains(t, env.Message, "Well done!!!")
}

func TestUserAnswersWithoutModel(t *testing.T) {
	g := newGenerator(t)
	req := newRequest(workflow.IntentUserQuestions, &nego.PinnedElements{})
	req.UserQuery = "what is my spend with this supplier"

	env, err := g.UserAnswers(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "user_questions", env.ResponseType)
	assert.Equal(t, answerFailure, env.Message)
}
