package promptctx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negofactory/internal/nego"
)

func pinnedFixture() *nego.PinnedElements {
	return &nego.PinnedElements{
		SupplierProfile: &nego.SupplierProfile{SupplierName: "Acme Bearings"},
		Objectives: []nego.Objective{
			{ID: "O1", Objective: "Reduce unit price", ObjectiveType: "Spend", Target: "5", Unit: "%", Reason: "above market"},
			{ID: "O2", Objective: "Key facts", ObjectiveType: "key facts"},
			{ID: "O3", Objective: "Improve terms", ObjectiveType: "Suppliers", MarkAsFinal: true},
		},
		NegoInsights: map[string]json.RawMessage{
			"Spend":       json.RawMessage(`["spend is concentrated"]`),
			"Market":      json.RawMessage(`["market is loose"]`),
			"Opportunity": json.RawMessage(`{"Spend": {"opportunity": 3.5, "insights": ["price variance savings"]}, "Suppliers": {"opportunity": 0, "insights": ["ignored"]}}`),
		},
		NegotiationStrategy: map[string]nego.ValueDetail{
			"market_approach":   {Value: "RFP", Details: "broaden the field"},
			"pricing_methodology": {Value: "Index-based", Details: "tie to raw material index"},
		},
		ToneAndTactics: &nego.Tone{
			Title:      "Collaborative",
			Prioritize: map[string]string{"carrots": "high", "sticks": "NA"},
		},
		Carrots: []nego.CarrotStick{{Title: "Volume growth", Parameter: "volume", Value: "+10%"}},
		Sticks:  []nego.CarrotStick{{Title: "Dual sourcing", Parameter: "share", Value: "-20%"}},
	}
}

func TestBuildFiltersObjectivesAndInsights(t *testing.T) {
	ctx, err := Build(pinnedFixture(), nil, nil, "Bearings", "negotiation_arguments", 1, Options{})
	require.NoError(t, err)

	require.Len(t, ctx.Objectives, 1)
	assert.Equal(t, "O1", ctx.Objectives[0].ID)
	assert.Equal(t, []string{"spend"}, ctx.ObjectiveTypes)

	// Spend bucket kept, opportunity inlined into it, market dropped.
	require.Contains(t, ctx.Insights, "spend")
	assert.Contains(t, ctx.Insights["spend"], "spend is concentrated")
	assert.Contains(t, ctx.Insights["spend"], "price variance savings")
	assert.NotContains(t, ctx.Insights, "market")
	assert.NotContains(t, ctx.Insights, "suppliers")
}

func TestBuildAllObjectivesBypassesFinalFilter(t *testing.T) {
	ctx, err := Build(pinnedFixture(), nil, nil, "Bearings", "summary_email", 1, Options{AllObjectives: true})
	require.NoError(t, err)
	assert.Len(t, ctx.Objectives, 2)
}

func TestBuildNoActiveObjectivesIsUserError(t *testing.T) {
	pinned := &nego.PinnedElements{
		Objectives: []nego.Objective{{Objective: "done", ObjectiveType: "Spend", MarkAsFinal: true}},
	}
	_, err := Build(pinned, nil, nil, "Bearings", "negotiation_arguments", 1, Options{})
	require.Error(t, err)
	_, ok := nego.AsUserError(err)
	assert.True(t, ok)
}

func TestLeverageRenderingAndNASentinel(t *testing.T) {
	ctx, err := Build(pinnedFixture(), nil, nil, "Bearings", "negotiation_arguments", 1, Options{})
	require.NoError(t, err)
	require.Len(t, ctx.Carrots, 1)
	assert.Equal(t, "1 Volume growth: volume +10% [priority: high]", ctx.Carrots[0])
	assert.Empty(t, ctx.Sticks)
}

func TestSourcingApproachOrderAndFormat(t *testing.T) {
	ctx, err := Build(pinnedFixture(), nil, nil, "Bearings", "negotiation_arguments", 1, Options{})
	require.NoError(t, err)
	require.Len(t, ctx.SourcingApproach, 2)
	assert.Equal(t, "**Market Approach**: RFP - broaden the field", ctx.SourcingApproach[0])
	assert.Equal(t, "**Pricing Methodology**: Index-based - tie to raw material index", ctx.SourcingApproach[1])
}

func TestTargetStrings(t *testing.T) {
	ctx, err := Build(pinnedFixture(), nil, nil, "Bearings", "negotiation_arguments", 1, Options{})
	require.NoError(t, err)
	require.Len(t, ctx.Targets, 1)
	assert.Equal(t, `IMPORTANT Target for "Reduce unit price": 5 % because above market`, ctx.Targets[0])
}

func TestSelectionsOverlayPins(t *testing.T) {
	selected := &nego.SelectedElements{
		Objectives: []nego.Objective{{ID: "S1", Objective: "Selected", ObjectiveType: "Market"}},
	}
	ctx, err := Build(pinnedFixture(), selected, nil, "Bearings", "negotiation_arguments", 1, Options{})
	require.NoError(t, err)
	require.Len(t, ctx.Objectives, 1)
	assert.Equal(t, "S1", ctx.Objectives[0].ID)
	assert.Contains(t, ctx.Insights, "market")
}
