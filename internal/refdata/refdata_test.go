package refdata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() *Data {
	return &Data{
		References: []Reference{
			{Type: "carrot", Title: "Volume growth", Parameter: "volume", Value: "+10%"},
			{Type: "stick", Title: "Dual sourcing", Parameter: "share", Value: "-20%"},
			{Type: "Carrots", Title: "Longer contract", Parameter: "term", Value: "3y"},
		},
		Strategy: []StrategyRow{
			{Category: "Bearings", PricingMethodology: []string{"Fixed", "Index-based"}, AuctionPotential: "High", MarketComplexity: "Low"},
		},
		MarketMap: []MarketOption{
			{MarketApproach: "RFP", Incumbency: 1, CategoryPositioning: []string{"leverage", "shop"}, SupplierRelationship: []string{"approved", "preferred"}, AuctionPotential: "High"},
			{MarketApproach: "Auction", Incumbency: 3, CategoryPositioning: []string{"leverage"}, SupplierRelationship: []string{"approved"}, AuctionPotential: "High"},
			{MarketApproach: "Direct negotiation", Incumbency: 1, CategoryPositioning: []string{"strategic partnership"}, SupplierRelationship: []string{"strategic"}, AuctionPotential: "Low"},
		},
		Tones: []ToneRow{
			{SupplierPositioning: "Core", BuyerPositioning: "strategic", Title: "Collaborative"},
			{SupplierPositioning: "Core", BuyerPositioning: "strategic", Title: "Collaborative"},
			{SupplierPositioning: "Core", BuyerPositioning: "non-strategic", Title: "Firm"},
		},
	}
}

func TestCarrotsSticksSplit(t *testing.T) {
	carrots, sticks := fixture().CarrotsSticks()
	require.Len(t, carrots, 2)
	require.Len(t, sticks, 1)
	assert.Equal(t, "Volume growth", carrots[0].Title)
	assert.Equal(t, "Longer contract", carrots[1].Title)
	assert.Equal(t, "Dual sourcing", sticks[0].Title)
}

func TestTonesForDeduplicatesByTitle(t *testing.T) {
	tones := fixture().TonesFor("core", "Strategic")
	require.Len(t, tones, 1)
	assert.Equal(t, "Collaborative", tones[0].Title)
	assert.Empty(t, fixture().TonesFor("nuisance", "strategic"))
}

func TestFilterMarketAppliesAllThreeGates(t *testing.T) {
	d := fixture()

	got := d.FilterMarket(2, "leverage", "Approved")
	require.Len(t, got, 1)
	assert.Equal(t, "RFP", got[0].MarketApproach)

	// Higher incumbency admits the auction row too.
	got = d.FilterMarket(3, "leverage", "approved")
	assert.Len(t, got, 2)

	assert.Empty(t, d.FilterMarket(5, "bottleneck", "approved"))
}

func TestAlternativesUniqueWithinIncumbency(t *testing.T) {
	d := fixture()
	assert.Equal(t, []string{"RFP", "Auction"}, d.Alternatives("High", 3))
	assert.Equal(t, []string{"RFP"}, d.Alternatives("high", 1))
}

func TestCategoryPositioningMatrix(t *testing.T) {
	assert.Equal(t, PositioningStrategicPartnership, CategoryPositioning(85, "High"))
	assert.Equal(t, PositioningLeverage, CategoryPositioning(85, "Low"))
	assert.Equal(t, PositioningBottleneck, CategoryPositioning(20, "High"))
	assert.Equal(t, PositioningShop, CategoryPositioning(20, "low"))
	// Unknown complexity counts as high.
	assert.Equal(t, PositioningBottleneck, CategoryPositioning(20, ""))
}

func TestNormalizeBuyerAttractiveness(t *testing.T) {
	assert.Equal(t, BuyerStrategic, NormalizeBuyerAttractiveness("Yes, strategic"))
	assert.Equal(t, BuyerNonStrategic, NormalizeBuyerAttractiveness("non strategic"))
	assert.Equal(t, BuyerNonStrategic, NormalizeBuyerAttractiveness(""))
	assert.Equal(t, BuyerNonStrategic, NormalizeBuyerAttractiveness("no"))
}

func TestParseRoundTripsRequestPayload(t *testing.T) {
	raw := json.RawMessage(`{
		"negotiation_references": [{"type": "carrot", "title": "Early payment"}],
		"negotiation_strategy": [{"category": "Valves", "pricing_methodology": ["Fixed"]}],
		"negotiation_market_approach": [{"market_approach": "RFQ", "incumbency": 2}],
		"negotiation_strategy_tones_n_tactics": [{"supplier_positioning": "Core", "buyer_positioning": "strategic", "title": "Warm"}]
	}`)
	d, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Len(t, d.References, 1)
	require.NotNil(t, d.StrategyFor("valves"))
	assert.Equal(t, 2, d.MarketMap[0].Incumbency)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
