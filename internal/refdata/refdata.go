// Package refdata holds the per-tenant static dimensions the workflow
// consults: market approach map, per-category strategy defaults, tone
// and tactics lookup, and the carrot/stick reference list. Callers may
// pass the data on each turn; a Postgres loader provides the default.
package refdata

import (
	"encoding/json"
	"strings"

	"negofactory/internal/nego"
)

// Reference is one carrot or stick reference row.
type Reference struct {
	Type        string `json:"type"` // "carrot" or "stick"
	Title       string `json:"title"`
	Parameter   string `json:"parameter"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// MarketOption is one row of the market approach map. An option is
// applicable when the buyer has at least Incumbency suppliers and the
// current positionings are contained in the row's allow-lists.
type MarketOption struct {
	MarketApproach       string   `json:"market_approach"`
	Details              string   `json:"details"`
	Incumbency           int      `json:"incumbency"`
	CategoryPositioning  []string `json:"category_positioning"`
	SupplierRelationship []string `json:"supplier_relationship"`
	AuctionPotential     string   `json:"auction_potential"`
}

// StrategyRow carries a category's sourcing-approach defaults.
type StrategyRow struct {
	Category               string   `json:"category"`
	PricingMethodology     []string `json:"pricing_methodology"`
	ContractingMethodology []string `json:"contracting_methodology"`
	AuctionPotential       string   `json:"auction_potential"`
	MarketComplexity       string   `json:"market_complexity"`
}

// ToneRow is one cell of the tone lookup keyed by supplier positioning
// and buyer positioning.
type ToneRow struct {
	SupplierPositioning string            `json:"supplier_positioning"`
	BuyerPositioning    string            `json:"buyer_positioning"`
	Title               string            `json:"title"`
	Description         string            `json:"description"`
	Prioritize          map[string]string `json:"prioritize"`
	Tactics             []nego.Tactic     `json:"tactics"`
}

// Data is the complete reference set for one tenant.
type Data struct {
	References []Reference    `json:"negotiation_references"`
	Strategy   []StrategyRow  `json:"negotiation_strategy"`
	MarketMap  []MarketOption `json:"negotiation_market_approach"`
	Tones      []ToneRow      `json:"negotiation_strategy_tones_n_tactics"`
}

// Parse decodes reference data submitted with a turn.
func Parse(raw json.RawMessage) (*Data, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CarrotsSticks splits the reference rows into carrots and sticks,
// dropping the discriminator.
func (d *Data) CarrotsSticks() (carrots, sticks []nego.CarrotStick) {
	if d == nil {
		return nil, nil
	}
	for _, r := range d.References {
		item := nego.CarrotStick{
			Title:       r.Title,
			Parameter:   r.Parameter,
			Value:       r.Value,
			Description: r.Description,
		}
		switch strings.ToLower(strings.TrimSpace(r.Type)) {
		case "carrot", "carrots":
			carrots = append(carrots, item)
		case "stick", "sticks":
			sticks = append(sticks, item)
		}
	}
	return carrots, sticks
}

// StrategyFor returns the category's strategy defaults, nil when the
// category is absent.
func (d *Data) StrategyFor(category string) *StrategyRow {
	if d == nil {
		return nil
	}
	for i := range d.Strategy {
		if strings.EqualFold(d.Strategy[i].Category, category) {
			return &d.Strategy[i]
		}
	}
	return nil
}

// TonesFor resolves the tone list for a (supplier positioning, buyer
// positioning) pair, unique by title in row order.
func (d *Data) TonesFor(supplierPositioning, buyerPositioning string) []nego.Tone {
	if d == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []nego.Tone
	for _, row := range d.Tones {
		if !strings.EqualFold(row.SupplierPositioning, supplierPositioning) ||
			!strings.EqualFold(row.BuyerPositioning, buyerPositioning) {
			continue
		}
		key := strings.ToLower(row.Title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, nego.Tone{
			Title:       row.Title,
			Description: row.Description,
			Prioritize:  row.Prioritize,
			Tactics:     row.Tactics,
		})
	}
	return out
}

// FilterMarket returns the market options applicable to the current
// incumbency and positionings.
func (d *Data) FilterMarket(incumbency int, categoryPositioning, supplierRelationship string) []MarketOption {
	if d == nil {
		return nil
	}
	var out []MarketOption
	for _, opt := range d.MarketMap {
		if opt.Incumbency > incumbency {
			continue
		}
		if !containsFold(opt.CategoryPositioning, categoryPositioning) {
			continue
		}
		if !containsFold(opt.SupplierRelationship, supplierRelationship) {
			continue
		}
		out = append(out, opt)
	}
	return out
}

// Alternatives lists the distinct market approaches sharing the
// category's auction potential within the incumbency bound.
func (d *Data) Alternatives(auctionPotential string, incumbency int) []string {
	if d == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, opt := range d.MarketMap {
		if opt.Incumbency > incumbency || !strings.EqualFold(opt.AuctionPotential, auctionPotential) {
			continue
		}
		key := strings.ToLower(opt.MarketApproach)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, opt.MarketApproach)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}
