package nego

import "encoding/json"

// Section names a workflow section a user can pin a selection under.
const (
	SectionSupplierProfile     = "supplier_profile"
	SectionSKUs                = "skus"
	SectionInsights            = "insights"
	SectionObjectives          = "objectives"
	SectionCategoryPositioning = "category_positioning"
	SectionSupplierPositioning = "supplier_positioning"
	SectionBuyerAttractiveness = "buyer_attractiveness"
	SectionNegotiationStrategy = "negotiation_strategy"
	SectionToneAndTactics      = "tone_and_tactics"
	SectionCarrots             = "carrots"
	SectionSticks              = "sticks"
	SectionArguments           = "arguments"
	SectionCounterArguments    = "counter_arguments"
	SectionRebuttals           = "rebuttals"
	SectionEmails              = "emails"
	SectionNegoInsights        = "nego_insights"
)

// PinnedElements is the session state: one optional field per workflow
// section. Presence of a value means the user committed that section.
// The workflow reads this and never mutates it.
type PinnedElements struct {
	SupplierProfile     *SupplierProfile           `json:"supplier_profile,omitempty"`
	SKUs                []SKU                      `json:"skus,omitempty"`
	Insights            []Insight                  `json:"insights,omitempty"`
	Objectives          []Objective                `json:"objectives,omitempty"`
	CategoryPositioning *ValueDetail               `json:"category_positioning,omitempty"`
	SupplierPositioning *ValueDetail               `json:"supplier_positioning,omitempty"`
	BuyerAttractiveness *ValueDetail               `json:"buyer_attractiveness,omitempty"`
	NegotiationStrategy map[string]ValueDetail     `json:"negotiation_strategy,omitempty"`
	ToneAndTactics      *Tone                      `json:"tone_and_tactics,omitempty"`
	Carrots             []CarrotStick              `json:"carrots,omitempty"`
	Sticks              []CarrotStick              `json:"sticks,omitempty"`
	Arguments           []Element                  `json:"arguments,omitempty"`
	CounterArguments    []Element                  `json:"counter_arguments,omitempty"`
	Rebuttals           []Element                  `json:"rebuttals,omitempty"`
	Emails              []Email                    `json:"emails,omitempty"`
	NegoInsights        map[string]json.RawMessage `json:"nego_insights,omitempty"`

	// SupplierName is set by the dispatcher when the turn itself names a
	// supplier (request type "supplier_name|...").
	SupplierName string `json:"supplier_name,omitempty"`
}

// Has reports whether the named section is committed.
func (p *PinnedElements) Has(section string) bool {
	if p == nil {
		return false
	}
	switch section {
	case SectionSupplierProfile:
		return p.SupplierProfile != nil
	case SectionSKUs:
		return len(p.SKUs) > 0
	case SectionInsights:
		return len(p.Insights) > 0
	case SectionObjectives:
		return len(p.Objectives) > 0
	case SectionCategoryPositioning:
		return p.CategoryPositioning != nil
	case SectionSupplierPositioning:
		return p.SupplierPositioning != nil
	case SectionBuyerAttractiveness:
		return p.BuyerAttractiveness != nil
	case SectionNegotiationStrategy:
		return len(p.NegotiationStrategy) > 0
	case SectionToneAndTactics:
		return p.ToneAndTactics != nil
	case SectionCarrots:
		return len(p.Carrots) > 0
	case SectionSticks:
		return len(p.Sticks) > 0
	case SectionArguments:
		return len(p.Arguments) > 0
	case SectionCounterArguments:
		return len(p.CounterArguments) > 0
	case SectionRebuttals:
		return len(p.Rebuttals) > 0
	case SectionEmails:
		return len(p.Emails) > 0
	case SectionNegoInsights:
		return len(p.NegoInsights) > 0
	}
	return false
}

// SelectedElements mirrors PinnedElements for in-flight UI selections of
// a single turn. Layered over pins when building prompt context.
type SelectedElements = PinnedElements

// SKUNames returns the pinned SKU names in order.
func (p *PinnedElements) SKUNames() []string {
	if p == nil || len(p.SKUs) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.SKUs))
	for _, sku := range p.SKUs {
		names = append(names, sku.Name)
	}
	return names
}
