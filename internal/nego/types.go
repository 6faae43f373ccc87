// Package nego holds the domain types shared across the negotiation
// workflow: supplier profiles, insights, objectives, pinned session
// state and the artifact payload shapes.
package nego

// Prompt is one suggested next action shown to the user. Intent is the
// workflow intent submitted when the prompt is clicked.
type Prompt struct {
	Prompt string `json:"prompt"`
	Intent string `json:"intent"`
}

// SupplierProfile is the canonical per-supplier/category aggregate for
// the most recent reporting period.
type SupplierProfile struct {
	SupplierName                     string             `json:"supplier_name"`
	CategoryName                     string             `json:"category_name"`
	Period                           int                `json:"period"`
	CurrencySymbol                   string             `json:"currency_symbol"`
	CurrencyPosition                 string             `json:"currency_position"`
	SpendYTD                         float64            `json:"spend_ytd"`
	SpendLastYear                    float64            `json:"spend_last_year"`
	PercentageSpendAcrossCategoryYTD float64            `json:"percentage_spend_across_category_ytd"`
	SingleSourceSpendYTD             float64            `json:"single_source_spend_ytd"`
	SpendNoPOYTD                     float64            `json:"spend_no_po_ytd"`
	PercentageSingleSourced          float64            `json:"percentage_spend_which_is_single_sourced"`
	PercentageWithoutPO              float64            `json:"percentage_spend_without_po"`
	AveragePaymentTermDays           int                `json:"average_payment_term_days"`
	NumberOfSKUs                     int                `json:"number_of_sku"`
	SKUs                             []string           `json:"sku_names"`
	SupplierRelationship             string             `json:"supplier_relationship"`
	SupplierCountInCategory          int                `json:"number_of_supplier_in_category"`
	Savings                          map[string]float64 `json:"savings"`
}

// Insight is one atomic statement produced by an analytic together with
// the data that justifies it.
type Insight struct {
	ID               string   `json:"id"`
	Insight          string   `json:"insight"`
	InsightObjective string   `json:"insight_objective"`
	AnalyticsName    string   `json:"analytics_name"`
	Reinforcement    string   `json:"reinforcement"`
	SKUs             []string `json:"list_of_skus"`
	Opportunity      float64  `json:"opportunity"`
	CurrencySymbol   string   `json:"currency_symbol"`
}

// Objective is a negotiation goal derived from insights. Target fields
// are empty until the user sets them.
type Objective struct {
	ID                      string   `json:"id"`
	Objective               string   `json:"objective"`
	ObjectiveType           string   `json:"objective_type"`
	ObjectiveReinforcements []string `json:"objective_reinforcements"`
	SKUs                    []string `json:"list_of_skus"`
	AnalyticsNames          []string `json:"analytics_names"`
	MarkAsFinal             bool     `json:"mark_as_final"`
	Target                  string   `json:"target,omitempty"`
	Unit                    string   `json:"unit,omitempty"`
	CurrentValue            string   `json:"current_value,omitempty"`
	CurrentOffer            string   `json:"current_offer,omitempty"`
	Reason                  string   `json:"reason,omitempty"`
}

// ValueDetail is a positioning or strategy choice with its explanation.
type ValueDetail struct {
	Value   string `json:"value"`
	Details string `json:"details"`
}

// Tactic is one tactic under a tone.
type Tactic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Tone is a negotiation posture from the tone & tactics lookup table.
// Prioritize maps "carrots"/"sticks" to a priority label or "NA".
type Tone struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Prioritize  map[string]string `json:"prioritize"`
	Tactics     []Tactic          `json:"tactics"`
}

// CarrotStick is one leverage item the buyer may offer or threaten.
type CarrotStick struct {
	Title       string `json:"title"`
	Parameter   string `json:"parameter"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Element is one generated argument, counter-argument or rebuttal.
// Reference fields tie a counter-argument or rebuttal back to the
// element it answers.
type Element struct {
	ID               string `json:"id"`
	Raw              string `json:"raw"`
	Details          string `json:"details"`
	ReferenceID      string `json:"reference_id,omitempty"`
	ReferenceRaw     string `json:"reference_raw,omitempty"`
	ReferenceDetails string `json:"reference_details,omitempty"`
}

// Email is one node in an email thread. Threads are a single root with
// flat children.
type Email struct {
	ID       string  `json:"id"`
	Details  string  `json:"details"`
	Type     string  `json:"type"`
	Children []Email `json:"children"`
}

// SKU is one stock-keeping unit in scope for the negotiation.
type SKU struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	UnitPrice      float64 `json:"unit_price"`
	Quantity       float64 `json:"quantity"`
	UOM            string  `json:"uom"`
	Spend          float64 `json:"spend"`
	CurrencySymbol string  `json:"currency_symbol"`
}

// OpportunityInsight is one opportunity bucket entry inside pinned
// negotiation insights.
type OpportunityInsight struct {
	Opportunity float64  `json:"opportunity"`
	Insights    []string `json:"insights"`
}
