// Package envelope builds the uniform response shape every workflow
// turn returns: response type, message, suggested prompts and the
// artifact payload for the turn.
package envelope

import (
	"math"
	"reflect"

	"negofactory/internal/nego"
)

// Envelope is the wire shape of a turn response. Artifact keys are
// omitted when empty so every response serialises cleanly.
type Envelope struct {
	ResponseType     string        `json:"response_type"`
	Message          string        `json:"message"`
	SuggestedPrompts []nego.Prompt `json:"suggested_prompts"`

	Arguments        []nego.Element `json:"arguments,omitempty"`
	CounterArguments []nego.Element `json:"counter_arguments,omitempty"`
	Rebuttals        []nego.Element `json:"rebuttals,omitempty"`
	Emails           []nego.Email   `json:"emails,omitempty"`

	Insights   any              `json:"insights,omitempty"`
	Objectives []nego.Objective `json:"objectives,omitempty"`

	SupplierProfile   *nego.SupplierProfile  `json:"supplier_profile,omitempty"`
	SuppliersProfiles []nego.SupplierProfile `json:"suppliers_profiles,omitempty"`

	SupplierPositions []nego.ValueDetail `json:"supplier_positions,omitempty"`
	CategoryPositions []nego.ValueDetail `json:"category_positions,omitempty"`

	NegotiationStrategy map[string]nego.ValueDetail `json:"negotiation_strategy,omitempty"`

	Tones   []nego.Tone        `json:"tones,omitempty"`
	SKUs    []nego.SKU         `json:"skus,omitempty"`
	Carrots []nego.CarrotStick `json:"carrots,omitempty"`
	Sticks  []nego.CarrotStick `json:"sticks,omitempty"`

	SelectedPositioning string `json:"selected_positioning,omitempty"`

	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// Option mutates an envelope under construction.
type Option func(*Envelope)

// New builds a normalised envelope. SuggestedPrompts is always non-nil
// so the JSON field renders as [] rather than null.
func New(responseType, message string, opts ...Option) *Envelope {
	env := &Envelope{
		ResponseType:     responseType,
		Message:          message,
		SuggestedPrompts: []nego.Prompt{},
	}
	for _, opt := range opts {
		opt(env)
	}
	env.Normalize()
	return env
}

func WithPrompts(prompts []nego.Prompt) Option {
	return func(e *Envelope) {
		if prompts != nil {
			e.SuggestedPrompts = prompts
		}
	}
}

func WithSupplierProfile(p *nego.SupplierProfile) Option {
	return func(e *Envelope) { e.SupplierProfile = p }
}

func WithAdditionalData(data map[string]any) Option {
	return func(e *Envelope) { e.AdditionalData = data }
}

// Normalize replaces non-finite numbers with zero so the envelope is
// always JSON-serialisable, and guarantees a non-nil prompt list.
func (e *Envelope) Normalize() {
	if e == nil {
		return
	}
	if e.SuggestedPrompts == nil {
		e.SuggestedPrompts = []nego.Prompt{}
	}
	if e.SupplierProfile != nil {
		normalizeProfile(e.SupplierProfile)
	}
	for i := range e.SuppliersProfiles {
		normalizeProfile(&e.SuppliersProfiles[i])
	}
	for i := range e.SKUs {
		e.SKUs[i].UnitPrice = finite(e.SKUs[i].UnitPrice)
		e.SKUs[i].Quantity = finite(e.SKUs[i].Quantity)
		e.SKUs[i].Spend = finite(e.SKUs[i].Spend)
	}
	if e.AdditionalData != nil {
		e.AdditionalData = normalizeMap(e.AdditionalData)
	}
}

func normalizeProfile(p *nego.SupplierProfile) {
	p.SpendYTD = finite(p.SpendYTD)
	p.SpendLastYear = finite(p.SpendLastYear)
	p.PercentageSpendAcrossCategoryYTD = finite(p.PercentageSpendAcrossCategoryYTD)
	p.SingleSourceSpendYTD = finite(p.SingleSourceSpendYTD)
	p.SpendNoPOYTD = finite(p.SpendNoPOYTD)
	p.PercentageSingleSourced = finite(p.PercentageSingleSourced)
	p.PercentageWithoutPO = finite(p.PercentageWithoutPO)
	for k, v := range p.Savings {
		p.Savings[k] = finite(v)
	}
	if p.SKUs == nil {
		p.SKUs = []string{}
	}
	if p.Savings == nil {
		p.Savings = map[string]float64{}
	}
}

// normalizeMap walks an additional-data map and scrubs values that do
// not survive JSON encoding. Functions become empty strings.
func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case map[string]any:
		return normalizeMap(t)
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = normalizeValue(item)
		}
		return items
	case nil, bool, string, int, int32, int64:
		return v
	default:
		// Non-serialisable values (funcs, channels) degrade to "".
		switch reflect.ValueOf(v).Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return ""
		}
		return v
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
