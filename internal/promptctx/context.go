// Package promptctx assembles the typed context object the prompt
// templates render from: the merged pinned/selected state, the active
// objectives, and the per-objective insight slices.
package promptctx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"negofactory/internal/nego"
)

// keyFacts is the sentinel objective type excluded from generation.
const keyFacts = "key facts"

// Context is the frozen per-turn view handed to template builders.
type Context struct {
	SupplierName        string
	Category            string
	GenerationType      string
	Round               int
	Profile             *nego.SupplierProfile
	Objectives          []nego.Objective
	ObjectiveTypes      []string
	Insights            map[string][]string
	SourcingApproach    []string
	CategoryPositioning string
	SupplierPositioning string
	BuyerAttractiveness string
	Tone                *nego.Tone
	Prioritize          map[string]string
	Targets             []string
	SKUContext          string
	Carrots             []string
	Sticks              []string
}

// Options tune context assembly per generation type.
type Options struct {
	// AllObjectives bypasses the mark-as-final filter so every pinned
	// objective participates (summary emails, exports).
	AllObjectives bool
}

// Build merges selections over pins and derives the turn context. It
// fails with a user-visible error when no objective is active.
func Build(pinned, selected *nego.PinnedElements, profile *nego.SupplierProfile, category, generationType string, round int, opts Options) (*Context, error) {
	merged := overlay(pinned, selected)
	if profile == nil {
		profile = merged.SupplierProfile
	}

	objectives := activeObjectives(merged.Objectives, opts.AllObjectives)
	if len(objectives) == 0 {
		return nil, nego.Userf("No active negotiation objectives found. Please set negotiation objectives before proceeding.")
	}

	types := make([]string, 0, len(objectives))
	seen := map[string]struct{}{}
	for _, o := range objectives {
		t := strings.ToLower(strings.TrimSpace(o.ObjectiveType))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}

	ctx := &Context{
		Category:       category,
		GenerationType: generationType,
		Round:          round,
		Profile:        profile,
		Objectives:     objectives,
		ObjectiveTypes: types,
		Insights:       filterInsights(merged.NegoInsights, seen),
		Targets:        targetStrings(objectives),
		SKUContext:     skuContext(merged.SKUs),
	}
	if profile != nil {
		ctx.SupplierName = profile.SupplierName
	}
	if merged.CategoryPositioning != nil {
		ctx.CategoryPositioning = merged.CategoryPositioning.Value
	}
	if merged.SupplierPositioning != nil {
		ctx.SupplierPositioning = merged.SupplierPositioning.Value
	}
	if merged.BuyerAttractiveness != nil {
		ctx.BuyerAttractiveness = merged.BuyerAttractiveness.Value
	}
	ctx.SourcingApproach = sourcingApproach(merged.NegotiationStrategy)

	if merged.ToneAndTactics != nil {
		ctx.Tone = merged.ToneAndTactics
		ctx.Prioritize = merged.ToneAndTactics.Prioritize
	}
	ctx.Carrots = renderLeverage(merged.Carrots, ctx.Prioritize["carrots"])
	ctx.Sticks = renderLeverage(merged.Sticks, ctx.Prioritize["sticks"])
	return ctx, nil
}

// overlay layers a turn's selections over the pinned state, section by
// section. Neither input is mutated.
func overlay(pinned, selected *nego.PinnedElements) *nego.PinnedElements {
	out := nego.PinnedElements{}
	if pinned != nil {
		out = *pinned
	}
	if selected == nil {
		return &out
	}
	if selected.SupplierProfile != nil {
		out.SupplierProfile = selected.SupplierProfile
	}
	if len(selected.SKUs) > 0 {
		out.SKUs = selected.SKUs
	}
	if len(selected.Insights) > 0 {
		out.Insights = selected.Insights
	}
	if len(selected.Objectives) > 0 {
		out.Objectives = selected.Objectives
	}
	if selected.CategoryPositioning != nil {
		out.CategoryPositioning = selected.CategoryPositioning
	}
	if selected.SupplierPositioning != nil {
		out.SupplierPositioning = selected.SupplierPositioning
	}
	if selected.BuyerAttractiveness != nil {
		out.BuyerAttractiveness = selected.BuyerAttractiveness
	}
	if len(selected.NegotiationStrategy) > 0 {
		out.NegotiationStrategy = selected.NegotiationStrategy
	}
	if selected.ToneAndTactics != nil {
		out.ToneAndTactics = selected.ToneAndTactics
	}
	if len(selected.Carrots) > 0 {
		out.Carrots = selected.Carrots
	}
	if len(selected.Sticks) > 0 {
		out.Sticks = selected.Sticks
	}
	if len(selected.Arguments) > 0 {
		out.Arguments = selected.Arguments
	}
	if len(selected.CounterArguments) > 0 {
		out.CounterArguments = selected.CounterArguments
	}
	if len(selected.Rebuttals) > 0 {
		out.Rebuttals = selected.Rebuttals
	}
	if len(selected.Emails) > 0 {
		out.Emails = selected.Emails
	}
	if len(selected.NegoInsights) > 0 {
		out.NegoInsights = selected.NegoInsights
	}
	return &out
}

// activeObjectives keeps objectives still in play: not final (unless
// bypassed) and not the key-facts sentinel.
func activeObjectives(objectives []nego.Objective, all bool) []nego.Objective {
	var out []nego.Objective
	for _, o := range objectives {
		if strings.EqualFold(strings.TrimSpace(o.ObjectiveType), keyFacts) {
			continue
		}
		if o.MarkAsFinal && !all {
			continue
		}
		out = append(out, o)
	}
	return out
}

// filterInsights flattens pinned negotiation insights into
// per-objective-type string slices. The opportunity bucket is inlined
// so each sub-objective becomes its own key before filtering.
func filterInsights(raw map[string]json.RawMessage, active map[string]struct{}) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	flat := map[string][]string{}
	for key, payload := range raw {
		if strings.EqualFold(key, "opportunity") {
			var buckets map[string]nego.OpportunityInsight
			if err := json.Unmarshal(payload, &buckets); err != nil {
				continue
			}
			for sub, b := range buckets {
				if b.Opportunity <= 0 {
					continue
				}
				flat[strings.ToLower(sub)] = append(flat[strings.ToLower(sub)], b.Insights...)
			}
			continue
		}
		flat[strings.ToLower(key)] = decodeInsightList(payload)
	}
	out := map[string][]string{}
	for key, list := range flat {
		if _, ok := active[key]; !ok {
			continue
		}
		if len(list) > 0 {
			out[key] = list
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeInsightList(payload json.RawMessage) []string {
	var asStrings []string
	if err := json.Unmarshal(payload, &asStrings); err == nil {
		return asStrings
	}
	var asObjects []map[string]any
	if err := json.Unmarshal(payload, &asObjects); err == nil {
		out := make([]string, 0, len(asObjects))
		for _, obj := range asObjects {
			if s, ok := obj["insight"].(string); ok && s != "" {
				out = append(out, s)
				continue
			}
			b, _ := json.Marshal(obj)
			out = append(out, string(b))
		}
		return out
	}
	return nil
}

// strategyKeyOrder pins the canonical strategy keys ahead of any
// tenant-specific extras.
var strategyKeyOrder = []string{"market_approach", "pricing_methodology", "contracting_methodology"}

func sourcingApproach(strategy map[string]nego.ValueDetail) []string {
	if len(strategy) == 0 {
		return nil
	}
	keys := make([]string, 0, len(strategy))
	for k := range strategy {
		if !containsFold(strategyKeyOrder, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	ordered := append(append([]string{}, strategyKeyOrder...), keys...)

	var out []string
	for _, k := range ordered {
		vd, ok := strategy[k]
		if !ok {
			continue
		}
		label := titleCase(strings.ReplaceAll(k, "_", " "))
		out = append(out, fmt.Sprintf("**%s**: %s - %s", label, vd.Value, vd.Details))
	}
	return out
}

// targetStrings renders one target line per objective that carries a
// target; optional segments are appended only when present.
func targetStrings(objectives []nego.Objective) []string {
	var out []string
	for _, o := range objectives {
		if strings.TrimSpace(o.Target) == "" {
			continue
		}
		line := fmt.Sprintf("IMPORTANT Target for %q: %s", o.Objective, o.Target)
		if o.Unit != "" {
			line += " " + o.Unit
		}
		if o.CurrentValue != "" {
			line += fmt.Sprintf(" (current value: %s)", o.CurrentValue)
		}
		if o.CurrentOffer != "" {
			line += fmt.Sprintf(" (latest offer: %s)", o.CurrentOffer)
		}
		if o.Reason != "" {
			line += fmt.Sprintf(" because %s", o.Reason)
		}
		out = append(out, line)
	}
	return out
}

func skuContext(skus []nego.SKU) string {
	if len(skus) == 0 {
		return ""
	}
	parts := make([]string, 0, len(skus))
	for _, s := range skus {
		parts = append(parts, fmt.Sprintf("%s (unit price %s%.2f per %s, spend %s%.2f)",
			s.Name, s.CurrencySymbol, s.UnitPrice, s.UOM, s.CurrencySymbol, s.Spend))
	}
	return "SKUs in scope: " + strings.Join(parts, "; ")
}

// renderLeverage formats carrots or sticks for the prompt; the NA
// sentinel clears the list no matter what is pinned.
func renderLeverage(items []nego.CarrotStick, priority string) []string {
	if strings.EqualFold(strings.TrimSpace(priority), "NA") {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		line := fmt.Sprintf("%d %s: %s %s", i+1, item.Title, item.Parameter, item.Value)
		if priority != "" {
			line += fmt.Sprintf(" [priority: %s]", priority)
		}
		out = append(out, line)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
