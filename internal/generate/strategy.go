package generate

import (
	"context"
	"fmt"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/nego"
	"negofactory/internal/refdata"
	"negofactory/internal/workflow"
)

// strategyKeys orders the sourcing-approach map for rendering.
var strategyKeys = []string{"market_approach", "pricing_methodology", "contracting_methodology"}

// Strategy recommends the sourcing approach: the market approach map
// filtered by incumbency and positioning, plus the category's pricing
// and contracting methodology defaults.
func (g *Generator) Strategy(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	prof, err := g.resolveProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	pins := mergedPins(req)

	catPos := ""
	if pins.CategoryPositioning != nil {
		catPos = pins.CategoryPositioning.Value
	}
	row := req.Reference.StrategyFor(req.Category)
	if catPos == "" {
		complexity := ""
		if row != nil {
			complexity = row.MarketComplexity
		}
		catPos = refdata.CategoryPositioning(prof.PercentageSpendAcrossCategoryYTD, complexity)
	}

	options := req.Reference.FilterMarket(prof.SupplierCountInCategory, catPos, prof.SupplierRelationship)
	if len(options) == 0 {
		return nil, nego.Userf("Market approach not found based on the selected parameters. Please change the parameters to get a relevant market approach for strategy.")
	}

	strategy := map[string]nego.ValueDetail{
		"market_approach": {Value: options[0].MarketApproach, Details: options[0].Details},
	}
	if row != nil {
		if len(row.PricingMethodology) > 0 {
			strategy["pricing_methodology"] = nego.ValueDetail{Value: row.PricingMethodology[0]}
		}
		if len(row.ContractingMethodology) > 0 {
			strategy["contracting_methodology"] = nego.ValueDetail{Value: row.ContractingMethodology[0]}
		}
	}

	env := envelope.New("strategy",
		"Great! Based on our expertise, here is the best negotiation strategy to adopt:\n"+renderStrategy(strategy),
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentStrategy, req.Pinned, req.UserQuery)))
	env.NegotiationStrategy = strategy
	return env, nil
}

// StrategyChange mutates one leg of the pinned sourcing approach, or
// lists the alternatives when the user asks what can change.
func (g *Generator) StrategyChange(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	q := strings.ToLower(req.UserQuery)

	// Positioning changes ride the strategy-change intent too.
	switch {
	case strings.Contains(q, "category positioning"):
		return g.CategoryPositioning(ctx, req)
	case strings.Contains(q, "supplier positioning"):
		return g.SupplierPositioning(ctx, req)
	case strings.Contains(q, "buyer positioning"):
		return g.BuyerAttractiveness(ctx, req)
	}

	prof, err := g.resolveProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	row := req.Reference.StrategyFor(req.Category)
	pins := mergedPins(req)

	strategy := map[string]nego.ValueDetail{}
	for k, v := range pins.NegotiationStrategy {
		strategy[k] = v
	}

	if target, ok := strings.CutPrefix(q, "change to "); ok {
		return g.applyStrategyChange(req, strategy, row, prof, strings.TrimSpace(target))
	}

	// "Change <leg>" lists what the leg can change to.
	var choices []string
	switch {
	case strings.Contains(q, "pricing"):
		if row != nil {
			choices = row.PricingMethodology
		}
	case strings.Contains(q, "contracting"):
		if row != nil {
			choices = row.ContractingMethodology
		}
	default:
		auction := ""
		if row != nil {
			auction = row.AuctionPotential
		}
		choices = req.Reference.Alternatives(auction, prof.SupplierCountInCategory)
	}
	if len(choices) == 0 {
		return nil, nego.Userf("No alternative options found for the requested change.")
	}
	prompts := make([]nego.Prompt, 0, len(choices))
	for _, c := range choices {
		prompts = append(prompts, nego.Prompt{Prompt: "Change to " + c, Intent: workflow.IntentStrategyChange})
	}
	return envelope.New("strategy_change",
		"Here are the options you can change to:\n- "+strings.Join(choices, "\n- "),
		envelope.WithPrompts(prompts)), nil
}

// applyStrategyChange matches the requested value against each leg's
// option list and rewrites that leg.
func (g *Generator) applyStrategyChange(req *workflow.Request, strategy map[string]nego.ValueDetail, row *refdata.StrategyRow, prof *nego.SupplierProfile, target string) (*envelope.Envelope, error) {
	auction := ""
	if row != nil {
		auction = row.AuctionPotential
	}
	for _, approach := range req.Reference.Alternatives(auction, prof.SupplierCountInCategory) {
		if strings.EqualFold(approach, target) {
			strategy["market_approach"] = nego.ValueDetail{Value: approach, Details: marketDetails(req.Reference, approach)}
			return g.strategyChanged(req, strategy), nil
		}
	}
	if row != nil {
		for _, p := range row.PricingMethodology {
			if strings.EqualFold(p, target) {
				strategy["pricing_methodology"] = nego.ValueDetail{Value: p}
				return g.strategyChanged(req, strategy), nil
			}
		}
		for _, c := range row.ContractingMethodology {
			if strings.EqualFold(c, target) {
				strategy["contracting_methodology"] = nego.ValueDetail{Value: c}
				return g.strategyChanged(req, strategy), nil
			}
		}
	}
	return nil, nego.Userf("%q is not a valid option for the current strategy. Please pick one of the suggested changes.", target)
}

func (g *Generator) strategyChanged(req *workflow.Request, strategy map[string]nego.ValueDetail) *envelope.Envelope {
	env := envelope.New("strategy_change",
		"Sourcing approach updated:\n"+renderStrategy(strategy),
		envelope.WithPrompts(workflow.ApproachPrompts(workflow.IntentStrategyChange, req.Pinned, req.UserQuery)))
	env.NegotiationStrategy = strategy
	return env
}

func marketDetails(ref *refdata.Data, approach string) string {
	if ref == nil {
		return ""
	}
	for _, opt := range ref.MarketMap {
		if strings.EqualFold(opt.MarketApproach, approach) {
			return opt.Details
		}
	}
	return ""
}

// renderStrategy formats the strategy map in canonical key order.
func renderStrategy(strategy map[string]nego.ValueDetail) string {
	var lines []string
	for _, key := range strategyKeys {
		vd, ok := strategy[key]
		if !ok {
			continue
		}
		label := titleCase(strings.ReplaceAll(key, "_", " "))
		line := fmt.Sprintf("**%s**: %s", label, vd.Value)
		if vd.Details != "" {
			line += " - " + vd.Details
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
