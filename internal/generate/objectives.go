package generate

import (
	"context"
	"fmt"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/nego"
	"negofactory/internal/workflow"
)

// Objectives converts the pinned insights into negotiation objectives,
// one per insight objective type. With nothing pinned the insight pool
// is generated first from the live analytics.
func (g *Generator) Objectives(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	supplier := req.SupplierName()
	if supplier == "" {
		return nil, nego.Userf("Please select a supplier before setting negotiation objectives.")
	}

	source := req.Pinned.Insights
	if req.Selected != nil && len(req.Selected.Insights) > 0 {
		source = req.Selected.Insights
	}

	if len(source) == 0 {
		analytics, err := g.extractor.Extract(ctx, supplier, req.Category, req.SKUNames())
		if err != nil {
			return nil, err
		}
		if len(analytics) == 0 {
			return nil, nego.Userf("No analytics data found for supplier %s in category %s. Please change the selected SKUs or supplier.", supplier, req.Category)
		}
		source = g.insightPool(ctx, supplier, nego.CurrencySymbol(req.Currency), analytics)
	}
	if len(source) == 0 {
		return nil, nego.Userf("No insights available to derive objectives from. Please generate negotiation insights first.")
	}

	objectives := convertInsightsToObjectives(supplier, source)
	return envelope.New("objective",
		fmt.Sprintf("Here are the negotiation objectives for %s. Pin the ones you want to pursue and set their targets.", supplier),
		envelope.WithPrompts(workflow.WorkflowPrompts(req.Pinned, workflow.WorkflowOptions{
			SkipProfileCheck: true,
			CurrentStep:      nego.SectionObjectives,
		})),
		func(e *envelope.Envelope) { e.Objectives = objectives }), nil
}

// convertInsightsToObjectives groups insights by their objective type.
// Each group becomes one objective carrying the insight texts as
// reinforcements and the union of SKUs and analytics.
func convertInsightsToObjectives(supplier string, source []nego.Insight) []nego.Objective {
	order := []string{}
	grouped := map[string][]nego.Insight{}
	for _, in := range source {
		key := strings.ToLower(strings.TrimSpace(in.InsightObjective))
		if key == "" {
			key = "price reduction"
		}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], in)
	}

	out := make([]nego.Objective, 0, len(order))
	for i, key := range order {
		group := grouped[key]
		obj := nego.Objective{
			ID:            fmt.Sprintf("OBJ-%d", i+1),
			Objective:     fmt.Sprintf("Achieve %s with %s based on the identified opportunities.", key, supplier),
			ObjectiveType: key,
		}
		seenSKU := map[string]struct{}{}
		seenAnalytic := map[string]struct{}{}
		for _, in := range group {
			if strings.TrimSpace(in.Insight) != "" {
				obj.ObjectiveReinforcements = append(obj.ObjectiveReinforcements, in.Insight)
			}
			for _, sku := range in.SKUs {
				if _, ok := seenSKU[sku]; ok {
					continue
				}
				seenSKU[sku] = struct{}{}
				obj.SKUs = append(obj.SKUs, sku)
			}
			if in.AnalyticsName != "" {
				if _, ok := seenAnalytic[in.AnalyticsName]; !ok {
					seenAnalytic[in.AnalyticsName] = struct{}{}
					obj.AnalyticsNames = append(obj.AnalyticsNames, in.AnalyticsName)
				}
			}
		}
		out = append(out, obj)
	}
	return out
}
