package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/insights"
	"negofactory/internal/llm"
	"negofactory/internal/nego"
	"negofactory/internal/workflow"
)

// InsightsMasterTable holds the pre-computed insight buckets per
// supplier and category.
const InsightsMasterTable = "DATA.NEGOTIATION_INSIGHTS_MASTER"

// The four insight buckets shown on the insights screen.
var insightBuckets = []string{"spend", "market", "supplier", "opportunity"}

// maxInsightPool bounds the flat pinnable insight list.
const maxInsightPool = 10

const insightsPrompt = `You are a procurement analyst preparing a negotiation.
From the KPI tables below, write concise, quantified insights about the
supplier. Each insight must name the analytic it came from. Return JSON:
{"insights": [{"insight": "...", "insight_objective": "...",
"analytics_name": "...", "reinforcement": "...", "opportunity": 0.0}]}.
insight_objective is the negotiation lever the insight supports, for example
"price reduction" or "payment terms".`

const bucketPrompt = `You are a procurement analyst. Summarise the KPI tables
below into 3 to 5 short bullet insights about the %s dimension of this
supplier relationship. Return JSON: {"insights": ["...", "..."]}.`

// Insights assembles the per-bucket negotiation insights plus a flat
// pinnable pool. Pre-computed buckets come from the master table; the
// model fills whatever buckets are missing from the live analytics.
func (g *Generator) Insights(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	supplier := req.SupplierName()
	if supplier == "" {
		return nil, nego.Userf("Please select a supplier before generating insights.")
	}

	buckets, err := g.masterBuckets(ctx, supplier, req.Category)
	if err != nil {
		return nil, err
	}

	analytics, err := g.extractor.Extract(ctx, supplier, req.Category, req.SKUNames())
	if err != nil {
		return nil, err
	}

	for _, bucket := range insightBuckets {
		if _, ok := buckets[bucket]; ok {
			continue
		}
		filled := g.fillBucket(ctx, bucket, analytics)
		if filled != nil {
			buckets[bucket] = filled
		}
	}

	currency := nego.CurrencySymbol(req.Currency)
	pool := g.insightPool(ctx, supplier, currency, analytics)

	env := envelope.New("negotiation_insights_all",
		fmt.Sprintf("Here are the negotiation insights for %s.", supplier),
		envelope.WithPrompts([]nego.Prompt{{Prompt: "Set negotiation objectives", Intent: workflow.IntentObjective}}),
		envelope.WithAdditionalData(map[string]any{"nego_insights": buckets}))
	env.Insights = pool
	env.Normalize()
	return env, nil
}

// masterBuckets reads the pre-computed insight buckets, tolerating a
// missing table or malformed bucket payloads.
func (g *Generator) masterBuckets(ctx context.Context, supplier, category string) (map[string]any, error) {
	buckets := map[string]any{}
	tbl, err := g.reader.Query(ctx, fmt.Sprintf(`
		SELECT * FROM %[1]s
		WHERE LOWER(SUPPLIER) = LOWER($1)
		  AND LOWER(CATEGORY) = LOWER($2)
		  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)`, InsightsMasterTable),
		supplier, category)
	if err != nil {
		g.logger.Printf("generate: insights master: %v", err)
		return buckets, nil
	}
	for i := 0; i < tbl.Len(); i++ {
		bucket := strings.ToLower(strings.TrimSpace(tbl.String(i, "ANALYTICS")))
		raw := tbl.String(i, "RESPONSE")
		if bucket == "" || raw == "" {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			g.logger.Printf("generate: insight bucket %s: %v", bucket, err)
			continue
		}
		buckets[bucket] = decoded
	}
	return buckets, nil
}

// fillBucket asks the model for one missing bucket. Nil on any failure;
// a missing bucket is better than a failed turn.
func (g *Generator) fillBucket(ctx context.Context, bucket string, analytics map[string]insights.Analytic) any {
	if g.model == nil || len(analytics) == 0 {
		return nil
	}
	raw, err := g.model.GenerateJSON(ctx, fmt.Sprintf(bucketPrompt, bucket), analyticsPayload(analytics))
	if err != nil {
		g.logger.Printf("generate: fill bucket %s: %v", bucket, err)
		return nil
	}
	var parsed struct {
		Insights []string `json:"insights"`
	}
	if err := llm.ParseInto(raw, &parsed); err != nil || len(parsed.Insights) == 0 {
		return nil
	}
	return parsed.Insights
}

// insightPool derives the flat pinnable insights: model-written when a
// model is wired, otherwise one deterministic line per analytic with a
// saving opportunity.
func (g *Generator) insightPool(ctx context.Context, supplier, currency string, analytics map[string]insights.Analytic) []nego.Insight {
	var pool []nego.Insight
	if g.model != nil && len(analytics) > 0 {
		raw, err := g.model.GenerateJSON(ctx, insightsPrompt, analyticsPayload(analytics))
		if err != nil {
			g.logger.Printf("generate: insight pool: %v", err)
		} else {
			var parsed struct {
				Insights []nego.Insight `json:"insights"`
			}
			if err := llm.ParseInto(raw, &parsed); err == nil {
				pool = parsed.Insights
			}
		}
	}
	if len(pool) == 0 {
		pool = fallbackInsights(supplier, analytics)
	}
	for i := range pool {
		pool[i].ID = fmt.Sprintf("NI-%d", i+1)
		pool[i].CurrencySymbol = currency
	}
	if len(pool) > maxInsightPool {
		pool = pool[:maxInsightPool]
	}
	return pool
}

// fallbackInsights states each analytic's saving opportunity, largest
// first.
func fallbackInsights(supplier string, analytics map[string]insights.Analytic) []nego.Insight {
	var out []nego.Insight
	for name, a := range analytics {
		if a.OpportunityColumn == "" || !a.Table.HasColumn(a.OpportunityColumn) {
			continue
		}
		opp := a.Table.SumFloat(a.OpportunityColumn)
		if opp <= 0 {
			continue
		}
		out = append(out, nego.Insight{
			Insight:          fmt.Sprintf("%s shows a saving opportunity of %.2f with %s.", name, opp, supplier),
			InsightObjective: "price reduction",
			AnalyticsName:    name,
			Opportunity:      opp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Opportunity > out[j].Opportunity })
	return out
}

// analyticsPayload renders the analytics as a JSON-friendly map for
// prompting.
func analyticsPayload(analytics map[string]insights.Analytic) map[string]any {
	out := make(map[string]any, len(analytics))
	for name, a := range analytics {
		out[name] = a.Table.Records()
	}
	return out
}
