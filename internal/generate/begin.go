package generate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"negofactory/internal/envelope"
	"negofactory/internal/nego"
	"negofactory/internal/profile"
	"negofactory/internal/warehouse"
	"negofactory/internal/workflow"
)

// Begin resolves the supplier the user named and pins its profile. An
// ambiguous name comes back as a pick list; the picked entry re-enters
// through the supplier_name rewrite.
func (g *Generator) Begin(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	name := req.SupplierName()
	if name == "" {
		name = strings.TrimSpace(req.UserQuery)
	}
	if name == "" {
		return envelope.New("general",
			"Please provide the supplier you would like to negotiate with, or pick a listing below.",
			envelope.WithPrompts(workflow.SectionPrompts(workflow.SectionSelectSupplier))), nil
	}

	prof, suggestion, err := g.profiles.Resolve(ctx, req.Category, name)
	if err != nil {
		return nil, err
	}
	if suggestion != nil {
		if len(suggestion.Candidates) == 0 {
			return envelope.New("general",
				fmt.Sprintf("We could not find the supplier %s in %s, for current year. Please check the supplier name or pick a listing below.", name, req.Category),
				envelope.WithPrompts(workflow.SectionPrompts(workflow.SectionSelectSupplier))), nil
		}
		prompts := make([]nego.Prompt, 0, len(suggestion.Candidates))
		for _, candidate := range suggestion.Candidates {
			prompts = append(prompts, nego.Prompt{Prompt: candidate, Intent: "supplier_name|" + workflow.IntentBegin})
		}
		return envelope.New("supplier_details",
			fmt.Sprintf("We could not find the exact %s in %s, for current year. Is the supplier you are looking for one of these?", name, req.Category),
			envelope.WithPrompts(prompts)), nil
	}

	return envelope.New("supplier_details",
		fmt.Sprintf("Thank you for selecting %s. Here are few probable next steps:", prof.SupplierName),
		envelope.WithSupplierProfile(prof),
		envelope.WithPrompts([]nego.Prompt{{Prompt: "Select SKUs", Intent: workflow.IntentSelectSKUs}})), nil
}

// Init runs one of the supplier listing scripts and enriches the listed
// suppliers with full profiles so the front end can pin directly.
func (g *Generator) Init(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	kind, n, ok := profile.ParseListing(req.UserQuery)
	if !ok {
		return nil, &nego.UserError{Message: "Not valid user request with request type negotiation_init"}
	}
	tbl, msg, err := g.profiles.Listing(ctx, req.Category, kind, n)
	if err != nil {
		return nil, err
	}

	var names []string
	var prompts []nego.Prompt
	for _, name := range tbl.Strings("supplier_name") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
		prompts = append(prompts, nego.Prompt{Prompt: name, Intent: "supplier_name|" + workflow.IntentBegin})
	}
	profs, err := g.profiles.Profiles(ctx, req.Category, names)
	if err != nil {
		g.logger.Printf("generate: enrich listing profiles: %v", err)
	}

	env := envelope.New("init", msg,
		envelope.WithPrompts(workflow.Distinct(prompts)),
		envelope.WithAdditionalData(map[string]any{"supplier_data": tbl.Records()}))
	env.SuppliersProfiles = profs
	env.Normalize()
	return env, nil
}

// Scoping lists the supplier's SKUs for the latest year, one row per
// SKU with a quantity-weighted unit price and the modal UOM.
func (g *Generator) Scoping(ctx context.Context, req *workflow.Request) (*envelope.Envelope, error) {
	supplier := req.SupplierName()
	if supplier == "" {
		return nil, nego.Userf("Please select a supplier before selecting SKUs.")
	}

	tbl, err := g.reader.Query(ctx, fmt.Sprintf(`
		SELECT * FROM %[1]s
		WHERE LOWER(SUPPLIER_NAME) = LOWER($1)
		  AND LOWER(CATEGORY) = LOWER($2)
		  AND SKU_ID != '-1'
		  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)`, profile.SKUDetailTable),
		supplier, req.Category)
	if err != nil {
		return nil, fmt.Errorf("generate: sku detail: %w", err)
	}
	if tbl.Empty() {
		return nil, nego.Userf("No SKU data found for supplier %s in category %s. Please select another supplier.", supplier, req.Category)
	}

	currency := nego.CurrencySymbol(tbl.FirstString("REPORTING_CURRENCY"))
	skus := aggregateSKUs(tbl, currency)

	msg := fmt.Sprintf("Here are the SKUs sourced from %s. Select the SKUs you want in scope for this negotiation.", supplier)
	if len(skus) == 1 {
		msg = fmt.Sprintf("%s supplies a single SKU in %s. It has been added to the negotiation scope.", supplier, req.Category)
	}
	return envelope.New("select_skus", msg,
		envelope.WithPrompts([]nego.Prompt{
			{Prompt: "Generate negotiation insights", Intent: workflow.IntentInsights},
			{Prompt: "Set negotiation objectives", Intent: workflow.IntentObjective},
		}),
		func(e *envelope.Envelope) { e.SKUs = skus }), nil
}

// aggregateSKUs collapses transactional rows into one entry per SKU:
// quantities and spend sum, the unit price is quantity weighted and the
// UOM is the most frequent one.
func aggregateSKUs(tbl *warehouse.Table, currency string) []nego.SKU {
	type agg struct {
		sku      nego.SKU
		priceSum float64
		weight   float64
		uomCount map[string]int
	}
	order := []string{}
	groups := map[string]*agg{}

	for i := 0; i < tbl.Len(); i++ {
		id := tbl.String(i, "SKU_ID")
		a, ok := groups[id]
		if !ok {
			a = &agg{
				sku:      nego.SKU{ID: id, Name: tbl.String(i, "SKU_NAME"), CurrencySymbol: currency},
				uomCount: map[string]int{},
			}
			groups[id] = a
			order = append(order, id)
		}
		qty := tbl.Float(i, "QUANTITY")
		a.sku.Quantity += qty
		a.sku.Spend += tbl.Float(i, "SPEND")
		a.priceSum += tbl.Float(i, "UNIT_PRICE") * qty
		a.weight += qty
		if uom := strings.TrimSpace(tbl.String(i, "UOM")); uom != "" {
			a.uomCount[uom]++
		}
	}

	out := make([]nego.SKU, 0, len(order))
	for _, id := range order {
		a := groups[id]
		if a.weight != 0 {
			a.sku.UnitPrice = a.priceSum / a.weight
		}
		best := 0
		for uom, n := range a.uomCount {
			if n > best {
				best = n
				a.sku.UOM = uom
			}
		}
		out = append(out, a.sku)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spend > out[j].Spend })
	return out
}
