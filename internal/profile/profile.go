// Package profile resolves supplier names against the warehouse
// dimension and assembles the enriched supplier profile the workflow
// pins for the rest of the negotiation.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"negofactory/internal/nego"
	"negofactory/internal/warehouse"
)

// SupplierMasterTable is the per-supplier dimension, one row per
// (supplier, category, analytic) at the latest year.
const SupplierMasterTable = "DATA.NEGO_SUPPLIER_MASTER"

// Suggestion is returned when a raw supplier name does not resolve to
// exactly one dimension row set.
type Suggestion struct {
	Kind       string   // "ambiguous" or "not_found"
	Candidates []string // descending similarity
}

// Assembler resolves and enriches supplier profiles. The supplier
// dimension slice is cached per category.
type Assembler struct {
	reader          warehouse.Reader
	logger          *log.Logger
	maxSKUs         int
	fuzzyCandidates int
	cache           *lru.Cache[string, *warehouse.Table]
}

// New builds an Assembler. maxSKUs bounds the SKU names carried in a
// profile; fuzzyCandidates bounds ambiguity suggestions.
func New(reader warehouse.Reader, logger *log.Logger, maxSKUs, fuzzyCandidates int) (*Assembler, error) {
	if maxSKUs <= 0 {
		maxSKUs = 20
	}
	if fuzzyCandidates <= 0 {
		fuzzyCandidates = 10
	}
	cache, err := lru.New[string, *warehouse.Table](32)
	if err != nil {
		return nil, fmt.Errorf("profile: cache: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{
		reader:          reader,
		logger:          logger,
		maxSKUs:         maxSKUs,
		fuzzyCandidates: fuzzyCandidates,
		cache:           cache,
	}, nil
}

// Resolve maps a raw supplier string to an enriched profile. An exact
// case-insensitive match wins; otherwise prefix candidates ranked by
// token-set similarity come back as an ambiguity suggestion; no
// candidates at all yields a not-found suggestion.
func (a *Assembler) Resolve(ctx context.Context, category, raw string) (*nego.SupplierProfile, *Suggestion, error) {
	dim, err := a.dimension(ctx, category)
	if err != nil {
		return nil, nil, err
	}
	names := supplierNames(dim)
	raw = strings.TrimSpace(raw)

	for _, name := range names {
		if strings.EqualFold(name, raw) {
			p := a.assemble(filterSupplier(dim, name), category)
			return p, nil, nil
		}
	}

	for _, width := range []int{2, 1} {
		candidates := prefixCandidates(names, raw, width)
		if len(candidates) == 0 {
			continue
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return fuzzy.TokenSetRatio(strings.ToLower(raw), strings.ToLower(candidates[i])) >
				fuzzy.TokenSetRatio(strings.ToLower(raw), strings.ToLower(candidates[j]))
		})
		if len(candidates) > a.fuzzyCandidates {
			candidates = candidates[:a.fuzzyCandidates]
		}
		return nil, &Suggestion{Kind: "ambiguous", Candidates: candidates}, nil
	}

	return nil, &Suggestion{Kind: "not_found"}, nil
}

// Profiles assembles enriched profiles for the named suppliers,
// descending by spend.
func (a *Assembler) Profiles(ctx context.Context, category string, names []string) ([]nego.SupplierProfile, error) {
	dim, err := a.dimension(ctx, category)
	if err != nil {
		return nil, err
	}
	known := supplierNames(dim)
	var out []nego.SupplierProfile
	for _, name := range names {
		for _, k := range known {
			if strings.EqualFold(k, name) {
				out = append(out, *a.assemble(filterSupplier(dim, k), category))
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SpendYTD > out[j].SpendYTD })
	return out, nil
}

func (a *Assembler) dimension(ctx context.Context, category string) (*warehouse.Table, error) {
	key := strings.ToLower(category)
	if cached, ok := a.cache.Get(key); ok {
		return cached, nil
	}
	tbl, err := a.reader.Query(ctx,
		"SELECT * FROM "+SupplierMasterTable+
			" WHERE LOWER(CATEGORY) = LOWER($1)"+
			" AND YEAR = (SELECT MAX(YEAR) FROM "+SupplierMasterTable+")", category)
	if err != nil {
		return nil, fmt.Errorf("profile: supplier dimension: %w", err)
	}
	a.cache.Add(key, tbl)
	return tbl, nil
}

// assemble aggregates the dimension rows of a single supplier into one
// serialisable profile: sums for spend and savings figures, means for
// counts, unions for SKU lists, first value for categoricals.
func (a *Assembler) assemble(rows *warehouse.Table, category string) *nego.SupplierProfile {
	p := &nego.SupplierProfile{
		SupplierName:                     rows.FirstString("SUPPLIER"),
		CategoryName:                     category,
		Period:                           int(rows.MaxFloat("YEAR")),
		SpendYTD:                         round2(rows.SumFloat("SPEND_YTD")),
		SpendLastYear:                    round2(rows.SumFloat("SPEND_LAST_YEAR")),
		SingleSourceSpendYTD:             round2(rows.SumFloat("SINGLE_SOURCE_SPEND_YTD")),
		SpendNoPOYTD:                     round2(rows.SumFloat("SPEND_NO_PO_YTD")),
		PercentageSpendAcrossCategoryYTD: round2(rows.SumFloat("PERCENTAGE_SPEND_ACROSS_CATEGORY_YTD")),
		SupplierRelationship:             rows.FirstString("SUPPLIER_RELATIONSHIP"),
		Savings:                          map[string]float64{},
	}

	p.SupplierCountInCategory = int(math.Round(rows.MeanFloat("NUMBER_OF_SUPPLIER_IN_CATEGORY")))
	p.AveragePaymentTermDays = int(math.Round(rows.MeanFloat("PAYMENT_TERM_AVG")))

	skus := skuUnion(rows)
	p.NumberOfSKUs = len(skus)
	if len(skus) > a.maxSKUs {
		skus = skus[:a.maxSKUs]
	}
	p.SKUs = skus

	p.CurrencySymbol = nego.CurrencySymbol(rows.FirstString("CURRENCY_SYMBOL"))
	p.CurrencyPosition = nego.CurrencyPosition

	denom := p.SpendYTD
	if denom == 0 {
		denom = 1
	}
	p.PercentageSingleSourced = round1(p.SingleSourceSpendYTD / denom)
	p.PercentageWithoutPO = round1(p.SpendNoPOYTD / denom)

	for _, col := range rows.Columns() {
		if !strings.Contains(strings.ToUpper(col), "SAVING") {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(col, "_", " "))
		p.Savings[key] = round2(rows.SumFloat(col))
	}
	return p
}

func supplierNames(dim *warehouse.Table) []string {
	seen := map[string]struct{}{}
	var names []string
	for i := 0; i < dim.Len(); i++ {
		name := strings.TrimSpace(dim.String(i, "SUPPLIER"))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func filterSupplier(dim *warehouse.Table, name string) *warehouse.Table {
	return dim.Filter(func(i int) bool {
		return strings.EqualFold(dim.String(i, "SUPPLIER"), name)
	})
}

func prefixCandidates(names []string, raw string, width int) []string {
	if len(raw) < width {
		return nil
	}
	prefix := strings.ToLower(raw[:width])
	var out []string
	for _, name := range names {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			out = append(out, name)
		}
	}
	return out
}

// skuUnion flattens the SKU_LIST column into an order-preserving
// deduplicated list. The column holds either a JSON array or a
// comma-separated string per row.
func skuUnion(rows *warehouse.Table) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for i := 0; i < rows.Len(); i++ {
		raw := strings.TrimSpace(rows.String(i, "SKU_LIST"))
		if raw == "" {
			continue
		}
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			for _, s := range list {
				add(s)
			}
			continue
		}
		for _, s := range strings.Split(strings.Trim(raw, "[]{}"), ",") {
			add(strings.Trim(s, `" `))
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
