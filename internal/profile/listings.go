package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"negofactory/internal/nego"
	"negofactory/internal/warehouse"
)

// Warehouse tables backing the supplier listings.
const (
	SKUDetailTable           = "DATA.T_C_NEGOTIATION_FACTORY_T2"
	SupplierOpportunityTable = "DATA.NEGO_SUPPLIER_OPPORTUNITY"
)

// ScriptKind selects one of the supplier listing scripts offered at
// negotiation start.
type ScriptKind string

const (
	ScriptTopSupplier    ScriptKind = "top_supplier"
	ScriptTailSpend      ScriptKind = "top_suppliers_tail_spend"
	ScriptSingleSource   ScriptKind = "highest_single_spend"
	ScriptMissingPO      ScriptKind = "spend_without_po"
	ScriptLargestGap     ScriptKind = "largest_gap"
	ScriptTopOpportunity ScriptKind = "top_supplier_by_opportunity"
)

// percentage columns are rounded and, when a listing's total exceeds
// 110, treated as basis values and scaled down.
var percentageColumns = []string{
	"percentage_spend_contribution",
	"percentage_change_in_spend",
	"percentage_spend_without_po",
	"percentage_spend_single_source_spend",
	"total_opportunity_percentage",
}

// Listing runs one supplier listing script and renders its summary
// message. The returned table is already normalised for serialisation.
func (a *Assembler) Listing(ctx context.Context, category string, kind ScriptKind, n int) (*warehouse.Table, string, error) {
	if n <= 0 {
		n = 10
	}
	var (
		tbl *warehouse.Table
		err error
	)
	switch kind {
	case ScriptTopSupplier, ScriptTailSpend:
		tbl, err = a.spendListing(ctx, category, kind == ScriptTopSupplier, n)
	case ScriptTopOpportunity:
		tbl, err = a.opportunityListing(ctx, category, n)
	case ScriptLargestGap:
		tbl, err = a.reader.Query(ctx, fmt.Sprintf(`
			SELECT SUPPLIER AS supplier_name,
			       SUM(SPEND_YTD) AS spend,
			       MAX(CURRENCY_SYMBOL) AS currency_symbol,
			       SUM(PERCENTAGE_SPEND_ACROSS_CATEGORY_YTD) AS percentage_spend_contribution,
			       SUM(PERCENTAGE_SPEND_ACROSS_CATEGORY_YTD - PERCENTAGE_SPEND_ACROSS_CATEGORY_LAST_YEAR) AS percentage_change_in_spend
			FROM %[1]s
			WHERE LOWER(CATEGORY) = LOWER($1)
			  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)
			GROUP BY SUPPLIER
			ORDER BY percentage_change_in_spend DESC
			LIMIT %[2]d`, SupplierMasterTable, n), category)
	case ScriptMissingPO:
		tbl, err = a.reader.Query(ctx, fmt.Sprintf(`
			SELECT SUPPLIER AS supplier_name,
			       SUM(SPEND_NO_PO_YTD) AS spend_no_po_ytd,
			       SUM(SPEND_YTD) AS spend,
			       MAX(CURRENCY_SYMBOL) AS currency_symbol,
			       CASE WHEN SUM(SPEND_YTD) = 0 THEN NULL
			            ELSE SUM(SPEND_NO_PO_YTD) * 100.0 / NULLIF(SUM(SPEND_YTD), 0)
			       END AS percentage_spend_without_po
			FROM %[1]s
			WHERE LOWER(CATEGORY) = LOWER($1)
			  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)
			GROUP BY SUPPLIER
			ORDER BY spend_no_po_ytd DESC
			LIMIT %[2]d`, SupplierMasterTable, n), category)
	case ScriptSingleSource:
		tbl, err = a.reader.Query(ctx, fmt.Sprintf(`
			SELECT SUPPLIER AS supplier_name,
			       YEAR,
			       SUM(SPEND_YTD) AS spend,
			       SUM(SINGLE_SOURCE_SPEND_YTD) AS single_source_spend,
			       MAX(CURRENCY_SYMBOL) AS currency_symbol
			FROM %[1]s
			WHERE LOWER(CATEGORY) = LOWER($1)
			  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)
			GROUP BY SUPPLIER, YEAR
			ORDER BY single_source_spend DESC
			LIMIT %[2]d`, SupplierMasterTable, n), category)
	default:
		return nil, "", &nego.UserError{Message: "Not valid user request with request type negotiation_init"}
	}
	if err != nil {
		return nil, "", fmt.Errorf("profile: listing %s: %w", kind, err)
	}
	if tbl.Empty() {
		return nil, "", &nego.UserError{
			Message: fmt.Sprintf("Requested supplier data not found for category: %s. Please select another category.", category),
		}
	}
	normalizePercentages(tbl)
	msg, err := a.listingMessage(ctx, category, kind, n, tbl)
	if err != nil {
		return nil, "", err
	}
	return tbl, msg, nil
}

// spendListing is the top/tail spend listing restricted to suppliers
// with transactional SKU rows.
func (a *Assembler) spendListing(ctx context.Context, category string, top bool, n int) (*warehouse.Table, error) {
	order := "DESC"
	if !top {
		order = "ASC"
	}
	tbl, err := a.reader.Query(ctx, fmt.Sprintf(`
		SELECT SUPPLIER AS supplier_name,
		       YEAR,
		       SUM(SPEND_YTD) AS spend,
		       MAX(CURRENCY_SYMBOL) AS currency_symbol,
		       ROUND(SUM(PERCENTAGE_SPEND_ACROSS_CATEGORY_YTD)::numeric, 2) AS percentage_spend_contribution
		FROM %[1]s
		WHERE LOWER(CATEGORY) = LOWER($1)
		  AND NUMBER_OF_SKU >= 1
		  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)
		GROUP BY SUPPLIER, YEAR
		ORDER BY SUM(SPEND_YTD) %[2]s
		LIMIT %[3]d`, SupplierMasterTable, order, n), category)
	if err != nil {
		return nil, err
	}
	valid, err := a.reader.Query(ctx,
		"SELECT DISTINCT SUPPLIER_NAME AS supplier_name FROM "+SKUDetailTable+" WHERE SKU_ID != '-1'")
	if err != nil {
		return nil, err
	}
	known := map[string]struct{}{}
	for i := 0; i < valid.Len(); i++ {
		known[valid.String(i, "supplier_name")] = struct{}{}
	}
	return tbl.Filter(func(i int) bool {
		_, ok := known[tbl.String(i, "supplier_name")]
		return ok
	}), nil
}

func (a *Assembler) opportunityListing(ctx context.Context, category string, n int) (*warehouse.Table, error) {
	return a.reader.Query(ctx, fmt.Sprintf(`
		WITH total_opp AS (
			SELECT YEAR, CATEGORY, SUPPLIER, SUM(KPI_VALUE) AS supplier_opportunity
			FROM %[1]s
			WHERE CATEGORY = $1
			  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)
			  AND KPI_NAME = 'Total saving opportunity'
			GROUP BY YEAR, CATEGORY, SUPPLIER
		),
		spend_data AS (
			SELECT YEAR, CATEGORY, SUM(KPI_VALUE) AS total_opportunity
			FROM %[1]s
			WHERE CATEGORY = $1
			  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)
			  AND KPI_NAME = 'Total saving opportunity'
			GROUP BY YEAR, CATEGORY
		)
		SELECT sd.YEAR, sd.CATEGORY, topp.SUPPLIER AS supplier_name,
		       sd.total_opportunity,
		       COALESCE(topp.supplier_opportunity, 0) AS opportunity,
		       CASE WHEN sd.total_opportunity > 0
		            THEN (topp.supplier_opportunity / sd.total_opportunity) * 100
		            ELSE 0 END AS total_opportunity_percentage
		FROM spend_data sd
		LEFT JOIN total_opp topp ON sd.YEAR = topp.YEAR AND sd.CATEGORY = topp.CATEGORY
		ORDER BY total_opportunity_percentage DESC
		LIMIT %[2]d`, SupplierOpportunityTable, n), category)
}

func (a *Assembler) listingMessage(ctx context.Context, category string, kind ScriptKind, n int, tbl *warehouse.Table) (string, error) {
	year := int(tbl.MaxFloat("YEAR"))
	if year == 0 {
		year = time.Now().Year()
	}
	ytd := fmt.Sprintf("%d", year)
	if year == time.Now().Year() {
		ytd = fmt.Sprintf("%d YTD", year)
	}

	switch kind {
	case ScriptTopSupplier:
		total := tbl.SumFloat("percentage_spend_contribution")
		if total < 0.1 {
			return fmt.Sprintf("Here are the top %d suppliers, accounting for %.2f%% of %s spend in the %s category.", n, total, ytd, category), nil
		}
		return fmt.Sprintf("Here are the top %d suppliers, accounting for %.2f%% of %s spend in the %s category. See below the spend breakdown.", n, total, ytd, category), nil
	case ScriptTailSpend:
		total := tbl.SumFloat("percentage_spend_contribution")
		if total < 0.1 {
			return fmt.Sprintf("Here are the tail %d suppliers based on total spend in %s.", n, ytd), nil
		}
		return fmt.Sprintf("Here are the tail %d suppliers, contributing to %.2f%% of total spend in %s. See below the spend breakdown.", n, total, ytd), nil
	case ScriptTopOpportunity:
		total := tbl.SumFloat("total_opportunity_percentage")
		if total < 0.1 {
			return fmt.Sprintf("Here are the top %d suppliers by opportunity, accounting for %.2f in total opportunity in %s.", n, tbl.SumFloat("total_opportunity"), ytd), nil
		}
		return fmt.Sprintf("Here are the top %d suppliers by opportunity, contributing to %.2f%% of total opportunity in %s. See below the spend breakdown.", n, total, ytd), nil
	case ScriptLargestGap:
		total := tbl.SumFloat("percentage_spend_contribution")
		if total < 0.1 {
			return fmt.Sprintf("Here are the %d suppliers with the largest year-on-year gap in spend, accounting for %.2f in total spend in %s.", n, tbl.SumFloat("spend"), ytd), nil
		}
		return fmt.Sprintf("Here are the top %d suppliers with the largest year-on-year gap in spend, contributing to %.2f%% of total spend in %s. See below the spend breakdown.", n, total, ytd), nil
	case ScriptMissingPO:
		share, err := a.totalShare(ctx, category, "SPEND_NO_PO_YTD", tbl.SumFloat("spend_no_po_ytd"))
		if err != nil {
			return "", err
		}
		if share < 0.01 {
			return fmt.Sprintf("The %d suppliers without purchase orders are listed below. The total spend by these suppliers is %.2f.", n, tbl.SumFloat("spend")), nil
		}
		return fmt.Sprintf("The %d suppliers account for %.2f%% of total spend without a purchase order. See the breakdown below.", n, share), nil
	case ScriptSingleSource:
		share, err := a.totalShare(ctx, category, "SINGLE_SOURCE_SPEND_YTD", tbl.SumFloat("single_source_spend"))
		if err != nil {
			return "", err
		}
		switch {
		case share == 0:
			return fmt.Sprintf("The %d suppliers identified as single-source suppliers currently have no recorded single-source spend in %s for the %s category. See the breakdown below:", n, ytd, category), nil
		case share < 0.1:
			return fmt.Sprintf("Here are the top %d single-source suppliers, accounting for just %.2f%% of %s spend in the %s category. See the breakdown below:", n, share, ytd, category), nil
		default:
			return fmt.Sprintf("Here are the top %d single-source suppliers, accounting for %.2f%% of %s spend in the %s category. See the breakdown below:", n, share, ytd, category), nil
		}
	}
	return "", nil
}

// totalShare computes the listed suppliers' share of the category-wide
// total for one spend column.
func (a *Assembler) totalShare(ctx context.Context, category, column string, listed float64) (float64, error) {
	tbl, err := a.reader.Query(ctx, fmt.Sprintf(`
		SELECT SUM(%[2]s) AS total
		FROM %[1]s
		WHERE LOWER(CATEGORY) = LOWER($1)
		  AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)`, SupplierMasterTable, column), category)
	if err != nil {
		return 0, fmt.Errorf("profile: category total: %w", err)
	}
	total := tbl.SumFloat("total")
	if total == 0 {
		return 0, nil
	}
	return listed * 100 / total, nil
}

func normalizePercentages(tbl *warehouse.Table) {
	for _, col := range percentageColumns {
		if !tbl.HasColumn(col) {
			continue
		}
		tbl.MapFloat(col, round2)
		if tbl.SumFloat(col) > 110 {
			tbl.MapFloat(col, func(v float64) float64 { return v / 100 })
		}
	}
}

// ParseListing maps a user request onto a listing script via the
// closed phrase patterns.
func ParseListing(query string) (ScriptKind, int, bool) {
	q := strings.ToLower(query)
	n := firstNumber(q)
	switch {
	case strings.Contains(q, "tail"):
		return ScriptTailSpend, n, true
	case strings.Contains(q, "yoy") || strings.Contains(q, "year-on-year") || strings.Contains(q, "evolution") || strings.Contains(q, "gap"):
		return ScriptLargestGap, n, true
	case strings.Contains(q, "missing po") || strings.Contains(q, "without po") || strings.Contains(q, "po spend"):
		return ScriptMissingPO, n, true
	case strings.Contains(q, "single source") || strings.Contains(q, "single-source"):
		return ScriptSingleSource, n, true
	case strings.Contains(q, "opportunity"):
		return ScriptTopOpportunity, n, true
	case strings.Contains(q, "supplier") || strings.Contains(q, "vendor"):
		return ScriptTopSupplier, n, true
	}
	return "", 0, false
}

func firstNumber(s string) int {
	n := 0
	seen := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			seen = true
			continue
		}
		if seen {
			break
		}
	}
	return n
}
