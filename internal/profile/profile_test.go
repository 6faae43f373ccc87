package profile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negofactory/internal/warehouse"
)

// fakeReader serves canned tables keyed by a substring of the query.
type fakeReader struct {
	tables map[string]*warehouse.Table
}

func (f *fakeReader) Query(_ context.Context, query string, _ ...any) (*warehouse.Table, error) {
	for key, tbl := range f.tables {
		if strings.Contains(query, key) {
			return tbl, nil
		}
	}
	return warehouse.NewTable(nil, nil), nil
}

func (f *fakeReader) Select(ctx context.Context, spec warehouse.Spec) (*warehouse.Table, error) {
	return f.Query(ctx, spec.Table)
}

func (f *fakeReader) VectorSearch(context.Context, warehouse.VectorSpec, []float64, int) ([]warehouse.Document, error) {
	return nil, nil
}

func (f *fakeReader) TableNames(context.Context, string) (map[string]struct{}, error) {
	return nil, nil
}

func (f *fakeReader) ColumnNames(context.Context, string, string, []string) ([]string, error) {
	return nil, nil
}

func dimensionTable() *warehouse.Table {
	cols := []string{
		"SUPPLIER", "CATEGORY", "YEAR", "SPEND_YTD", "SPEND_LAST_YEAR",
		"SINGLE_SOURCE_SPEND_YTD", "SPEND_NO_PO_YTD",
		"PERCENTAGE_SPEND_ACROSS_CATEGORY_YTD", "NUMBER_OF_SUPPLIER_IN_CATEGORY",
		"PAYMENT_TERM_AVG", "SKU_LIST", "SUPPLIER_RELATIONSHIP",
		"CURRENCY_SYMBOL", "TOTAL_SAVING_OPPORTUNITY",
	}
	return warehouse.NewTable(cols, [][]any{
		{"Acme Bearings", "Bearings", 2025, 600.0, 500.0, 100.0, 60.0, 30.0, 4, 31.0, `["SKU-1","SKU-2"]`, "Preferred", "EUR", 12.0},
		{"Acme Bearings", "Bearings", 2025, 400.0, 300.0, 100.0, 40.0, 20.0, 4, 29.0, `["SKU-2","SKU-3"]`, "Preferred", "EUR", 8.0},
		{"Apex Industrial", "Bearings", 2025, 200.0, 150.0, 0.0, 10.0, 10.0, 4, 45.0, `["SKU-9"]`, "", "USD", 1.0},
	})
}

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	a, err := New(&fakeReader{tables: map[string]*warehouse.Table{
		"NEGO_SUPPLIER_MASTER": dimensionTable(),
	}}, nil, 20, 10)
	require.NoError(t, err)
	return a
}

func TestResolveExactMatchAggregates(t *testing.T) {
	a := newAssembler(t)
	p, sug, err := a.Resolve(context.Background(), "Bearings", "acme bearings")
	require.NoError(t, err)
	require.Nil(t, sug)
	require.NotNil(t, p)

	assert.Equal(t, "Acme Bearings", p.SupplierName)
	assert.Equal(t, 2025, p.Period)
	assert.Equal(t, 1000.0, p.SpendYTD)
	assert.Equal(t, 800.0, p.SpendLastYear)
	assert.Equal(t, 50.0, p.PercentageSpendAcrossCategoryYTD)
	assert.Equal(t, 4, p.SupplierCountInCategory)
	assert.Equal(t, 30, p.AveragePaymentTermDays)
	assert.Equal(t, []string{"SKU-1", "SKU-2", "SKU-3"}, p.SKUs)
	assert.Equal(t, 3, p.NumberOfSKUs)
	assert.Equal(t, "€", p.CurrencySymbol)
	assert.Equal(t, 0.2, p.PercentageSingleSourced)
	assert.Equal(t, 0.1, p.PercentageWithoutPO)
	assert.Equal(t, 20.0, p.Savings["total saving opportunity"])
}

func TestResolveAmbiguousPrefix(t *testing.T) {
	a := newAssembler(t)
	p, sug, err := a.Resolve(context.Background(), "Bearings", "Ac")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NotNil(t, sug)
	assert.Equal(t, "ambiguous", sug.Kind)
	assert.Contains(t, sug.Candidates, "Acme Bearings")
}

func TestResolveNotFound(t *testing.T) {
	a := newAssembler(t)
	p, sug, err := a.Resolve(context.Background(), "Bearings", "Zenith")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NotNil(t, sug)
	assert.Equal(t, "not_found", sug.Kind)
	assert.Empty(t, sug.Candidates)
}

func TestProfilesSortedBySpend(t *testing.T) {
	a := newAssembler(t)
	out, err := a.Profiles(context.Background(), "Bearings", []string{"Apex Industrial", "Acme Bearings"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Acme Bearings", out[0].SupplierName)
	assert.Equal(t, "Apex Industrial", out[1].SupplierName)
}

func TestParseListing(t *testing.T) {
	kind, n, ok := ParseListing("Top 5 suppliers by spend")
	require.True(t, ok)
	assert.Equal(t, ScriptTopSupplier, kind)
	assert.Equal(t, 5, n)

	kind, _, ok = ParseListing("10 single source suppliers")
	require.True(t, ok)
	assert.Equal(t, ScriptSingleSource, kind)

	kind, _, ok = ParseListing("suppliers with largest YoY spend evolution")
	require.True(t, ok)
	assert.Equal(t, ScriptLargestGap, kind)

	_, _, ok = ParseListing("what is the weather")
	assert.False(t, ok)
}
