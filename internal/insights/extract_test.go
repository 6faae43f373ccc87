package insights

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negofactory/internal/warehouse"
)

type fakeReader struct {
	mu      sync.Mutex
	tables  map[string]*warehouse.Table
	schema  map[string]struct{}
	columns map[string][]string
	queries []string
}

func (f *fakeReader) Query(_ context.Context, query string, _ ...any) (*warehouse.Table, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
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
	return f.schema, nil
}

func (f *fakeReader) ColumnNames(_ context.Context, _ string, table string, _ []string) ([]string, error) {
	return f.columns[table], nil
}

type fakeClassifier struct {
	response string
}

func (f *fakeClassifier) Name() string { return "fake" }
func (f *fakeClassifier) Close() error { return nil }

func (f *fakeClassifier) GenerateText(context.Context, string, string) (string, error) {
	return f.response, nil
}

func (f *fakeClassifier) GenerateJSON(context.Context, string, any) (json.RawMessage, error) {
	return json.RawMessage(f.response), nil
}

func TestExtractAggregatesPerYearAndMaterial(t *testing.T) {
	mapping := warehouse.NewTable(
		[]string{"CATEGORY", "KPI_NAME", "KPI_TABLE_NAME", "KPI_OPPORTUNITY_COLUMN_NAME"},
		[][]any{
			{"Bearings", "Price variance", "T_C_PRICE_VARIANCE_FRONTEND", "SAVING_OPPORTUNITY"},
			{"Bearings", "Ghost KPI", "T_C_GONE_FRONTEND", "X"},
			{"Bearings", "No supplier KPI", "T_C_NO_SUPPLIER", "Y"},
		},
	)
	analytic := warehouse.NewTable(
		[]string{"YEAR", "MATERIAL", "SUPPLIER", "UNIT_PRICE", "SAVING_OPPORTUNITY", "REGION"},
		[][]any{
			{2025, "SKU-1", "Acme", 10.0, 5.0, "EU"},
			{2025, "SKU-1", "Acme", 20.0, 3.0, "EU"},
			{2025, "SKU-2", "Acme", 7.0, 1.0, "EU"},
		},
	)
	reader := &fakeReader{
		tables: map[string]*warehouse.Table{
			"T_C_KPI_TABLE_MAPPING_FRONTEND": mapping,
			"T_C_PRICE_VARIANCE":             analytic,
		},
		schema: map[string]struct{}{
			"T_C_PRICE_VARIANCE": {},
			"T_C_NO_SUPPLIER":    {},
		},
		columns: map[string][]string{
			"T_C_PRICE_VARIANCE": {"MATERIAL", "SUPPLIER"},
			"T_C_NO_SUPPLIER":    {"MATERIAL"},
		},
	}
	cls := &fakeClassifier{response: `{"UNIT_PRICE": "mean", "SAVING_OPPORTUNITY": "sum"}`}

	out, err := New(reader, cls, nil).Extract(context.Background(), "Acme", "Bearings", []string{"SKU-1", "SKU-2"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	got, ok := out["Price variance"]
	require.True(t, ok)
	assert.Equal(t, "SAVING_OPPORTUNITY", got.OpportunityColumn)
	require.Equal(t, 2, got.Table.Len())
	assert.Equal(t, "SKU-1", got.Table.String(0, "MATERIAL"))
	assert.InDelta(t, 15.0, got.Table.Float(0, "UNIT_PRICE"), 1e-9)
	assert.InDelta(t, 8.0, got.Table.Float(0, "SAVING_OPPORTUNITY"), 1e-9)
	assert.Equal(t, "EU", got.Table.String(0, "REGION"))
}

func TestExtractEmptyMappingIsNotAnError(t *testing.T) {
	reader := &fakeReader{tables: map[string]*warehouse.Table{}}
	out, err := New(reader, nil, nil).Extract(context.Background(), "Acme", "Valves", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExtractSKUFilterAppliedOnlyWithMaterial(t *testing.T) {
	mapping := warehouse.NewTable(
		[]string{"CATEGORY", "KPI_NAME", "KPI_TABLE_NAME", "KPI_OPPORTUNITY_COLUMN_NAME"},
		[][]any{{"Bearings", "Terms", "T_C_TERMS", ""}},
	)
	analytic := warehouse.NewTable(
		[]string{"YEAR", "SUPPLIER", "DAYS"},
		[][]any{{2025, "Acme", 30.0}},
	)
	reader := &fakeReader{
		tables: map[string]*warehouse.Table{
			"T_C_KPI_TABLE_MAPPING_FRONTEND": mapping,
			"T_C_TERMS":                      analytic,
		},
		schema:  map[string]struct{}{"T_C_TERMS": {}},
		columns: map[string][]string{"T_C_TERMS": {"SUPPLIER"}},
	}
	out, err := New(reader, nil, nil).Extract(context.Background(), "Acme", "Bearings", []string{"SKU-1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	for _, q := range reader.queries {
		assert.NotContains(t, q, "MATERIAL IN")
	}
}

func TestPoolSizeBounds(t *testing.T) {
	assert.Equal(t, 1, poolSize(0, 100))
	assert.Equal(t, 2, poolSize(2, 100))
	assert.Equal(t, 1, poolSize(5, 1))
}
