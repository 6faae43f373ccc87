package warehouse

import "context"

// Reader is the read surface the orchestrator depends on. *Facade
// implements it; tests substitute fakes.
type Reader interface {
	Query(ctx context.Context, query string, args ...any) (*Table, error)
	Select(ctx context.Context, spec Spec) (*Table, error)
	VectorSearch(ctx context.Context, spec VectorSpec, query []float64, k int) ([]Document, error)
	TableNames(ctx context.Context, schema string) (map[string]struct{}, error)
	ColumnNames(ctx context.Context, schema, table string, candidates []string) ([]string, error)
}

var _ Reader = (*Facade)(nil)
