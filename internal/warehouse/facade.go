// Package warehouse is the read-only data access facade over the
// analytical warehouse: raw SQL, a safe composed SELECT, schema
// probing and vector search over embedding columns.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrBadFilter reports a filter that is not a simple conjunction of
// comparisons on identifier names.
var ErrBadFilter = errors.New("warehouse: filter must be a conjunction of comparisons on identifiers")

// Facade wraps the warehouse connection. All methods are reads; the
// facade never writes.
type Facade struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to the warehouse via the pgx stdlib driver.
func Open(dsn string, logger *log.Logger) (*Facade, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("warehouse: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Facade{db: db, logger: logger}, nil
}

// NewFromDB wraps an existing handle; used by tests.
func NewFromDB(db *sql.DB, logger *log.Logger) *Facade {
	if logger == nil {
		logger = log.Default()
	}
	return &Facade{db: db, logger: logger}
}

func (f *Facade) Close() error {
	if f == nil || f.db == nil {
		return nil
	}
	return f.db.Close()
}

// Query executes raw SQL and materialises the result. Empty result sets
// come back as empty tables, never errors.
func (f *Facade) Query(ctx context.Context, query string, args ...any) (*Table, error) {
	if f == nil || f.db == nil {
		return nil, errors.New("warehouse: not connected")
	}
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("warehouse: query: %w", err)
	}
	defer rows.Close()
	return scanTable(rows)
}

func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var data [][]any
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		data = append(data, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewTable(cols, data), nil
}

// Cond is one comparison inside a Select filter.
type Cond struct {
	Column string
	Op     string // =, !=, <, <=, >, >=, IN, LIKE, LOWER= (case-insensitive equality)
	Value  any
}

// Spec describes a composed SELECT.
type Spec struct {
	Table   string
	Columns []string
	Conds   []Cond
	GroupBy []string
	OrderBy string
	Desc    bool
	Limit   int
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

var allowedOps = map[string]struct{}{
	"=": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
	"IN": {}, "LIKE": {}, "LOWER=": {},
}

// Select composes and runs a SELECT from typed arguments. Conditions
// are ANDed; anything beyond identifier comparisons is rejected with
// ErrBadFilter.
func (f *Facade) Select(ctx context.Context, spec Spec) (*Table, error) {
	query, args, err := buildSelect(spec)
	if err != nil {
		return nil, err
	}
	return f.Query(ctx, query, args...)
}

func buildSelect(spec Spec) (string, []any, error) {
	if !identRe.MatchString(spec.Table) {
		return "", nil, fmt.Errorf("%w: table %q", ErrBadFilter, spec.Table)
	}
	cols := "*"
	if len(spec.Columns) > 0 {
		for _, c := range spec.Columns {
			if !identRe.MatchString(c) {
				return "", nil, fmt.Errorf("%w: column %q", ErrBadFilter, c)
			}
		}
		cols = strings.Join(spec.Columns, ", ")
	}

	var (
		where []string
		args  []any
	)
	n := 0
	for _, c := range spec.Conds {
		if !identRe.MatchString(c.Column) {
			return "", nil, fmt.Errorf("%w: column %q", ErrBadFilter, c.Column)
		}
		op := strings.ToUpper(strings.TrimSpace(c.Op))
		if _, ok := allowedOps[op]; !ok {
			return "", nil, fmt.Errorf("%w: operator %q", ErrBadFilter, c.Op)
		}
		switch op {
		case "IN":
			vals, ok := c.Value.([]string)
			if !ok || len(vals) == 0 {
				return "", nil, fmt.Errorf("%w: IN needs a non-empty string list", ErrBadFilter)
			}
			marks := make([]string, len(vals))
			for i, v := range vals {
				n++
				marks[i] = fmt.Sprintf("$%d", n)
				args = append(args, v)
			}
			where = append(where, fmt.Sprintf("%s IN (%s)", c.Column, strings.Join(marks, ", ")))
		case "LOWER=":
			n++
			where = append(where, fmt.Sprintf("LOWER(%s) = LOWER($%d)", c.Column, n))
			args = append(args, c.Value)
		default:
			n++
			where = append(where, fmt.Sprintf("%s %s $%d", c.Column, op, n))
			args = append(args, c.Value)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, spec.Table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(spec.GroupBy) > 0 {
		for _, g := range spec.GroupBy {
			if !identRe.MatchString(g) {
				return "", nil, fmt.Errorf("%w: group by %q", ErrBadFilter, g)
			}
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(spec.GroupBy, ", "))
	}
	if spec.OrderBy != "" {
		if !identRe.MatchString(spec.OrderBy) {
			return "", nil, fmt.Errorf("%w: order by %q", ErrBadFilter, spec.OrderBy)
		}
		dir := "ASC"
		if spec.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", spec.OrderBy, dir)
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
	}
	return b.String(), args, nil
}

// TableNames lists the tables of a schema, upper-cased.
func (f *Facade) TableNames(ctx context.Context, schema string) (map[string]struct{}, error) {
	tbl, err := f.Query(ctx,
		"SELECT table_name FROM information_schema.tables WHERE LOWER(table_schema) = LOWER($1)", schema)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		names[strings.ToUpper(tbl.String(i, "table_name"))] = struct{}{}
	}
	return names, nil
}

// ColumnNames lists the upper-cased columns of one table restricted to
// the given candidates; pass nil for all columns.
func (f *Facade) ColumnNames(ctx context.Context, schema, table string, candidates []string) ([]string, error) {
	query := "SELECT column_name FROM information_schema.columns WHERE LOWER(table_schema) = LOWER($1) AND LOWER(table_name) = LOWER($2)"
	args := []any{schema, table}
	tbl, err := f.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	want := map[string]struct{}{}
	for _, c := range candidates {
		want[strings.ToUpper(c)] = struct{}{}
	}
	var out []string
	for i := 0; i < tbl.Len(); i++ {
		name := strings.ToUpper(tbl.String(i, "column_name"))
		if len(candidates) == 0 {
			out = append(out, name)
			continue
		}
		if _, ok := want[name]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// EscapeLiteral doubles single quotes for values interpolated into
// warehouse SQL that cannot be parameterised (subquery templates).
func EscapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
