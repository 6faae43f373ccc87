package warehouse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is a tabular query result with ordered string column names.
// Cells hold whatever the driver produced; accessors coerce on read and
// normalise non-finite numbers to zero.
type Table struct {
	cols  []string
	index map[string]int
	rows  [][]any
}

// NewTable builds a table from column names and rows. Column lookup is
// case-insensitive.
func NewTable(cols []string, rows [][]any) *Table {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[strings.ToLower(c)] = i
	}
	return &Table{cols: cols, index: index, rows: rows}
}

func (t *Table) Columns() []string { return t.cols }

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func (t *Table) Empty() bool { return t.Len() == 0 }

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[strings.ToLower(name)]
	return ok
}

// Float reads a cell as float64. Missing columns, nulls and non-finite
// values read as 0.
func (t *Table) Float(row int, col string) float64 {
	v, ok := t.cell(row, col)
	if !ok {
		return 0
	}
	return finiteFloat(v)
}

// String reads a cell as a string. Nulls read as "".
func (t *Table) String(row int, col string) string {
	v, ok := t.cell(row, col)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// Int reads a cell as an int, truncating floats.
func (t *Table) Int(row int, col string) int {
	return int(t.Float(row, col))
}

func (t *Table) cell(row int, col string) (any, bool) {
	if t == nil || row < 0 || row >= len(t.rows) {
		return nil, false
	}
	i, ok := t.index[strings.ToLower(col)]
	if !ok {
		return nil, false
	}
	return t.rows[row][i], true
}

// MaxFloat returns the maximum of a numeric column, 0 when empty.
func (t *Table) MaxFloat(col string) float64 {
	max := math.Inf(-1)
	for i := 0; i < t.Len(); i++ {
		if v := t.Float(i, col); v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) {
		return 0
	}
	return max
}

// SumFloat returns the sum of a numeric column, skipping nulls.
func (t *Table) SumFloat(col string) float64 {
	var sum float64
	for i := 0; i < t.Len(); i++ {
		sum += t.Float(i, col)
	}
	return sum
}

// MeanFloat returns the mean of a numeric column, 0 for an empty table.
func (t *Table) MeanFloat(col string) float64 {
	if t.Len() == 0 {
		return 0
	}
	return t.SumFloat(col) / float64(t.Len())
}

// FirstString returns the first non-empty value of a string column.
func (t *Table) FirstString(col string) string {
	for i := 0; i < t.Len(); i++ {
		if s := t.String(i, col); s != "" {
			return s
		}
	}
	return ""
}

// Strings collects a column as strings, preserving row order.
func (t *Table) Strings(col string) []string {
	out := make([]string, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		out = append(out, t.String(i, col))
	}
	return out
}

// Filter returns the rows for which keep reports true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	rows := make([][]any, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			rows = append(rows, t.rows[i])
		}
	}
	return &Table{cols: t.cols, index: t.index, rows: rows}
}

// NumericColumns returns the columns whose first non-null cell carries
// a numeric driver type. Numeric-looking strings stay categorical.
func (t *Table) NumericColumns() []string {
	var out []string
	for _, c := range t.Columns() {
		for i := 0; i < t.Len(); i++ {
			v, _ := t.cell(i, c)
			if v == nil {
				continue
			}
			if isNumericCell(v) {
				out = append(out, c)
			}
			break
		}
	}
	return out
}

func isNumericCell(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if t == nil || n >= t.Len() {
		return t
	}
	return &Table{cols: t.cols, index: t.index, rows: t.rows[:n]}
}

// MapFloat rewrites a numeric column in place through fn. Rows share
// storage with any parent the table was filtered from.
func (t *Table) MapFloat(col string, fn func(float64) float64) {
	if t == nil {
		return
	}
	i, ok := t.index[strings.ToLower(col)]
	if !ok {
		return
	}
	for r := range t.rows {
		t.rows[r][i] = fn(t.Float(r, col))
	}
}

// Row returns the raw cells of one row.
func (t *Table) Row(i int) []any {
	if t == nil || i < 0 || i >= len(t.rows) {
		return nil
	}
	return t.rows[i]
}

// Records renders the table as ordered maps, one per row, for prompt
// context and JSON payloads.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		rec := make(map[string]any, len(t.cols))
		for _, c := range t.cols {
			v, _ := t.cell(i, c)
			if f, ok := asFloat(v); ok {
				rec[c] = finiteFloat(f)
			} else if v == nil {
				rec[c] = ""
			} else {
				rec[c] = t.String(i, c)
			}
		}
		out = append(out, rec)
	}
	return out
}

// Agg names an aggregation for GroupBy.
type Agg string

const (
	AggSum   Agg = "sum"
	AggMean  Agg = "mean"
	AggFirst Agg = "first"
)

// GroupBy groups rows by the key columns and aggregates the remaining
// named columns. Key columns keep their first value per group; group
// order follows first appearance.
func (t *Table) GroupBy(keys []string, aggs map[string]Agg) *Table {
	type group struct {
		first map[string]any
		sums  map[string]float64
		count int
	}
	order := []string{}
	groups := map[string]*group{}

	for i := 0; i < t.Len(); i++ {
		parts := make([]string, len(keys))
		for j, k := range keys {
			parts[j] = t.String(i, k)
		}
		gk := strings.Join(parts, "\x1f")
		g, ok := groups[gk]
		if !ok {
			g = &group{first: map[string]any{}, sums: map[string]float64{}}
			for _, c := range t.cols {
				v, _ := t.cell(i, c)
				g.first[strings.ToLower(c)] = v
			}
			groups[gk] = g
			order = append(order, gk)
		}
		g.count++
		for col, agg := range aggs {
			if agg == AggSum || agg == AggMean {
				g.sums[strings.ToLower(col)] += t.Float(i, col)
			}
		}
	}

	cols := append([]string{}, keys...)
	for _, c := range t.cols {
		if containsFold(keys, c) {
			continue
		}
		if _, ok := aggs[strings.ToLower(c)]; ok {
			cols = append(cols, c)
		} else if _, ok := aggs[c]; ok {
			cols = append(cols, c)
		}
	}

	rows := make([][]any, 0, len(order))
	for _, gk := range order {
		g := groups[gk]
		row := make([]any, 0, len(cols))
		for _, c := range cols {
			lc := strings.ToLower(c)
			agg, ok := aggs[c]
			if !ok {
				agg, ok = aggs[lc]
			}
			if containsFold(keys, c) || !ok || agg == AggFirst {
				row = append(row, g.first[lc])
				continue
			}
			switch agg {
			case AggSum:
				row = append(row, g.sums[lc])
			case AggMean:
				row = append(row, g.sums[lc]/float64(g.count))
			}
		}
		rows = append(rows, row)
	}
	return NewTable(cols, rows)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func finiteFloat(v any) float64 {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
