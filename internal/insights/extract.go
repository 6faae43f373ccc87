// Package insights extracts per-analytic KPI tables for a supplier:
// the raw material the objective and insight generators reason over.
package insights

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"

	"negofactory/internal/llm"
	"negofactory/internal/warehouse"
)

// KPIMappingTable maps each category to its KPI analytic tables.
const KPIMappingTable = "DATA.T_C_KPI_TABLE_MAPPING_FRONTEND"

// Caps on the two fan-outs: column probing and per-analytic fetches.
const (
	probePoolCap = 100
	fetchPoolCap = 1000
)

// Analytic is one extracted KPI table aggregated by year (and material
// when present), plus the column naming its saving opportunity.
type Analytic struct {
	Table             *warehouse.Table
	OpportunityColumn string
}

// Extractor reads the KPI mapping and materialises the analytics for
// one supplier. A failed analytic is logged and dropped, never fatal.
type Extractor struct {
	reader     warehouse.Reader
	classifier llm.Client
	logger     *log.Logger
}

func New(reader warehouse.Reader, classifier llm.Client, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{reader: reader, classifier: classifier, logger: logger}
}

const classifyPrompt = `You are given the column names and a two-row sample of a
procurement KPI table. For every column decide whether aggregating across rows
of the same year should "sum" the values (additive quantities like spend,
volumes, counts, opportunities) or "mean" them (rates, prices, percentages,
scores). Return a JSON object mapping each column name to "sum" or "mean".`

// Extract returns the surviving analytics for the supplier, keyed by
// KPI name. An empty map means the category has no usable analytics.
func (e *Extractor) Extract(ctx context.Context, supplier, category string, skus []string) (map[string]Analytic, error) {
	mapping, err := e.reader.Query(ctx,
		"SELECT * FROM "+KPIMappingTable+" WHERE LOWER(CATEGORY) = LOWER($1)", category)
	if err != nil {
		return nil, fmt.Errorf("insights: kpi mapping: %w", err)
	}
	if mapping.Empty() {
		e.logger.Printf("insights: no KPI mapping for category %q", category)
		return map[string]Analytic{}, nil
	}

	existing, err := e.reader.TableNames(ctx, "DATA")
	if err != nil {
		return nil, fmt.Errorf("insights: schema tables: %w", err)
	}

	type row struct {
		kpi, table, oppColumn string
	}
	var rows []row
	for i := 0; i < mapping.Len(); i++ {
		table := strings.ToUpper(strings.ReplaceAll(mapping.String(i, "KPI_TABLE_NAME"), "_FRONTEND", ""))
		if table == "" {
			continue
		}
		if _, ok := existing[table]; !ok {
			e.logger.Printf("insights: KPI table %s missing from schema, dropped", table)
			continue
		}
		rows = append(rows, row{
			kpi:       mapping.String(i, "KPI_NAME"),
			table:     table,
			oppColumn: mapping.String(i, "KPI_OPPORTUNITY_COLUMN_NAME"),
		})
	}
	if len(rows) == 0 {
		return map[string]Analytic{}, nil
	}

	// First fan-out: probe each table for MATERIAL/SUPPLIER columns.
	columns := make(map[string][]string, len(rows))
	var mu sync.Mutex
	runPool(poolSize(len(rows), probePoolCap), len(rows), func(i int) {
		cols, err := e.reader.ColumnNames(ctx, "DATA", rows[i].table, []string{"MATERIAL", "SUPPLIER"})
		if err != nil {
			e.logger.Printf("insights: probing %s: %v", rows[i].table, err)
			cols = nil
		}
		mu.Lock()
		columns[rows[i].table] = cols
		mu.Unlock()
	})

	// Second fan-out: fetch and aggregate each analytic.
	out := make(map[string]Analytic, len(rows))
	runPool(poolSize(len(rows), fetchPoolCap), len(rows), func(i int) {
		r := rows[i]
		analytic, err := e.fetchAnalytic(ctx, r.table, supplier, category, skus, columns[r.table])
		if err != nil {
			e.logger.Printf("insights: analytic %s (%s): %v", r.kpi, r.table, err)
			return
		}
		if analytic == nil || analytic.Empty() {
			return
		}
		mu.Lock()
		out[r.kpi] = Analytic{Table: analytic, OpportunityColumn: r.oppColumn}
		mu.Unlock()
	})
	return out, nil
}

func (e *Extractor) fetchAnalytic(ctx context.Context, table, supplier, category string, skus, probed []string) (*warehouse.Table, error) {
	hasSupplier, hasMaterial := false, false
	for _, c := range probed {
		switch strings.ToUpper(c) {
		case "SUPPLIER":
			hasSupplier = true
		case "MATERIAL":
			hasMaterial = true
		}
	}
	if !hasSupplier {
		return nil, nil
	}

	qualified := "DATA." + table
	query := fmt.Sprintf(
		"SELECT * FROM %[1]s WHERE SUPPLIER = $1 AND LOWER(CATEGORY) = LOWER($2)"+
			" AND YEAR = (SELECT MAX(YEAR) FROM %[1]s)", qualified)
	args := []any{supplier, category}
	if len(skus) > 0 && hasMaterial {
		marks := make([]string, len(skus))
		for i, sku := range skus {
			args = append(args, sku)
			marks[i] = fmt.Sprintf("$%d", len(args))
		}
		query += " AND MATERIAL IN (" + strings.Join(marks, ", ") + ")"
	}
	data, err := e.reader.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if data.Empty() {
		return nil, nil
	}

	aggs := e.classifyAggregations(ctx, data)
	keys := []string{"YEAR"}
	if data.HasColumn("MATERIAL") {
		keys = append(keys, "MATERIAL")
	}
	return data.GroupBy(keys, aggs), nil
}

// classifyAggregations asks the model whether each numeric column sums
// or averages across rows; categoricals take their first value. On any
// model failure every numeric column falls back to sum.
func (e *Extractor) classifyAggregations(ctx context.Context, data *warehouse.Table) map[string]warehouse.Agg {
	aggs := map[string]warehouse.Agg{}
	numeric := map[string]struct{}{}
	for _, c := range data.NumericColumns() {
		if strings.EqualFold(c, "YEAR") {
			continue
		}
		numeric[c] = struct{}{}
		aggs[c] = warehouse.AggSum
	}
	for _, c := range data.Columns() {
		if strings.EqualFold(c, "YEAR") || strings.EqualFold(c, "MATERIAL") {
			continue
		}
		if _, ok := numeric[c]; !ok {
			aggs[c] = warehouse.AggFirst
		}
	}
	if e.classifier == nil || len(numeric) == 0 {
		return aggs
	}

	sample := map[string]any{}
	head := data.Head(2)
	for c := range numeric {
		vals := make([]float64, 0, head.Len())
		for i := 0; i < head.Len(); i++ {
			vals = append(vals, head.Float(i, c))
		}
		sample[c] = vals
	}
	raw, err := e.classifier.GenerateJSON(ctx, classifyPrompt, sample)
	if err != nil {
		e.logger.Printf("insights: aggregation classifier: %v", err)
		return aggs
	}
	for col, v := range llm.ParseObject(raw) {
		if _, ok := numeric[col]; !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.EqualFold(s, "mean") {
			aggs[col] = warehouse.AggMean
		}
	}
	return aggs
}

// poolSize bounds a fan-out by the work size, the host's parallelism
// and a hard cap.
func poolSize(n, max int) int {
	size := runtime.NumCPU() * 8
	if n < size {
		size = n
	}
	if size > max {
		size = max
	}
	if size < 1 {
		size = 1
	}
	return size
}

func runPool(workers, n int, work func(i int)) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				work(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
