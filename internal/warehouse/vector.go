package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/viterin/vek"
)

// Document is one knowledge-base chunk returned by vector search,
// annotated with its cosine distance to the query (lower = closer).
type Document struct {
	Chunk    string  `json:"chunk_content"`
	Page     string  `json:"page"`
	Distance float64 `json:"distance"`
}

// VectorSpec describes a vector search: which table to scan, which
// columns carry the chunk text, page reference and embedding, and the
// pre-bound filter conditions.
type VectorSpec struct {
	Table           string
	ChunkColumn     string
	PageColumn      string
	EmbeddingColumn string
	Conds           []Cond
	CategoryColumn  string
	Category        string // scopes to this category or the "all" sentinel
}

// VectorSearch returns the k rows nearest to the query embedding under
// cosine distance, ascending by distance. Rows whose embeddings cannot
// be parsed or whose dimension disagrees with the query are skipped.
func (f *Facade) VectorSearch(ctx context.Context, spec VectorSpec, query []float64, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	cols := []string{spec.ChunkColumn, spec.PageColumn, spec.EmbeddingColumn}
	if spec.CategoryColumn != "" {
		cols = append(cols, spec.CategoryColumn)
	}
	sel := Spec{Table: spec.Table, Columns: cols, Conds: spec.Conds}
	tbl, err := f.Select(ctx, sel)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		if spec.CategoryColumn != "" {
			scope := strings.TrimSpace(tbl.String(i, spec.CategoryColumn))
			if scope != "" && !strings.EqualFold(scope, "all") && !strings.EqualFold(scope, spec.Category) {
				continue
			}
		}
		emb, err := parseEmbedding(tbl.String(i, spec.EmbeddingColumn))
		if err != nil || len(emb) != len(query) {
			continue
		}
		docs = append(docs, Document{
			Chunk:    tbl.String(i, spec.ChunkColumn),
			Page:     tbl.String(i, spec.PageColumn),
			Distance: 1 - vek.CosineSimilarity(query, emb),
		})
	}
	sort.SliceStable(docs, func(a, b int) bool { return docs[a].Distance < docs[b].Distance })
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// parseEmbedding accepts JSON arrays and the pgvector text form
// "[v1,v2,...]".
func parseEmbedding(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty embedding")
	}
	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err == nil {
		return vec, nil
	}
	raw = strings.Trim(raw, "[]{}")
	parts := strings.Split(raw, ",")
	vec = make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vec = append(vec, v)
	}
	return vec, nil
}
