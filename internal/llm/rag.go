package llm

import (
	"context"
	"fmt"
	"strings"

	"negofactory/internal/warehouse"
)

const compressPrompt = `Rewrite the user's latest request as one standalone
search query. Fold in whatever context from the conversation is needed to make
the request self-contained. Return JSON: {"query": "..."}.`

// Retriever answers "what does the knowledge base say about this" for
// prompt assembly. It compresses the conversational request into a
// standalone query with the fast model, embeds it, and ranks the
// knowledge table by cosine distance.
type Retriever struct {
	Reader   warehouse.Reader
	Embedder Embedder
	Fast     Client
	Spec     warehouse.VectorSpec
	K        int // candidates ranked per search
	MaxDocs  int // documents surfaced into the prompt
}

// Retrieve returns up to MaxDocs documents relevant to query within
// the category scope. An empty result is not an error; callers fall
// back to an uninformed invocation.
func (r *Retriever) Retrieve(ctx context.Context, query, conversation, category string) ([]warehouse.Document, error) {
	if r == nil || r.Reader == nil || r.Embedder == nil {
		return nil, nil
	}
	standalone := r.compress(ctx, query, conversation)
	vec, err := r.Embedder.Embed(ctx, standalone)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	spec := r.Spec
	spec.Category = category
	docs, err := r.Reader.VectorSearch(ctx, spec, vec, r.K)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	if r.MaxDocs > 0 && len(docs) > r.MaxDocs {
		docs = docs[:r.MaxDocs]
	}
	return docs, nil
}

// compress rewrites the request as a standalone query. On any model
// failure the raw query is used as-is.
func (r *Retriever) compress(ctx context.Context, query, conversation string) string {
	if r.Fast == nil || strings.TrimSpace(conversation) == "" {
		return query
	}
	raw, err := r.Fast.GenerateJSON(ctx, compressPrompt, map[string]string{
		"conversation": conversation,
		"request":      query,
	})
	if err != nil {
		return query
	}
	if q := Str(ParseObject(raw), "query"); strings.TrimSpace(q) != "" {
		return q
	}
	return query
}

// RenderDocuments formats retrieved chunks for embedding in a prompt.
func RenderDocuments(docs []warehouse.Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "[Document %d, page %s]\n%s\n\n", i+1, d.Page, d.Chunk)
	}
	return strings.TrimSpace(b.String())
}
