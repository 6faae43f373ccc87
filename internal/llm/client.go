// Package llm is the model invocation layer: a provider-agnostic
// client contract, middleware for cross-cutting concerns, response
// parsing that tolerates malformed JSON, and a conversational RAG
// helper over the warehouse vector search.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidResponse reports a completion with no usable candidates.
var ErrInvalidResponse = errors.New("llm: invalid response")

// Client is the minimal contract a model provider implements. It only
// covers the API call itself; retries, logging and rate limiting are
// applied via Middleware.
type Client interface {
	Name() string
	Close() error
	GenerateText(ctx context.Context, prompt, input string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
}

// Embedder turns text into an embedding vector for retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Message is one conversational turn passed to a model.
type Message struct {
	Role    string // "user" or "model"
	Content string
}

// Middleware wraps a Client with additional behaviour.
type Middleware func(Client) Client

// Chain applies middlewares left to right; the first listed is the
// outermost layer.
func Chain(c Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
