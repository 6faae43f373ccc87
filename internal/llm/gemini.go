package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// Gemini invokes Google models through the genai SDK. One instance is
// bound to one model name; the orchestrator holds a reasoning model, a
// fast model and an embedding model.
type Gemini struct {
	cli        *genai.Client
	model      string
	embedModel string
}

// NewGemini dials the Gemini API. apiKey may be empty, in which case
// the SDK falls back to GEMINI_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model, embedModel string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Gemini{cli: cli, model: model, embedModel: embedModel}, nil
}

func (g *Gemini) Name() string { return g.model }

func (g *Gemini) Close() error { return nil }

// GenerateText runs a plain-text completion. input is appended to the
// prompt when present.
func (g *Gemini) GenerateText(ctx context.Context, prompt, input string) (string, error) {
	full := prompt
	if input != "" {
		full = prompt + "\n\n[INPUT]\n" + input
	}
	return g.generate(ctx, full, "text/plain")
}

// GenerateJSON runs a completion constrained to a JSON response. input
// is marshalled and appended to the prompt.
func (g *Gemini) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	full := prompt
	if input != nil {
		payload, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("gemini: marshal input: %w", err)
		}
		full = prompt + "\n\n[INPUT JSON]\n" + string(payload)
	}
	out, err := g.generate(ctx, full, "application/json")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

func (g *Gemini) generate(ctx context.Context, full, mime string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: mime},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrInvalidResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// Embed produces an embedding vector for text using the configured
// embedding model.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := g.cli.Models.EmbedContent(ctx, g.embedModel,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrInvalidResponse
	}
	vals := resp.Embeddings[0].Values
	vec := make([]float64, len(vals))
	for i, v := range vals {
		vec[i] = float64(v)
	}
	return vec, nil
}

var (
	_ Client   = (*Gemini)(nil)
	_ Embedder = (*Gemini)(nil)
)
