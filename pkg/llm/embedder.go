package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
)

// EmbedderConfig configures an embedding client.
type EmbedderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Limiter *semaphore.Weighted
}

// Embedder produces embedding vectors via an OpenAI-compatible endpoint.
type Embedder struct {
	api     *openai.Client
	model   string
	limiter *semaphore.Weighted
}

// NewEmbedder creates an embedding client for the given endpoint.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	api := openai.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = cfg.BaseURL
		api = openai.NewClientWithConfig(oc)
	}
	return &Embedder{api: api, model: cfg.Model, limiter: cfg.Limiter}
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := acquire(ctx, e.limiter); err != nil {
		return nil, err
	}
	defer release(e.limiter)

	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
