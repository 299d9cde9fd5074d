// Package vector provides the persisted chunk index: an embedded cosine
// similarity store with a lexical keyword boost layered on top, so exact
// acronym matches ("BFS", "KMP") surface even when the embedding misses
// them.
package vector

import (
	"context"

	"github.com/athenalab/kgrag/pkg/models"
)

// UpsertItem is one chunk to index. Metadata is persisted verbatim and
// returned on query hits.
type UpsertItem struct {
	Content  string
	Metadata map[string]string
}

// Store is the vector index contract the tool layer programs against.
type Store interface {
	// Query embeds the text and returns the top-k hits after keyword
	// boosting. Each hit's metadata carries keyword_score.
	Query(ctx context.Context, queryText string, topK int) ([]models.SearchResult, error)
	// Upsert indexes the given items, embedding their content.
	Upsert(ctx context.Context, items map[string]UpsertItem) error
	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	// Initialize loads or creates the persisted index.
	Initialize(ctx context.Context) error
	// Finalize flushes the index to disk.
	Finalize(ctx context.Context) error
}

// Embedder produces embedding vectors. Satisfied by llm.Embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}
