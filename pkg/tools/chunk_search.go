package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/athenalab/kgrag/pkg/vector"
)

// ChunkSearch is the semantic chunk retrieval tool.
type ChunkSearch struct {
	store vector.Store
	topK  int
}

// NewChunkSearch creates the tool with a default result count.
func NewChunkSearch(store vector.Store, topK int) *ChunkSearch {
	if topK < 1 {
		topK = 5
	}
	return &ChunkSearch{store: store, topK: topK}
}

// Name implements Tool.
func (t *ChunkSearch) Name() string { return "chunk_search" }

// Description implements Tool.
func (t *ChunkSearch) Description() string {
	return "Semantic search over ingested course material. Input: a search query in natural language. Returns the most relevant text passages."
}

// Call implements Tool.
func (t *ChunkSearch) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", NewError(KindBadInput, fmt.Errorf("empty search query"))
	}

	results, err := t.store.Query(ctx, query, t.topK)
	if err != nil {
		return "", NewError(KindStoreError, fmt.Errorf("chunk search failed: %w", err))
	}
	if len(results) == 0 {
		return "No matching chunks found.", nil
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%d] score=%.3f keyword_hits=%s doc=%s id=%s\n",
			i+1, r.Score, orDash(r.Metadata["keyword_score"]), orDash(r.Metadata["doc_id"]), r.ID))
		sb.WriteString(r.Content)
	}
	return sb.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
