// Package llm provides chat-completion and embedding clients for
// OpenAI-compatible endpoints.
package llm

import (
	"context"
	"strings"

	"github.com/athenalab/kgrag/pkg/models"
)

// Stream delta scopes.
const (
	ScopeContent   = "content"
	ScopeReasoning = "reasoning"
)

// StreamChunk is one increment of a streaming completion. Err is set on the
// final chunk when the stream fails mid-flight.
type StreamChunk struct {
	Scope string
	Delta string
	Err   error
}

// Options tunes a single call. Zero values fall back to client defaults.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completion is a finished model response. Reasoning is empty on models
// without a reasoning channel.
type Completion struct {
	Content   string
	Reasoning string
}

// ChatModel is the completion contract the agent layer programs against.
type ChatModel interface {
	Complete(ctx context.Context, messages []models.Message, opts Options) (Completion, error)
	Stream(ctx context.Context, messages []models.Message, opts Options) (<-chan StreamChunk, error)
}

// Collect drains a stream into a single completion. On a mid-stream error it
// returns the text accumulated so far together with the error.
func Collect(chunks <-chan StreamChunk) (Completion, error) {
	var content, reasoning strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return Completion{Content: content.String(), Reasoning: reasoning.String()}, chunk.Err
		}
		if chunk.Scope == ScopeReasoning {
			reasoning.WriteString(chunk.Delta)
		} else {
			content.WriteString(chunk.Delta)
		}
	}
	return Completion{Content: content.String(), Reasoning: reasoning.String()}, nil
}
