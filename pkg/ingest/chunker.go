// Package ingest builds the knowledge base from source documents: token
// chunking, model-driven entity/relation extraction, cross-chunk merge, two
// dedup layers, relation remapping, and the file/directory pipelines that
// write the results to the vector and graph stores.
package ingest

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/athenalab/kgrag/pkg/models"
)

const chunkerEncoding = "cl100k_base"

// Chunker splits documents into overlapping token windows.
type Chunker struct {
	encoding  *tiktoken.Tiktoken
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. chunkSize must be positive and overlap must
// satisfy 0 ≤ overlap < chunkSize.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	encoding, err := tiktoken.GetEncoding(chunkerEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", chunkerEncoding, err)
	}
	return &Chunker{encoding: encoding, chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk slides a window of chunkSize tokens by chunkSize−overlap over the
// text. Empty input yields no chunks. Chunk ids are stable in (docID, index).
func (c *Chunker) Chunk(text, docID string) []models.TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.encoding.Encode(text, nil, nil)
	stride := c.chunkSize - c.overlap

	var chunks []models.TextChunk
	for start, index := 0, 0; start < len(tokens); start, index = start+stride, index+1 {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, models.TextChunk{
			ID:         models.ChunkID(docID, index),
			DocID:      docID,
			Index:      index,
			Content:    c.encoding.Decode(tokens[start:end]),
			StartToken: start,
			EndToken:   end,
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// CountTokens reports the token length of text under the chunker's encoding.
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
