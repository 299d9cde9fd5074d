package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/prompt"
)

var extractFencePattern = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$")

// Extractor runs one model call per chunk to pull typed entities and
// relations out of the text, under a shared concurrency cap.
type Extractor struct {
	model     llm.ChatModel
	modelName string
	prompts   *prompt.Builder
	sem       *semaphore.Weighted
}

// NewExtractor creates an extractor. concurrency values below 1 fall back
// to 1.
func NewExtractor(model llm.ChatModel, modelName string, concurrency int64) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{
		model:     model,
		modelName: modelName,
		prompts:   prompt.NewBuilder(),
		sem:       semaphore.NewWeighted(concurrency),
	}
}

type extractedEntity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

type extractedRelation struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

type extractionPayload struct {
	Entities  []extractedEntity  `json:"entities"`
	Relations []extractedRelation `json:"relations"`
}

// ExtractChunk extracts entities and relations from one chunk. A response
// that fails to parse gets exactly one retry turn; relations whose endpoints
// are not entities of the same chunk are dropped.
func (e *Extractor) ExtractChunk(ctx context.Context, chunk models.TextChunk) ([]models.Entity, []models.Relation, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("failed to acquire extraction slot: %w", err)
	}
	defer e.sem.Release(1)

	msgs := e.prompts.ExtractionMessages(chunk.Content)
	completion, err := e.model.Complete(ctx, msgs, llm.Options{Model: e.modelName})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract chunk %s: %w", chunk.ID, err)
	}

	payload, perr := parseExtraction(completion.Content)
	if perr != nil {
		msgs = append(msgs,
			models.AssistantMessage(completion.Content),
			models.UserMessage(e.prompts.ExtractionRetry()),
		)
		completion, err = e.model.Complete(ctx, msgs, llm.Options{Model: e.modelName})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to retry extraction for chunk %s: %w", chunk.ID, err)
		}
		if payload, perr = parseExtraction(completion.Content); perr != nil {
			return nil, nil, fmt.Errorf("failed to parse extraction for chunk %s: %w", chunk.ID, perr)
		}
	}

	return convertExtraction(payload, chunk.ID)
}

func parseExtraction(raw string) (*extractionPayload, error) {
	text := extractFencePattern.ReplaceAllString(raw, "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var payload extractionPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("invalid extraction JSON: %w", err)
	}
	return &payload, nil
}

func convertExtraction(payload *extractionPayload, chunkID string) ([]models.Entity, []models.Relation, error) {
	names := make(map[string]bool, len(payload.Entities))
	entities := make([]models.Entity, 0, len(payload.Entities))
	for _, raw := range payload.Entities {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		entityType := strings.TrimSpace(raw.Type)
		if !models.IsEntityType(entityType) {
			entityType = models.EntityConcept
		}
		aliases := make([]string, 0, len(raw.Aliases))
		for _, a := range raw.Aliases {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, a)
			}
		}
		entities = append(entities, models.Entity{
			ID:           models.EntityID(name),
			Name:         name,
			Type:         entityType,
			Description:  strings.TrimSpace(raw.Description),
			Aliases:      aliases,
			SourceChunks: []string{chunkID},
		})
		names[strings.ToLower(name)] = true
	}

	relations := make([]models.Relation, 0, len(payload.Relations))
	for _, raw := range payload.Relations {
		source := strings.TrimSpace(raw.Source)
		target := strings.TrimSpace(raw.Target)
		// Endpoints must reference entities extracted from the same chunk.
		if !names[strings.ToLower(source)] || !names[strings.ToLower(target)] {
			slog.Debug("Dropping relation with unextracted endpoint",
				"source", source, "target", target, "chunk_id", chunkID)
			continue
		}
		weight := raw.Weight
		if weight <= 0 {
			weight = 1.0
		}
		relations = append(relations, models.Relation{
			Source:      source,
			Target:      target,
			Type:        strings.ToUpper(strings.TrimSpace(raw.Type)),
			Description: strings.TrimSpace(raw.Description),
			Weight:      weight,
		})
	}
	return entities, relations, nil
}

// ExtractAll runs ExtractChunk over every chunk concurrently (bounded by the
// extractor's semaphore) and returns the combined raw results in chunk
// order. Chunks whose extraction fails are skipped with a warning.
func (e *Extractor) ExtractAll(ctx context.Context, chunks []models.TextChunk) ([]models.Entity, []models.Relation) {
	type chunkResult struct {
		entities  []models.Entity
		relations []models.Relation
	}
	results := make([]chunkResult, len(chunks))

	done := make(chan int, len(chunks))
	for i := range chunks {
		go func(i int) {
			defer func() { done <- i }()
			entities, relations, err := e.ExtractChunk(ctx, chunks[i])
			if err != nil {
				slog.Warn("Chunk extraction failed", "chunk_id", chunks[i].ID, "error", err)
				return
			}
			results[i] = chunkResult{entities: entities, relations: relations}
		}(i)
	}
	for range chunks {
		<-done
	}

	var entities []models.Entity
	var relations []models.Relation
	for _, r := range results {
		entities = append(entities, r.entities...)
		relations = append(relations, r.relations...)
	}
	return entities, relations
}
