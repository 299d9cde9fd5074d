package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/prompt"
	"github.com/athenalab/kgrag/pkg/vector"
)

// Stats summarizes one ingestion run.
type Stats struct {
	Files     int `json:"files"`
	Chunks    int `json:"chunks"`
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
}

func (s *Stats) add(other Stats) {
	s.Files += other.Files
	s.Chunks += other.Chunks
	s.Entities += other.Entities
	s.Relations += other.Relations
}

// PipelineOptions wires a Pipeline. Model is the fast model used by the
// model-driven dedup layer.
type PipelineOptions struct {
	Chunker            *Chunker
	Extractor          *Extractor
	Model              llm.ChatModel
	ModelName          string
	Graph              graph.Store
	Vector             vector.Store
	FileConcurrency    int64
	StorageConcurrency int64
}

// Pipeline runs documents through chunking, extraction, merge, dedup and
// storage.
type Pipeline struct {
	chunker    *Chunker
	extractor  *Extractor
	model      llm.ChatModel
	modelName  string
	graph      graph.Store
	vector     vector.Store
	prompts    *prompt.Builder
	fileSem    *semaphore.Weighted
	storageSem *semaphore.Weighted
}

// NewPipeline creates a pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.FileConcurrency < 1 {
		opts.FileConcurrency = 1
	}
	if opts.StorageConcurrency < 1 {
		opts.StorageConcurrency = 1
	}
	return &Pipeline{
		chunker:    opts.Chunker,
		extractor:  opts.Extractor,
		model:      opts.Model,
		modelName:  opts.ModelName,
		graph:      opts.Graph,
		vector:     opts.Vector,
		prompts:    prompt.NewBuilder(),
		fileSem:    semaphore.NewWeighted(opts.FileConcurrency),
		storageSem: semaphore.NewWeighted(opts.StorageConcurrency),
	}
}

// IngestText runs the full pipeline over one document.
func (p *Pipeline) IngestText(ctx context.Context, docID, text string) (*Stats, error) {
	chunks := p.chunker.Chunk(text, docID)
	if len(chunks) == 0 {
		slog.Info("Document produced no chunks", "doc_id", docID)
		return &Stats{Files: 1}, nil
	}
	slog.Info("Chunked document", "doc_id", docID, "chunks", len(chunks))

	if err := p.indexChunks(ctx, chunks); err != nil {
		return nil, err
	}

	entities, relations := p.extractor.ExtractAll(ctx, chunks)
	entities = MergeEntities(entities)
	entities, nameMap := DedupAliases(entities)
	entities = ModelDedup(ctx, p.model, p.modelName, p.prompts, entities, nameMap)
	relations = RemapRelations(relations, nameMap)
	slog.Info("Extracted knowledge", "doc_id", docID,
		"entities", len(entities), "relations", len(relations))

	if err := p.storeGraph(ctx, entities, relations); err != nil {
		return nil, err
	}
	return &Stats{Files: 1, Chunks: len(chunks), Entities: len(entities), Relations: len(relations)}, nil
}

// indexChunks writes the chunks to the vector store with their doc tags and
// precomputed keywords.
func (p *Pipeline) indexChunks(ctx context.Context, chunks []models.TextChunk) error {
	items := make(map[string]vector.UpsertItem, len(chunks))
	for _, chunk := range chunks {
		items[chunk.ID] = vector.UpsertItem{
			Content:  chunk.Content,
			Metadata: chunkMetadata(chunk.DocID, chunk.Index, chunk.Content),
		}
	}
	if err := p.vector.Upsert(ctx, items); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

func chunkMetadata(docID string, index int, content string) map[string]string {
	md := map[string]string{
		"doc_id":      docID,
		"chunk_index": fmt.Sprintf("%d", index),
	}
	if keywords := vector.ExtractKeywords(content); len(keywords) > 0 {
		md["keywords"] = strings.Join(keywords, ",")
	}
	return md
}

// storeGraph upserts nodes, then edges, each fanned out under the storage
// semaphore. Edges wait for all nodes so endpoints exist.
func (p *Pipeline) storeGraph(ctx context.Context, entities []models.Entity, relations []models.Relation) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			if err := p.storageSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.storageSem.Release(1)
			return p.graph.UpsertNode(gctx, entity)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to store entities: %w", err)
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, relation := range relations {
		relation := relation
		g.Go(func() error {
			if err := p.storageSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.storageSem.Release(1)
			return p.graph.UpsertEdge(gctx, relation)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to store relations: %w", err)
	}
	return nil
}

// IngestFile ingests one file. An empty docID defaults to the file name
// without its extension.
func (p *Pipeline) IngestFile(ctx context.Context, path, docID string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if docID == "" {
		docID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p.IngestText(ctx, docID, string(data))
}

// IngestDir ingests every file under dir matching the glob pattern,
// fanning files out under the file-concurrency cap. Per-file failures are
// logged and skipped.
func (p *Pipeline) IngestDir(ctx context.Context, dir, glob string) (*Stats, error) {
	if glob == "" {
		glob = "*.md"
	}
	paths, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("failed to expand glob %s: %w", glob, err)
	}
	if len(paths) == 0 {
		return &Stats{}, nil
	}

	var mu sync.Mutex
	total := &Stats{}
	var wg sync.WaitGroup
	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := p.fileSem.Acquire(ctx, 1); err != nil {
				return
			}
			defer p.fileSem.Release(1)
			stats, err := p.IngestFile(ctx, path, "")
			if err != nil {
				slog.Warn("File ingestion failed", "path", path, "error", err)
				return
			}
			mu.Lock()
			total.add(*stats)
			mu.Unlock()
		}(path)
	}
	wg.Wait()
	return total, nil
}

// MergeGraph re-runs both dedup layers over the entities already in the
// graph, rewriting displaced nodes and remapped edges in place.
func (p *Pipeline) MergeGraph(ctx context.Context) (*Stats, error) {
	entities, err := p.graph.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	relations, err := p.graph.ListRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	deduped, nameMap := DedupAliases(entities)
	deduped = ModelDedup(ctx, p.model, p.modelName, p.prompts, deduped, nameMap)
	remapped := RemapRelations(relations, nameMap)
	if len(nameMap) == 0 {
		slog.Info("Graph merge found no duplicates", "entities", len(entities))
		return &Stats{Entities: len(entities), Relations: len(relations)}, nil
	}

	for old := range nameMap {
		if err := p.graph.DeleteNode(ctx, old); err != nil {
			return nil, fmt.Errorf("failed to delete displaced node %q: %w", old, err)
		}
	}
	if err := p.storeGraph(ctx, deduped, remapped); err != nil {
		return nil, err
	}
	slog.Info("Graph merge complete", "merged", len(nameMap),
		"entities", len(deduped), "relations", len(remapped))
	return &Stats{Entities: len(deduped), Relations: len(remapped)}, nil
}

// Retagger is the vector-store surface needed to rewrite chunk metadata
// without re-embedding.
type Retagger interface {
	IDs() []string
	Get(ctx context.Context, id string) (string, map[string]string, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error
}

// Retag recomputes the keyword tags of every indexed chunk from its stored
// content. Embeddings are reused as-is.
func Retag(ctx context.Context, store Retagger) (int, error) {
	ids := store.IDs()
	for _, id := range ids {
		content, metadata, err := store.Get(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to load chunk %s: %w", id, err)
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		if keywords := vector.ExtractKeywords(content); len(keywords) > 0 {
			metadata["keywords"] = strings.Join(keywords, ",")
		} else {
			delete(metadata, "keywords")
		}
		if err := store.UpdateMetadata(ctx, id, metadata); err != nil {
			return 0, fmt.Errorf("failed to retag chunk %s: %w", id, err)
		}
	}
	return len(ids), nil
}
