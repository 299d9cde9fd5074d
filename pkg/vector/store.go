package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/athenalab/kgrag/pkg/models"
)

const collectionName = "chunks"

// ChromemStore is a chromem-go backed Store. Reads run concurrently; writes
// serialize through mu and persist before returning.
type ChromemStore struct {
	path     string // empty means in-memory only
	embedder Embedder

	mu       sync.Mutex
	db       *chromem.DB
	col      *chromem.Collection
	manifest map[string]string // chunk id -> doc id
}

// NewChromemStore creates a store persisting under path. An empty path keeps
// everything in memory (tests, throwaway runs).
func NewChromemStore(path string, embedder Embedder) *ChromemStore {
	return &ChromemStore{path: path, embedder: embedder, manifest: map[string]string{}}
}

// Initialize opens or creates the persisted index.
func (s *ChromemStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.path == "" {
		s.db = chromem.NewDB()
	} else {
		if err = os.MkdirAll(s.path, 0o755); err != nil {
			return fmt.Errorf("failed to create vector index directory: %w", err)
		}
		s.db, err = chromem.NewPersistentDB(filepath.Join(s.path, "db"), false)
		if err != nil {
			return fmt.Errorf("failed to open vector database: %w", err)
		}
	}

	// Identity function: every document arrives with a pre-computed vector.
	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("vectors must be pre-computed")
	}
	s.col, err = s.db.GetOrCreateCollection(collectionName, nil, embedFn)
	if err != nil {
		return fmt.Errorf("failed to open vector collection: %w", err)
	}

	if err := s.loadManifest(); err != nil {
		return err
	}
	slog.Info("Vector store initialized", "path", s.path, "chunks", s.col.Count())
	return nil
}

// Finalize flushes the manifest. Document data persists incrementally on
// every write.
func (s *ChromemStore) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveManifest()
}

// Upsert embeds and indexes the given items.
func (s *ChromemStore) Upsert(ctx context.Context, items map[string]UpsertItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = items[id].Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(ids), err)
	}

	docs := make([]chromem.Document, len(ids))
	for i, id := range ids {
		item := items[id]
		md := make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			md[k] = v
		}
		docs[i] = chromem.Document{ID: id, Content: item.Content, Metadata: md, Embedding: vectors[i]}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}
	for i, id := range ids {
		s.manifest[id] = docs[i].Metadata["doc_id"]
	}
	return s.saveManifest()
}

// Delete removes the given ids.
func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	for _, id := range ids {
		delete(s.manifest, id)
	}
	return s.saveManifest()
}

// Query embeds the text, scores every stored record, and returns the topK
// after the keyword boost.
func (s *ChromemStore) Query(ctx context.Context, queryText string, topK int) ([]models.SearchResult, error) {
	if topK < 1 {
		topK = 1
	}
	count := s.col.Count()
	if count == 0 {
		return nil, nil
	}

	vec, err := s.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Keyword hits are counted over the whole collection, so an exact term
	// match surfaces even when its embedding ranks far down. The store is
	// embedded; cosine against every record is the normal query cost.
	pool, err := s.col.QueryEmbedding(ctx, vec, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	keywords := ExtractKeywords(queryText)
	candidates := make([]scored, len(pool))
	for i, r := range pool {
		candidates[i] = scored{
			index:        i,
			cosine:       r.Similarity,
			keywordScore: KeywordScore(r.Content, keywords),
		}
	}

	order := boostOrder(candidates, topK)
	results := make([]models.SearchResult, 0, len(order))
	for _, idx := range order {
		r := pool[idx]
		md := make(map[string]string, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			md[k] = v
		}
		md["keyword_score"] = strconv.Itoa(candidates[idx].keywordScore)
		results = append(results, models.SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: md,
		})
	}
	return results, nil
}

// IDs returns every indexed chunk id, sorted. Used by maintenance commands.
func (s *ChromemStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.manifest))
	for id := range s.manifest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UpdateMetadata rewrites one document's metadata in place, reusing its
// stored embedding so no re-embedding happens.
func (s *ChromemStore) UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", id, err)
	}
	doc.Metadata = metadata
	if err := s.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("failed to rewrite document %s: %w", id, err)
	}
	s.manifest[id] = metadata["doc_id"]
	return s.saveManifest()
}

// Get returns one indexed document's content and metadata.
func (s *ChromemStore) Get(ctx context.Context, id string) (string, map[string]string, error) {
	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return doc.Content, doc.Metadata, nil
}

// Count returns the number of indexed chunks.
func (s *ChromemStore) Count() int { return s.col.Count() }

func (s *ChromemStore) manifestPath() string {
	return filepath.Join(s.path, "manifest.json")
}

func (s *ChromemStore) loadManifest() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.manifestPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read vector manifest: %w", err)
	}
	if err := json.Unmarshal(raw, &s.manifest); err != nil {
		return fmt.Errorf("failed to parse vector manifest: %w", err)
	}
	return nil
}

// saveManifest writes the manifest atomically (temp file + rename). Callers
// hold mu.
func (s *ChromemStore) saveManifest() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vector manifest: %w", err)
	}
	tmp := s.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write vector manifest: %w", err)
	}
	if err := os.Rename(tmp, s.manifestPath()); err != nil {
		return fmt.Errorf("failed to replace vector manifest: %w", err)
	}
	return nil
}

var _ Store = (*ChromemStore)(nil)
