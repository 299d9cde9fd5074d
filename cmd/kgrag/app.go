package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/athenalab/kgrag/pkg/agent"
	"github.com/athenalab/kgrag/pkg/config"
	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/ingest"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/prompt"
	"github.com/athenalab/kgrag/pkg/tools"
	"github.com/athenalab/kgrag/pkg/vector"
)

// buildModels creates the reasoning and fast chat clients. Both share one
// limiter so the in-flight request cap stays global across models.
func buildModels(cfg *config.Config) (reasoning, fast *llm.Client, limiter *semaphore.Weighted, err error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil, nil, fmt.Errorf("KGRAG_LLM_API_KEY is required for this command")
	}
	limiter = semaphore.NewWeighted(int64(cfg.LLM.Concurrency))
	reasoning = llm.NewClient(llm.ClientConfig{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		RequestTimeout: cfg.LLM.RequestTimeout,
		Limiter:        limiter,
	})
	fast = llm.NewClient(llm.ClientConfig{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.FastModel,
		RequestTimeout: cfg.LLM.RequestTimeout,
		Limiter:        limiter,
	})
	return reasoning, fast, limiter, nil
}

func buildEmbedder(cfg *config.Config, limiter *semaphore.Weighted) *llm.Embedder {
	baseURL, apiKey := cfg.EmbeddingEndpoint()
	return llm.NewEmbedder(llm.EmbedderConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   cfg.Embedding.Model,
		Limiter: limiter,
	})
}

// openVector opens the persisted chunk index. A nil embedder is allowed
// for commands that never embed.
func openVector(ctx context.Context, cfg *config.Config, embedder vector.Embedder) (*vector.ChromemStore, error) {
	store := vector.NewChromemStore(cfg.VectorIndexPath(), embedder)
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	return store, nil
}

func openGraph(ctx context.Context, cfg *config.Config) (*graph.Neo4jStore, error) {
	store, err := graph.NewNeo4jStore(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j store: %w", err)
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize neo4j store: %w", err)
	}
	return store, nil
}

// buildRegistry assembles the sub-agent tool set. Web search joins only
// when an API key is configured.
func buildRegistry(cfg *config.Config, fast *llm.Client, g graph.Store, vec vector.Store) *tools.Registry {
	list := []tools.Tool{
		tools.NewChunkSearch(vec, cfg.Agent.TopK),
		tools.NewGraphQuery(fast, cfg.LLM.FastModel, g, prompt.NewBuilder()),
	}
	if cfg.WebSearch.APIKey != "" {
		list = append(list, tools.NewWebSearch(cfg.WebSearch.BaseURL, cfg.WebSearch.APIKey, cfg.WebSearch.Limit))
	}
	return tools.NewRegistry(list...)
}

func buildOrchestrator(cfg *config.Config, reasoning *llm.Client, registry *tools.Registry) *agent.Orchestrator {
	return agent.New(agent.Options{
		Model:         reasoning,
		ModelName:     cfg.LLM.Model,
		Registry:      registry,
		MaxIterations: cfg.Agent.MaxIterations,
		MaxSteps:      cfg.Agent.MaxSteps,
		Concurrency:   int64(cfg.Agent.Concurrency),
		HistoryRounds: cfg.Agent.HistoryRounds,
	})
}

// buildPipeline wires the ingestion pipeline. vec may be nil for commands
// that never index chunks (merge).
func buildPipeline(cfg *config.Config, fast *llm.Client, g graph.Store, vec vector.Store) (*ingest.Pipeline, error) {
	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	extractor := ingest.NewExtractor(fast, cfg.LLM.FastModel, int64(cfg.LLM.Concurrency))
	return ingest.NewPipeline(ingest.PipelineOptions{
		Chunker:            chunker,
		Extractor:          extractor,
		Model:              fast,
		ModelName:          cfg.LLM.FastModel,
		Graph:              g,
		Vector:             vec,
		FileConcurrency:    int64(cfg.Ingest.FileConcurrency),
		StorageConcurrency: int64(cfg.Agent.StorageConcurrency),
	}), nil
}
