package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/athenalab/kgrag/pkg/config"
	"github.com/athenalab/kgrag/pkg/ingest"
	"github.com/athenalab/kgrag/pkg/vector"
)

func runIngest(ctx context.Context, envFile, path, docID string) error {
	pipeline, cleanup, err := ingestSetup(ctx, envFile)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := pipeline.IngestFile(ctx, path, docID)
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}

func runIngestDir(ctx context.Context, envFile, dir, glob string) error {
	pipeline, cleanup, err := ingestSetup(ctx, envFile)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := pipeline.IngestDir(ctx, dir, glob)
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}

func runMerge(ctx context.Context, envFile string) error {
	cfg, err := config.Initialize(envFile)
	if err != nil {
		return err
	}
	_, fast, _, err := buildModels(cfg)
	if err != nil {
		return err
	}

	g, err := openGraph(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Finalize(context.Background()); err != nil {
			slog.Error("Error closing neo4j driver", "error", err)
		}
	}()

	// Merge rewrites graph nodes in place; the chunk index is untouched.
	pipeline, err := buildPipeline(cfg, fast, g, nil)
	if err != nil {
		return err
	}
	stats, err := pipeline.MergeGraph(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Graph now holds %d entities and %d relations\n", stats.Entities, stats.Relations)
	return nil
}

func runRetag(ctx context.Context, envFile string) error {
	cfg, err := config.Initialize(envFile)
	if err != nil {
		return err
	}

	// Retag rewrites metadata from stored chunk content; nothing is
	// re-embedded, so no credentials are needed.
	vec, err := openVector(ctx, cfg, nil)
	if err != nil {
		return err
	}
	count, err := ingest.Retag(ctx, vec)
	if err != nil {
		return err
	}
	if err := vec.Finalize(ctx); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	fmt.Printf("Retagged %d chunks\n", count)
	return nil
}

// ingestSetup wires everything the ingest commands share: models, both
// stores and the pipeline. The returned cleanup closes the stores.
func ingestSetup(ctx context.Context, envFile string) (*ingest.Pipeline, func(), error) {
	cfg, err := config.Initialize(envFile)
	if err != nil {
		return nil, nil, err
	}
	_, fast, limiter, err := buildModels(cfg)
	if err != nil {
		return nil, nil, err
	}

	vec, err := openVector(ctx, cfg, buildEmbedder(cfg, limiter))
	if err != nil {
		return nil, nil, err
	}
	g, err := openGraph(ctx, cfg)
	if err != nil {
		finalizeVector(vec)
		return nil, nil, err
	}

	pipeline, err := buildPipeline(cfg, fast, g, vec)
	if err != nil {
		finalizeVector(vec)
		if ferr := g.Finalize(context.Background()); ferr != nil {
			slog.Error("Error closing neo4j driver", "error", ferr)
		}
		return nil, nil, err
	}

	cleanup := func() {
		finalizeVector(vec)
		if err := g.Finalize(context.Background()); err != nil {
			slog.Error("Error closing neo4j driver", "error", err)
		}
	}
	return pipeline, cleanup, nil
}

func finalizeVector(vec *vector.ChromemStore) {
	if err := vec.Finalize(context.Background()); err != nil {
		slog.Error("Error saving vector index", "error", err)
	}
}

func printStats(stats *ingest.Stats) {
	fmt.Printf("Ingested %d file(s): %d chunks, %d entities, %d relations\n",
		stats.Files, stats.Chunks, stats.Entities, stats.Relations)
}
