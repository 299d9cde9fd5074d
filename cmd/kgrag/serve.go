package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athenalab/kgrag/pkg/api"
	"github.com/athenalab/kgrag/pkg/config"
	"github.com/athenalab/kgrag/pkg/services"
	"github.com/athenalab/kgrag/pkg/session"
	"github.com/athenalab/kgrag/pkg/version"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context, envFile string) error {
	cfg, err := config.Initialize(envFile)
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("KGRAG_JWT_SECRET is required to serve the API")
	}

	reasoning, fast, limiter, err := buildModels(cfg)
	if err != nil {
		return err
	}

	vec, err := openVector(ctx, cfg, buildEmbedder(cfg, limiter))
	if err != nil {
		return err
	}
	defer func() {
		if err := vec.Finalize(context.Background()); err != nil {
			slog.Error("Error saving vector index", "error", err)
		}
	}()

	g, err := openGraph(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Finalize(context.Background()); err != nil {
			slog.Error("Error closing neo4j driver", "error", err)
		}
	}()

	store, err := session.Open(cfg.SessionDBPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Error closing session store", "error", err)
		}
	}()

	registry := buildRegistry(cfg, fast, g, vec)
	orchestrator := buildOrchestrator(cfg, reasoning, registry)

	auth := services.NewAuthService(store, cfg.Server.JWTSecret, cfg.Server.JWTTTL)
	profile := services.NewProfileService(g, fast, cfg.LLM.FastModel)
	chat := services.NewChatService(store, orchestrator, profile, cfg.Agent.HistoryRounds)
	sessions := services.NewSessionService(store)

	server := api.NewServer(auth, chat, sessions, g, store)
	if cfg.Server.DashboardDir != "" {
		server.ServeDashboard(cfg.Server.DashboardDir)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		slog.Info("HTTP server listening", "addr", addr, "version", version.GitCommit)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	case <-ctx.Done():
		slog.Info("Context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}
