package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/athenalab/kgrag/pkg/config"
	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/services"
	"github.com/athenalab/kgrag/pkg/session"
	"github.com/athenalab/kgrag/pkg/version"
)

// runChat drives a terminal conversation against the same turn pipeline
// the HTTP API uses. Each run opens one session; an empty line or EOF
// exits.
func runChat(ctx context.Context, envFile, username string) error {
	cfg, err := config.Initialize(envFile)
	if err != nil {
		return err
	}

	reasoning, fast, limiter, err := buildModels(cfg)
	if err != nil {
		return err
	}

	vec, err := openVector(ctx, cfg, buildEmbedder(cfg, limiter))
	if err != nil {
		return err
	}
	defer finalizeVector(vec)

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

	orchestrator := buildOrchestrator(cfg, reasoning, buildRegistry(cfg, fast, g, vec))
	profile := services.NewProfileService(g, fast, cfg.LLM.FastModel)
	chat := services.NewChatService(store, orchestrator, profile, cfg.Agent.HistoryRounds)

	user, err := consoleUser(ctx, store, username)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s — chatting as %s, empty line or Ctrl-D exits\n",
		version.AppName, version.GitCommit, user.Username)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	sessionID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		result, err := chat.AskStream(ctx, user.ID, sessionID, question, consoleEmitter())
		fmt.Println()
		if err != nil {
			slog.Error("Turn failed", "error", err)
			continue
		}
		sessionID = result.SessionID
	}
	return scanner.Err()
}

// consoleUser finds or creates the local user owning terminal sessions.
// Console users carry no password hash, so they cannot log in over HTTP.
func consoleUser(ctx context.Context, store *session.Store, username string) (*models.User, error) {
	user, err := store.UserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}

	created := models.User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.CreateUser(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return &created, nil
}

// consoleEmitter renders stream events as terminal output: answer text
// verbatim, one-line progress markers for everything else.
func consoleEmitter() events.Emitter {
	return events.EmitterFunc(func(eventType string, payload any) {
		switch p := payload.(type) {
		case events.StatePayload:
			fmt.Printf("\n·· %s (iteration %d)\n", p.Phase, p.Iteration)
		case events.DeltaPayload:
			if p.Type == events.CustomContentDelta && p.Scope == events.ScopeAnswering {
				fmt.Print(p.Delta)
			}
		case events.SubTaskToolCallPayload:
			if p.ToolCall.Name != "" {
				fmt.Printf("·· %s → %s\n", p.SubTaskID, p.ToolCall.Name)
			}
		case events.SubTaskResultPayload:
			fmt.Printf("·· %s done\n", p.SubTaskID)
		case events.ErrorPayload:
			fmt.Printf("\nerror: %s\n", p.Detail)
		}
	})
}
