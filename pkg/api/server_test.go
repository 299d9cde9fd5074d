package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/services"
	"github.com/athenalab/kgrag/pkg/session"
)

// stubRunner stands in for the orchestrator: it emits one delta and answers
// with a fixed string.
type stubRunner struct {
	answer string
}

func (r *stubRunner) Run(_ context.Context, state *models.TurnState, emitter events.Emitter) error {
	emitter.Emit(events.EventState, events.StatePayload{Phase: events.PhasePlanning, Iteration: 1})
	emitter.Emit(events.EventCustom, events.DeltaPayload{
		Type: events.CustomContentDelta, Scope: events.ScopeAnswering, Delta: r.answer,
	})
	state.FinalAnswer = r.answer
	state.Messages = append(state.Messages, models.AssistantMessage(r.answer))
	return nil
}

// stubGraph implements the slices of graph.Store the API exercises.
type stubGraph struct {
	graph.Store
}

func (g *stubGraph) UserProfile(context.Context, string) ([]graph.ProfileEdge, error) {
	return nil, nil
}

func (g *stubGraph) UpsertProfileEdge(context.Context, string, string, string, string) error {
	return nil
}

func (g *stubGraph) GraphOverview(_ context.Context, limit int) (*graph.Overview, error) {
	return &graph.Overview{
		EntityCounts:   map[string]int64{models.EntityAlgorithm: 3},
		RelationCounts: map[string]int64{models.RelUses: 2},
		SampleNodes:    []models.Entity{{Name: "Breadth-First Search", Type: models.EntityAlgorithm}},
		SampleEdges:    []models.Relation{{Source: "Breadth-First Search", Target: "Queue", Type: models.RelUses}},
	}, nil
}

// stubChat answers every completion with an empty proposal list, which keeps
// the post-turn profile update a no-op.
type stubChat struct{}

func (stubChat) Complete(context.Context, []models.Message, llm.Options) (llm.Completion, error) {
	return llm.Completion{Content: "[]"}, nil
}

func (stubChat) Stream(context.Context, []models.Message, llm.Options) (<-chan llm.StreamChunk, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()
	store, err := session.Open(filepath.Join(t.TempDir(), "kgrag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g := &stubGraph{}
	auth := services.NewAuthService(store, "test-secret", time.Hour)
	profile := services.NewProfileService(g, stubChat{}, "fast")
	chat := services.NewChatService(store, &stubRunner{answer: "BFS explores level by level."}, profile, 5)
	sessions := services.NewSessionService(store)

	return NewServer(auth, chat, sessions, g, store), store
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, srv *Server, username string) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register", "",
		RegisterRequest{Username: username, Password: "hunter22"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		LoginRequest{Username: username, Password: "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var token TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	require.Equal(t, "bearer", token.TokenType)
	return token.AccessToken
}
