package services

import (
	"context"
	"sync"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
)

// profileGraph implements the profile slice of graph.Store in memory.
type profileGraph struct {
	graph.Store
	mu    sync.Mutex
	edges map[string][]graph.ProfileEdge
	fail  error
}

func newProfileGraph() *profileGraph {
	return &profileGraph{edges: make(map[string][]graph.ProfileEdge)}
}

func (g *profileGraph) UserProfile(_ context.Context, userID string) ([]graph.ProfileEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	return g.edges[userID], nil
}

func (g *profileGraph) UpsertProfileEdge(_ context.Context, userID, relType, entityName, note string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.edges[userID] = append(g.edges[userID], graph.ProfileEdge{Relation: relType, Entity: entityName, Note: note})
	return nil
}

// scriptedChat replays canned completions in order, repeating the last one.
type scriptedChat struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]models.Message
}

func (m *scriptedChat) Complete(_ context.Context, msgs []models.Message, _ llm.Options) (llm.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msgs)
	if m.err != nil {
		return llm.Completion{}, m.err
	}
	content := ""
	if len(m.responses) > 0 {
		content = m.responses[0]
		if len(m.responses) > 1 {
			m.responses = m.responses[1:]
		}
	}
	return llm.Completion{Content: content}, nil
}

func (m *scriptedChat) Stream(context.Context, []models.Message, llm.Options) (<-chan llm.StreamChunk, error) {
	return nil, nil
}

// fakeRunner stands in for the orchestrator: it records the state it was
// handed and writes a scripted outcome back.
type fakeRunner struct {
	answer   string
	internal []string
	err      error
	state    *models.TurnState
}

func (r *fakeRunner) Run(_ context.Context, state *models.TurnState, emitter events.Emitter) error {
	r.state = state
	if r.err != nil {
		return r.err
	}
	emitter.Emit(events.EventState, events.StatePayload{Phase: events.PhasePlanning, Iteration: 1})
	for _, note := range r.internal {
		state.Messages = append(state.Messages, models.AssistantMessage(note))
	}
	state.FinalAnswer = r.answer
	state.Messages = append(state.Messages, models.AssistantMessage(r.answer))
	return nil
}
