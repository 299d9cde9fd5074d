package services

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenalab/kgrag/pkg/agent"
	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/session"
)

func newChatFixture(t *testing.T, runner TurnRunner) (*ChatService, *session.Store, *profileGraph) {
	t.Helper()
	store := openTestStore(t)
	g := newProfileGraph()
	profile := NewProfileService(g, &scriptedChat{responses: []string{"[]"}}, "fast")
	return NewChatService(store, runner, profile, 5), store, g
}

func TestChatAskNewSession(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{
		answer:   "BFS explores level by level.",
		internal: []string{"[Plan] [{\"id\": \"1\"}]", "[Quality Review] SUFFICIENT"},
	}
	svc, store, _ := newChatFixture(t, runner)
	alice := seedUser(t, store, "alice")

	recorder := &events.Recorder{}
	result, err := svc.AskStream(ctx, alice.ID, "", "what is BFS?", recorder)
	require.NoError(t, err)
	assert.Equal(t, "BFS explores level by level.", result.Answer)
	assert.Equal(t, models.RoleAssistant, result.Message.Role)

	sess, err := store.SessionByID(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "what is BFS?", sess.Title)
	assert.Equal(t, alice.ID, sess.UserID)

	t.Run("messages persisted in replay order", func(t *testing.T) {
		messages, err := store.ListMessages(ctx, result.SessionID)
		require.NoError(t, err)
		require.Len(t, messages, 4)
		assert.Equal(t, models.RoleUser, messages[0].Role)
		assert.Contains(t, messages[1].Content, models.InternalPlanPrefix)
		assert.Contains(t, messages[2].Content, models.InternalReviewPrefix)
		assert.Equal(t, "BFS explores level by level.", messages[3].Content)
	})

	t.Run("metadata precedes done", func(t *testing.T) {
		all := recorder.All()
		require.NotEmpty(t, all)
		assert.Equal(t, events.EventMetadata, all[0].Type)
		meta := all[0].Payload.(events.MetadataPayload)
		assert.Equal(t, result.SessionID, meta.SessionID)
		assert.Equal(t, "what is BFS?", meta.UserMessage.Content)

		assert.Equal(t, events.EventDone, all[len(all)-1].Type)
		done := all[len(all)-1].Payload.(events.DonePayload)
		assert.Equal(t, result.Answer, done.FinalAnswer)
		assert.Equal(t, result.Message.ID, done.AssistantMessage.ID)
	})
}

func TestChatAskSessionTitleTruncated(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newChatFixture(t, &fakeRunner{answer: "ok"})
	alice := seedUser(t, store, "alice")

	long := "请详细解释一下动态规划的状态转移方程是怎么推导出来的，" +
		"最好用零钱兑换和最长上升子序列这两道题举例说明整个过程"
	result, err := svc.Ask(ctx, alice.ID, "", long)
	require.NoError(t, err)

	sess, err := store.SessionByID(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 50, utf8.RuneCountInString(sess.Title))
	assert.Equal(t, string([]rune(long)[:50]), sess.Title)
}

func TestChatAskExistingSessionCarriesHistory(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{answer: "second answer"}
	svc, store, _ := newChatFixture(t, runner)
	alice := seedUser(t, store, "alice")

	first, err := svc.Ask(ctx, alice.ID, "", "what is BFS?")
	require.NoError(t, err)

	second, err := svc.Ask(ctx, alice.ID, first.SessionID, "and DFS?")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	// The prior round is handed to the runner; the new question is not
	// duplicated into history.
	require.NotNil(t, runner.state)
	assert.Equal(t, "and DFS?", runner.state.Question)
	var contents []string
	for _, m := range runner.state.History {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "what is BFS?")
	assert.Contains(t, contents, "second answer") // answer of round one (same scripted runner)
	assert.NotContains(t, contents, "and DFS?")
}

func TestChatAskOwnership(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newChatFixture(t, &fakeRunner{answer: "ok"})
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")

	result, err := svc.Ask(ctx, alice.ID, "", "what is BFS?")
	require.NoError(t, err)

	_, err = svc.Ask(ctx, bob.ID, result.SessionID, "mine now")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatAskValidation(t *testing.T) {
	svc, store, _ := newChatFixture(t, &fakeRunner{answer: "ok"})
	alice := seedUser(t, store, "alice")

	_, err := svc.Ask(context.Background(), alice.ID, "", "   ")
	assert.True(t, IsValidationError(err))
}

func TestChatAskEmptyAnswerFallsBackToApology(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newChatFixture(t, &fakeRunner{answer: "   "})
	alice := seedUser(t, store, "alice")

	result, err := svc.Ask(ctx, alice.ID, "", "what is BFS?")
	require.NoError(t, err)
	assert.Equal(t, agent.ApologyFallback, result.Answer)

	messages, err := svc.store.ListMessages(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, agent.ApologyFallback, messages[len(messages)-1].Content)
}

func TestChatAskRunnerFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newChatFixture(t, &fakeRunner{err: errors.New("model unreachable")})
	alice := seedUser(t, store, "alice")

	recorder := &events.Recorder{}
	_, err := svc.AskStream(ctx, alice.ID, "", "what is BFS?", recorder)
	require.Error(t, err)

	errs := recorder.OfType(events.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "internal error", errs[0].Payload.(events.ErrorPayload).Detail,
		"internal failure detail never leaks")
	assert.Empty(t, recorder.OfType(events.EventDone))
}

func TestChatAskUpdatesProfileAfterDone(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	g := newProfileGraph()
	model := &scriptedChat{responses: []string{
		`[{"relation_type": "WEAK_AT", "target_entity": "Dynamic Programming", "confidence": 0.9, "evidence": "asked for basics"}]`,
	}}
	profile := NewProfileService(g, model, "fast")
	svc := NewChatService(store, &fakeRunner{answer: "DP caches subproblems."}, profile, 5)
	alice := seedUser(t, store, "alice")

	_, err := svc.Ask(ctx, alice.ID, "", "what is dynamic programming?")
	require.NoError(t, err)

	edges, err := g.UserProfile(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "Dynamic Programming", edges[0].Entity)
}

func TestChatAskProfileFailureDoesNotAffectAnswer(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	g := newProfileGraph()
	g.fail = errors.New("neo4j down")
	profile := NewProfileService(g, &scriptedChat{responses: []string{"[]"}}, "fast")
	svc := NewChatService(store, &fakeRunner{answer: "still fine"}, profile, 5)
	alice := seedUser(t, store, "alice")

	result, err := svc.Ask(ctx, alice.ID, "", "what is BFS?")
	require.NoError(t, err)
	assert.Equal(t, "still fine", result.Answer)
}

var _ graph.Store = (*profileGraph)(nil)
