package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/prompt"
	"github.com/athenalab/kgrag/pkg/tools"
)

func newTestSubAgent(model *scriptedChat, maxSteps int, ts ...tools.Tool) *SubAgent {
	if len(ts) == 0 {
		ts = []tools.Tool{&echoTool{name: "echo"}}
	}
	return NewSubAgent(model, "test-model", tools.NewRegistry(ts...), prompt.NewBuilder(), maxSteps)
}

func TestSubAgentDirectFinalAnswer(t *testing.T) {
	model := &scriptedChat{responses: []string{"Thought: trivial\nFinal Answer: BFS visits level by level."}}
	agent := newTestSubAgent(model, 6)

	answer, trace, err := agent.Run(context.Background(), "1", "explain BFS", &events.Recorder{})
	require.NoError(t, err)
	assert.Equal(t, "BFS visits level by level.", answer)
	assert.Empty(t, trace)
	assert.Len(t, model.calls, 1)
}

func TestSubAgentToolCall(t *testing.T) {
	model := &scriptedChat{responses: []string{
		"Thought: search first\nAction: echo\nAction Input: hello",
		"Final Answer: saw hello",
	}}
	agent := newTestSubAgent(model, 6)
	rec := &events.Recorder{}

	answer, trace, err := agent.Run(context.Background(), "1", "task", rec)
	require.NoError(t, err)
	assert.Equal(t, "saw hello", answer)

	// Trace carries the assistant/tool pair.
	require.Len(t, trace, 2)
	assert.Equal(t, models.RoleAssistant, trace[0].Role)
	require.Len(t, trace[0].ToolCalls, 1)
	assert.Equal(t, "echo", trace[0].ToolCalls[0].Name)
	assert.Equal(t, "hello", trace[0].ToolCalls[0].Arguments)
	assert.Equal(t, models.RoleTool, trace[1].Role)
	assert.Equal(t, "echo: hello", trace[1].Content)

	// The observation was fed back into the conversation.
	second := model.calls[1]
	assert.Equal(t, "Observation: echo: hello", second[len(second)-1].Content)

	// Pending strictly precedes the terminal event, same call id.
	calls := rec.OfType(events.EventCustom)
	var toolEvents []events.SubTaskToolCallPayload
	for _, e := range calls {
		if p, ok := e.Payload.(events.SubTaskToolCallPayload); ok {
			toolEvents = append(toolEvents, p)
		}
	}
	require.Len(t, toolEvents, 2)
	assert.Equal(t, models.ToolCallPending, toolEvents[0].ToolCall.Status)
	assert.Equal(t, "search first", toolEvents[0].ToolCall.Thought)
	assert.Equal(t, models.ToolCallCompleted, toolEvents[1].ToolCall.Status)
	assert.Equal(t, toolEvents[0].ToolCall.ID, toolEvents[1].ToolCall.ID)
	assert.Equal(t, "echo: hello", toolEvents[1].ToolCall.Result)
}

func TestSubAgentUnknownTool(t *testing.T) {
	model := &scriptedChat{responses: []string{
		"Action: fetch_everything\nAction Input: x",
		"Final Answer: adjusted",
	}}
	agent := newTestSubAgent(model, 6)

	answer, _, err := agent.Run(context.Background(), "1", "task", events.Nop)
	require.NoError(t, err)
	assert.Equal(t, "adjusted", answer)

	second := model.calls[1]
	obs := second[len(second)-1].Content
	assert.Contains(t, obs, "unknown tool 'fetch_everything'")
	assert.Contains(t, obs, "echo")
}

func TestSubAgentToolFailureObservation(t *testing.T) {
	failing := &echoTool{name: "echo", fail: tools.NewError(tools.KindStoreError, errors.New("index corrupt"))}
	model := &scriptedChat{responses: []string{
		"Action: echo\nAction Input: q",
		"Final Answer: degraded gracefully",
	}}
	agent := newTestSubAgent(model, 6, failing)

	answer, trace, err := agent.Run(context.Background(), "1", "task", events.Nop)
	require.NoError(t, err)
	assert.Equal(t, "degraded gracefully", answer)

	second := model.calls[1]
	assert.Equal(t, "Observation: Error: tool 'echo' raised StoreError: index corrupt",
		second[len(second)-1].Content)
	require.Len(t, trace, 2)
	assert.Contains(t, trace[1].Content, "raised StoreError")
}

func TestSubAgentFormatRepair(t *testing.T) {
	t.Run("repaired on second attempt", func(t *testing.T) {
		model := &scriptedChat{responses: []string{
			"I will just describe what I would do.",
			"Final Answer: repaired",
		}}
		agent := newTestSubAgent(model, 6)

		answer, _, err := agent.Run(context.Background(), "1", "task", events.Nop)
		require.NoError(t, err)
		assert.Equal(t, "repaired", answer)

		second := model.calls[1]
		last := second[len(second)-1]
		assert.Equal(t, models.RoleSystem, last.Role)
		assert.Contains(t, last.Content, "did not match the required format")
	})

	t.Run("still unparseable returns raw text", func(t *testing.T) {
		model := &scriptedChat{responses: []string{"nonsense one", "nonsense two"}}
		agent := newTestSubAgent(model, 6)

		answer, _, err := agent.Run(context.Background(), "1", "task", events.Nop)
		require.NoError(t, err)
		assert.Equal(t, "nonsense two", answer)
	})
}

func TestSubAgentForcedConclusion(t *testing.T) {
	model := &scriptedChat{responses: []string{
		"Action: echo\nAction Input: a",
		"Thought: wrapping up\nFinal Answer: forced summary",
	}}
	agent := newTestSubAgent(model, 1)

	answer, _, err := agent.Run(context.Background(), "1", "task", events.Nop)
	require.NoError(t, err)
	assert.Equal(t, "forced summary", answer)

	second := model.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, models.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "MUST respond with a Final Answer")
}

func TestSubAgentModelError(t *testing.T) {
	model := &scriptedChat{err: errors.New("backend down")}
	agent := newTestSubAgent(model, 6)

	_, _, err := agent.Run(context.Background(), "1", "task", events.Nop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}
