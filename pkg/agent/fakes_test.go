package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
)

// scriptedChat returns canned completions in call order and records every
// conversation it was invoked with. Streaming is not scripted.
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
	if len(m.calls) > len(m.responses) {
		return llm.Completion{}, errors.New("no scripted response left")
	}
	return llm.Completion{Content: m.responses[len(m.calls)-1]}, nil
}

func (m *scriptedChat) Stream(context.Context, []models.Message, llm.Options) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("streaming not scripted")
}

// routedChat dispatches on the system prompt so concurrent sub-agent calls
// stay deterministic. Planner and judge responses are consumed in order, the
// last one repeating.
type routedChat struct {
	mu           sync.Mutex
	plans        []string
	judges       []string
	answer       string
	answerErr    error
	subAnswer    func(task string) (string, error)
	plannerCalls [][]models.Message
	judgeCalls   [][]models.Message
}

func (m *routedChat) route(msgs []models.Message) (string, error) {
	system := msgs[0].Content
	switch {
	case strings.Contains(system, "planning module"):
		m.mu.Lock()
		defer m.mu.Unlock()
		m.plannerCalls = append(m.plannerCalls, msgs)
		return takeResponse(m.plans, len(m.plannerCalls)), nil

	case strings.Contains(system, "strict reviewer"):
		m.mu.Lock()
		defer m.mu.Unlock()
		m.judgeCalls = append(m.judgeCalls, msgs)
		return takeResponse(m.judges, len(m.judgeCalls)), nil

	case strings.Contains(system, "You are a tutor"):
		return m.answer, m.answerErr

	case strings.Contains(system, "retrieval agent"):
		task := strings.TrimPrefix(msgs[1].Content, "Task: ")
		if m.subAnswer != nil {
			return m.subAnswer(task)
		}
		return "Final Answer: findings for " + task, nil
	}
	return "", errors.New("unroutable system prompt")
}

func takeResponse(responses []string, call int) string {
	if len(responses) == 0 {
		return ""
	}
	if call > len(responses) {
		return responses[len(responses)-1]
	}
	return responses[call-1]
}

func (m *routedChat) Complete(_ context.Context, msgs []models.Message, _ llm.Options) (llm.Completion, error) {
	content, err := m.route(msgs)
	if err != nil {
		return llm.Completion{}, err
	}
	return llm.Completion{Content: content}, nil
}

func (m *routedChat) Stream(_ context.Context, msgs []models.Message, _ llm.Options) (<-chan llm.StreamChunk, error) {
	content, err := m.route(msgs)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Scope: llm.ScopeReasoning, Delta: "thinking"}
	ch <- llm.StreamChunk{Scope: llm.ScopeContent, Delta: content}
	close(ch)
	return ch, nil
}

// echoTool is a configurable test tool.
type echoTool struct {
	name string
	fail error
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "test tool" }
func (t *echoTool) Call(_ context.Context, input string) (string, error) {
	if t.fail != nil {
		return "", t.fail
	}
	return "echo: " + input, nil
}
