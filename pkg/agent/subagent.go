package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/prompt"
	"github.com/athenalab/kgrag/pkg/tools"
)

// Result text streamed to the client is bounded; the full text still lands
// in the sub-task trace.
const eventResultRuneLimit = 500

// SubAgent drives one sub-task to a textual final answer with the
// Thought/Action/Observation protocol.
type SubAgent struct {
	model     llm.ChatModel
	modelName string
	registry  *tools.Registry
	prompts   *prompt.Builder
	maxSteps  int
}

// NewSubAgent creates a sub-agent. maxSteps values below 1 fall back to 6.
func NewSubAgent(model llm.ChatModel, modelName string, registry *tools.Registry, prompts *prompt.Builder, maxSteps int) *SubAgent {
	if maxSteps < 1 {
		maxSteps = 6
	}
	return &SubAgent{
		model:     model,
		modelName: modelName,
		registry:  registry,
		prompts:   prompts,
		maxSteps:  maxSteps,
	}
}

// Run executes one sub-task. It returns the final answer plus the ordered
// tool-call trace (assistant-with-tool-call, tool-result pairs). The model's
// plain-text conversation is internal and not returned.
func (a *SubAgent) Run(ctx context.Context, subTaskID, task string, emitter events.Emitter) (string, []models.Message, error) {
	msgs := a.prompts.SubAgentMessages(task, a.registry.Specs())
	allowed := make(map[string]struct{})
	for _, name := range a.registry.Names() {
		allowed[name] = struct{}{}
	}

	var trace []models.Message
	formatRepaired := false

	for step := 0; step < a.maxSteps; step++ {
		completion, err := a.model.Complete(ctx, msgs, llm.Options{Model: a.modelName})
		if err != nil {
			return "", trace, fmt.Errorf("failed to complete sub-agent step: %w", err)
		}
		raw := completion.Content

		parsed := ParseResponse(raw, allowed)
		switch {
		case parsed.IsFinal:
			return parsed.FinalAnswer, trace, nil

		case parsed.HasAction:
			observation, pair := a.invokeTool(ctx, subTaskID, raw, parsed, emitter)
			trace = append(trace, pair...)
			msgs = append(msgs,
				models.AssistantMessage(raw),
				models.UserMessage("Observation: "+observation),
			)

		default:
			if !formatRepaired {
				// One format-repair turn: restate the protocol verbatim.
				formatRepaired = true
				msgs = append(msgs,
					models.AssistantMessage(raw),
					models.SystemMessage(a.prompts.FormatReminder()),
				)
				continue
			}
			// Still unparseable after the repair turn: degrade gracefully.
			return raw, trace, nil
		}
	}

	return a.forceConclusion(ctx, msgs, allowed, trace)
}

// invokeTool runs one parsed action, converting unknown tools and tool
// failures into observations. It returns the observation text and the trace
// pair for the outer state.
func (a *SubAgent) invokeTool(ctx context.Context, subTaskID, raw string, parsed ParsedResponse, emitter events.Emitter) (string, []models.Message) {
	callID := uuid.NewString()
	emitter.Emit(events.EventCustom, events.SubTaskToolCallPayload{
		Type:      events.CustomSubTaskToolCall,
		SubTaskID: subTaskID,
		ToolCall: events.ToolCallRef{
			ID:      callID,
			Name:    parsed.Tool,
			Args:    map[string]any{"input": parsed.Input},
			Thought: parsed.Thought,
			Status:  models.ToolCallPending,
		},
	})

	var observation string
	status := models.ToolCallCompleted

	tool, ok := a.registry.Get(parsed.Tool)
	if !ok {
		observation = a.registry.UnknownToolObservation(parsed.Tool)
		status = models.ToolCallError
	} else if out, err := tool.Call(ctx, parsed.Input); err != nil {
		observation = fmt.Sprintf("Error: tool '%s' raised %s: %s", parsed.Tool, tools.KindOf(err), err.Error())
		status = models.ToolCallError
		slog.Warn("Tool call failed", "sub_task_id", subTaskID, "tool", parsed.Tool, "error", err)
	} else {
		observation = out
	}

	emitter.Emit(events.EventCustom, events.SubTaskToolCallPayload{
		Type:      events.CustomSubTaskToolCall,
		SubTaskID: subTaskID,
		ToolCall: events.ToolCallRef{
			ID:     callID,
			Name:   parsed.Tool,
			Status: status,
			Result: truncateRunes(observation, eventResultRuneLimit),
		},
	})

	assistant := models.Message{
		Role:    models.RoleAssistant,
		Content: raw,
		ToolCalls: []models.ToolCall{
			{ID: callID, Name: parsed.Tool, Arguments: parsed.Input},
		},
	}
	return observation, []models.Message{assistant, models.ToolMessage(callID, parsed.Tool, observation)}
}

// forceConclusion takes one final model turn after the step ceiling, demanding
// a Final Answer from the observations gathered so far.
func (a *SubAgent) forceConclusion(ctx context.Context, msgs []models.Message, allowed map[string]struct{}, trace []models.Message) (string, []models.Message, error) {
	msgs = append(msgs, models.SystemMessage(a.prompts.ForcedConclusion()))
	completion, err := a.model.Complete(ctx, msgs, llm.Options{Model: a.modelName})
	if err != nil {
		return "", trace, fmt.Errorf("failed to force sub-agent conclusion: %w", err)
	}
	if parsed := ParseResponse(completion.Content, allowed); parsed.IsFinal {
		return parsed.FinalAnswer, trace, nil
	}
	return completion.Content, trace, nil
}
