// Package agent implements the turn orchestration loop: plan sub-tasks, fan
// them out to tool-using sub-agents, aggregate their results, judge
// sufficiency and compose the final answer, streaming progress events along
// the way.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/prompt"
	"github.com/athenalab/kgrag/pkg/tools"
)

// ApologyFallback is the fixed reply used when no usable answer could be
// produced.
const ApologyFallback = "抱歉，我暂时无法生成可用回答。"

// Options configures an Orchestrator. Zero values fall back to the defaults
// noted per field.
type Options struct {
	Model         llm.ChatModel
	ModelName     string
	Registry      *tools.Registry
	MaxIterations int   // default 3
	MaxSteps      int   // per sub-task, default 6
	Concurrency   int64 // sub-task fan-out cap, default 3
	HistoryRounds int   // dialogue rounds shown to the planner, default 5
}

// Orchestrator drives the fixed node sequence
// plan → execute → aggregate → judge → (plan | respond).
type Orchestrator struct {
	model         llm.ChatModel
	modelName     string
	prompts       *prompt.Builder
	runner        *Runner
	maxIterations int
	historyRounds int
}

// New creates an orchestrator with its sub-agent runner.
func New(opts Options) *Orchestrator {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 3
	}
	if opts.HistoryRounds < 1 {
		opts.HistoryRounds = 5
	}
	prompts := prompt.NewBuilder()
	subAgent := NewSubAgent(opts.Model, opts.ModelName, opts.Registry, prompts, opts.MaxSteps)
	return &Orchestrator{
		model:         opts.Model,
		modelName:     opts.ModelName,
		prompts:       prompts,
		runner:        NewRunner(subAgent, opts.Concurrency),
		maxIterations: opts.MaxIterations,
		historyRounds: opts.HistoryRounds,
	}
}

// Run executes one turn over the given state. On return the state carries the
// final answer, the appended internal and assistant messages, and an
// iteration count equal to the number of completed plans.
func (o *Orchestrator) Run(ctx context.Context, state *models.TurnState, emitter events.Emitter) error {
	if strings.TrimSpace(state.Question) == "" {
		return errors.New("question is empty")
	}
	if state.MaxIterations < 1 {
		state.MaxIterations = o.maxIterations
	}
	if emitter == nil {
		emitter = events.Nop
	}

	history := RenderHistory(state.History, o.historyRounds)
	gap := ""

	for {
		state.Iteration++
		emitter.Emit(events.EventState, statePayload(state, events.PhasePlanning))

		todos, planRaw, err := o.plan(ctx, state, history, gap, emitter)
		if err != nil {
			return fmt.Errorf("failed to plan sub-tasks: %w", err)
		}
		state.Todos = todos
		state.Messages = append(state.Messages,
			models.AssistantMessage(models.InternalPlanPrefix+" "+planRaw))

		emitter.Emit(events.EventState, statePayload(state, events.PhaseExecuting))
		results := o.runner.Execute(ctx, state.Todos, emitter)
		state.Results = append(state.Results, results...)

		aggregated := Aggregate(state.Results)
		state.Messages = append(state.Messages,
			models.AssistantMessage(models.InternalResultsPrefix+"\n"+aggregated))

		emitter.Emit(events.EventState, statePayload(state, events.PhaseReviewing))
		sufficient, verdict := o.judge(ctx, state, aggregated, emitter)
		state.Messages = append(state.Messages,
			models.AssistantMessage(models.InternalReviewPrefix+" "+verdict))

		if sufficient || state.Iteration >= state.MaxIterations {
			break
		}
		gap = verdict
	}

	emitter.Emit(events.EventState, statePayload(state, events.PhaseAnswering))
	state.FinalAnswer = o.respond(ctx, state, Aggregate(state.Results), emitter)
	state.Messages = append(state.Messages, models.AssistantMessage(state.FinalAnswer))
	return nil
}

// Aggregate joins intermediate results into the evidence block shared by the
// judge, the responder and the re-planning prompt.
func Aggregate(results []models.SubTaskResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Sub-task %s] %s", r.ID, r.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (o *Orchestrator) plan(ctx context.Context, state *models.TurnState, history, gap string, emitter events.Emitter) ([]models.TodoItem, string, error) {
	priorEvidence := ""
	if state.Iteration > 1 {
		priorEvidence = Aggregate(state.Results)
	}
	msgs := o.prompts.PlannerMessages(state.UserProfile, state.MaxIterations, history, state.Question, priorEvidence, gap)

	completion, err := o.streamScoped(ctx, msgs, events.ScopePlanning, emitter)
	if err != nil {
		return nil, "", err
	}
	return ParsePlan(completion.Content), completion.Content, nil
}

// judge reviews the evidence for sufficiency. A judge failure is logged and
// treated as sufficient so the turn still produces an answer from whatever
// evidence exists.
func (o *Orchestrator) judge(ctx context.Context, state *models.TurnState, evidence string, emitter events.Emitter) (bool, string) {
	msgs := o.prompts.JudgeMessages(state.Question, evidence)
	completion, err := o.streamScoped(ctx, msgs, events.ScopeReviewing, emitter)
	if err != nil {
		slog.Warn("Judge call failed, proceeding to answer", "session_id", state.SessionID, "error", err)
		return true, "review unavailable"
	}

	verdict := strings.TrimSpace(completion.Content)
	if strings.HasPrefix(strings.ToUpper(verdict), "SUFFICIENT") {
		return true, verdict
	}
	return false, verdict
}

// respond composes the final answer, streaming it in the answering scope.
// Falls back to a non-streaming call, then to the fixed apology.
func (o *Orchestrator) respond(ctx context.Context, state *models.TurnState, evidence string, emitter events.Emitter) string {
	msgs := o.prompts.ResponderMessages(state.UserProfile, state.Question, evidence)

	completion, err := o.streamScoped(ctx, msgs, events.ScopeAnswering, emitter)
	if err == nil && strings.TrimSpace(completion.Content) != "" {
		return completion.Content
	}
	if err != nil {
		slog.Warn("Streaming responder failed, retrying non-streaming", "session_id", state.SessionID, "error", err)
	}

	fallback, err := o.model.Complete(ctx, msgs, llm.Options{Model: o.modelName})
	if err != nil || strings.TrimSpace(fallback.Content) == "" {
		if err != nil {
			slog.Warn("Non-streaming responder failed", "session_id", state.SessionID, "error", err)
		}
		return ApologyFallback
	}

	// The non-streaming answer still has to reach the stream consumer.
	emitter.Emit(events.EventCustom, events.DeltaPayload{
		Type:  events.CustomContentDelta,
		Scope: events.ScopeAnswering,
		Delta: fallback.Content,
	})
	return fallback.Content
}

// streamScoped opens a reasoning/content region for the scope, streams one
// model call through it and returns the collected completion. A stream that
// cannot be opened falls back to a non-streaming call.
func (o *Orchestrator) streamScoped(ctx context.Context, msgs []models.Message, scope string, emitter events.Emitter) (llm.Completion, error) {
	emitter.Emit(events.EventCustom, events.ResetPayload{Type: events.CustomReasoningReset, Scope: scope})
	emitter.Emit(events.EventCustom, events.ResetPayload{Type: events.CustomContentReset, Scope: scope})

	chunks, err := o.model.Stream(ctx, msgs, llm.Options{Model: o.modelName})
	if err != nil {
		slog.Warn("Stream setup failed, falling back to non-streaming", "scope", scope, "error", err)
		completion, cerr := o.model.Complete(ctx, msgs, llm.Options{Model: o.modelName})
		if cerr != nil {
			return llm.Completion{}, fmt.Errorf("failed to call model for %s: %w", scope, cerr)
		}
		emitter.Emit(events.EventCustom, events.DeltaPayload{
			Type:  events.CustomContentDelta,
			Scope: scope,
			Delta: completion.Content,
		})
		return completion, nil
	}

	var content, reasoning strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return llm.Completion{Content: content.String(), Reasoning: reasoning.String()},
				fmt.Errorf("stream failed for %s: %w", scope, chunk.Err)
		}
		deltaType := events.CustomContentDelta
		if chunk.Scope == llm.ScopeReasoning {
			deltaType = events.CustomReasoningDelta
			reasoning.WriteString(chunk.Delta)
		} else {
			content.WriteString(chunk.Delta)
		}
		emitter.Emit(events.EventCustom, events.DeltaPayload{
			Type:  deltaType,
			Scope: scope,
			Delta: chunk.Delta,
		})
	}
	return llm.Completion{Content: content.String(), Reasoning: reasoning.String()}, nil
}

func statePayload(state *models.TurnState, phase string) events.StatePayload {
	todos := make([]models.TodoItem, len(state.Todos))
	copy(todos, state.Todos)
	return events.StatePayload{
		Phase:       phase,
		Todos:       todos,
		FinalAnswer: state.FinalAnswer,
		Iteration:   state.Iteration,
	}
}
