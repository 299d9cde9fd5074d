package agent

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/models"
)

// FailedSubTaskResult replaces the intermediate result of a sub-task whose
// execution failed. One failed sub-task never aborts the turn.
const FailedSubTaskResult = "ERROR: sub-task failed"

// Runner fans sub-tasks out under a concurrency cap and collects their
// results in submission order.
type Runner struct {
	agent *SubAgent
	sem   *semaphore.Weighted
}

// NewRunner creates a runner. concurrency values below 1 fall back to 3.
func NewRunner(agent *SubAgent, concurrency int64) *Runner {
	if concurrency < 1 {
		concurrency = 3
	}
	return &Runner{agent: agent, sem: semaphore.NewWeighted(concurrency)}
}

// Execute runs every todo concurrently and returns one result per todo, in
// todo order regardless of completion order. Todo statuses are updated in
// place; every todo is completed when Execute returns.
func (r *Runner) Execute(ctx context.Context, todos []models.TodoItem, emitter events.Emitter) []models.SubTaskResult {
	results := make([]models.SubTaskResult, len(todos))
	var wg sync.WaitGroup

	for i := range todos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					slog.Error("Sub-task panicked", "sub_task_id", todos[i].ID, "panic", p)
					results[i] = models.SubTaskResult{ID: todos[i].ID, Content: FailedSubTaskResult}
					todos[i].Status = models.TodoCompleted
				}
			}()
			results[i] = r.runOne(ctx, &todos[i], emitter)
		}(i)
	}

	wg.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, todo *models.TodoItem, emitter events.Emitter) models.SubTaskResult {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		todo.Status = models.TodoCompleted
		return models.SubTaskResult{ID: todo.ID, Content: FailedSubTaskResult}
	}
	defer r.sem.Release(1)

	todo.Status = models.TodoInProgress
	emitter.Emit(events.EventCustom, events.SubTaskStatusPayload{
		Type:      events.CustomSubTaskStatus,
		SubTaskID: todo.ID,
		Status:    models.TodoInProgress,
	})

	answer, trace, err := r.agent.Run(ctx, todo.ID, todo.Content, emitter)
	if err != nil {
		slog.Warn("Sub-task failed", "sub_task_id", todo.ID, "error", err)
		answer = FailedSubTaskResult
		trace = nil
	}

	todo.Status = models.TodoCompleted
	emitter.Emit(events.EventCustom, events.SubTaskResultPayload{
		Type:      events.CustomSubTaskResult,
		SubTaskID: todo.ID,
		Result:    truncateRunes(answer, eventResultRuneLimit),
	})
	emitter.Emit(events.EventCustom, events.SubTaskStatusPayload{
		Type:      events.CustomSubTaskStatus,
		SubTaskID: todo.ID,
		Status:    models.TodoCompleted,
	})

	return models.SubTaskResult{ID: todo.ID, Content: answer, Trace: trace}
}
