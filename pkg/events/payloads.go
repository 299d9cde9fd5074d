package events

import (
	"time"

	"github.com/athenalab/kgrag/pkg/models"
)

// MessageRef is a persisted message as exposed on the stream.
type MessageRef struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MetadataPayload is the first event of a turn: the session and the stored
// user message.
type MetadataPayload struct {
	SessionID   string     `json:"session_id"`
	UserMessage MessageRef `json:"user_message"`
}

// ResetPayload opens a new reasoning/content region for a scope; consumers
// clear any previous text for that scope.
type ResetPayload struct {
	Type  string `json:"type"` // reasoning_reset or content_reset
	Scope string `json:"scope"`
}

// DeltaPayload carries one model-produced text fragment.
type DeltaPayload struct {
	Type  string `json:"type"` // reasoning_delta or content_delta
	Scope string `json:"scope"`
	Delta string `json:"delta"`
}

// SubTaskStatusPayload reports a sub-task entering or leaving execution.
type SubTaskStatusPayload struct {
	Type      string `json:"type"` // always subtask_status
	SubTaskID string `json:"sub_task_id"`
	Status    string `json:"status"` // in_progress or completed
}

// ToolCallRef is the streamed view of one tool invocation. A given ID is
// emitted exactly once as pending and exactly once as completed or error;
// Result is truncated for transport.
type ToolCallRef struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Thought string         `json:"thought,omitempty"`
	Status  string         `json:"status"`
	Result  string         `json:"result,omitempty"`
}

// SubTaskToolCallPayload reports one tool-call transition within a sub-task.
type SubTaskToolCallPayload struct {
	Type      string      `json:"type"` // always subtask_tool_call
	SubTaskID string      `json:"sub_task_id"`
	ToolCall  ToolCallRef `json:"tool_call"`
}

// SubTaskResultPayload carries a finished sub-task's final answer.
type SubTaskResultPayload struct {
	Type      string `json:"type"` // always subtask_result
	SubTaskID string `json:"sub_task_id"`
	Result    string `json:"result"`
}

// StatePayload is a turn-state snapshot. Iteration is monotonic within a
// turn.
type StatePayload struct {
	Phase       string            `json:"phase"`
	Todos       []models.TodoItem `json:"todos"`
	FinalAnswer string            `json:"final_answer"`
	Iteration   int               `json:"iteration"`
}

// DonePayload terminates a successful turn.
type DonePayload struct {
	AssistantMessage MessageRef `json:"assistant_message"`
	FinalAnswer      string     `json:"final_answer"`
}

// ErrorPayload terminates a failed turn. Detail is generic; internal errors
// never leak here.
type ErrorPayload struct {
	Detail string `json:"detail"`
}
