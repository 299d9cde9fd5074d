package models

import "strings"

// Todo statuses.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// Tool-call statuses as streamed to the client.
const (
	ToolCallPending   = "pending"
	ToolCallCompleted = "completed"
	ToolCallError     = "error"
)

// Internal assistant-message prefixes. Messages carrying one of these are
// bookkeeping records and are excluded from the dialogue history shown to
// the planner.
const (
	InternalPlanPrefix    = "[Plan]"
	InternalResultsPrefix = "[Aggregated Results]"
	InternalReviewPrefix  = "[Quality Review]"
)

// IsInternalNote reports whether an assistant message is an internal
// bookkeeping record rather than a user-facing answer.
func IsInternalNote(content string) bool {
	return strings.HasPrefix(content, InternalPlanPrefix) ||
		strings.HasPrefix(content, InternalResultsPrefix) ||
		strings.HasPrefix(content, InternalReviewPrefix)
}

// TodoItem is one sub-task produced by the planner.
type TodoItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

// SubTaskResult is the outcome of one executed sub-task. Trace carries the
// assistant/tool message pairs recorded during execution.
type SubTaskResult struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Trace   []Message `json:"trace,omitempty"`
}

// TurnState carries everything the orchestrator tracks for one user turn.
// It is created when the turn starts and discarded after the response.
type TurnState struct {
	SessionID     string          `json:"session_id"`
	Question      string          `json:"question"`
	History       []Message       `json:"history,omitempty"`
	UserProfile   string          `json:"user_profile,omitempty"`
	Todos         []TodoItem      `json:"todos"`
	Iteration     int             `json:"iteration"`
	MaxIterations int             `json:"max_iterations"`
	Results       []SubTaskResult `json:"results"`
	FinalAnswer   string          `json:"final_answer"`
	Messages      []Message       `json:"messages"`
}
