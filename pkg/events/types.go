// Package events defines the streaming event contract for one turn: typed
// payloads delivered to the transport (SSE) or any other consumer through an
// Emitter. Emission is best-effort; a consumer that stops listening never
// fails the turn.
package events

// Stream event types. One SSE event per emission, `event:` field set to one
// of these.
const (
	EventMetadata = "metadata"
	EventCustom   = "custom"
	EventState    = "state"
	EventDone     = "done"
	EventError    = "error"
)

// Custom payload discriminators (the `type` field inside a custom event).
const (
	CustomReasoningReset  = "reasoning_reset"
	CustomContentReset    = "content_reset"
	CustomReasoningDelta  = "reasoning_delta"
	CustomContentDelta    = "content_delta"
	CustomSubTaskStatus   = "subtask_status"
	CustomSubTaskToolCall = "subtask_tool_call"
	CustomSubTaskResult   = "subtask_result"
)

// Streaming scopes route reasoning/content deltas to distinct UI regions.
const (
	ScopePlanning  = "planning"
	ScopeReviewing = "reviewing"
	ScopeAnswering = "answering"
)

// Turn phases reported in state events.
const (
	PhasePlanning  = "planning"
	PhaseExecuting = "executing"
	PhaseReviewing = "reviewing"
	PhaseAnswering = "answering"
)
