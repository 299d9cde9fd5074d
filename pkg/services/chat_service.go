package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/athenalab/kgrag/pkg/agent"
	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/session"
)

const sessionTitleRunes = 50

// TurnRunner drives one agent turn. Satisfied by *agent.Orchestrator.
type TurnRunner interface {
	Run(ctx context.Context, state *models.TurnState, emitter events.Emitter) error
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	SessionID string             `json:"session_id"`
	Answer    string             `json:"answer"`
	Message   models.ChatMessage `json:"message"`
}

// ChatService owns the turn lifecycle: session resolution, history assembly,
// persistence, event emission and post-turn profile maintenance.
type ChatService struct {
	store         *session.Store
	runner        TurnRunner
	profile       *ProfileService
	historyRounds int
}

// NewChatService creates a chat service. A historyRounds below 1 falls back
// to 5.
func NewChatService(store *session.Store, runner TurnRunner, profile *ProfileService, historyRounds int) *ChatService {
	if historyRounds < 1 {
		historyRounds = 5
	}
	return &ChatService{store: store, runner: runner, profile: profile, historyRounds: historyRounds}
}

// Ask runs one synchronous turn with no event consumer.
func (s *ChatService) Ask(ctx context.Context, userID, sessionID, question string) (*TurnResult, error) {
	return s.AskStream(ctx, userID, sessionID, question, events.Nop)
}

// AskStream runs one turn, emitting the stream events of the turn contract:
// metadata first, then the orchestrator's custom/state events, then done (or
// error). An empty sessionID starts a new session titled after the question.
//
// The context is the caller's request context; a turn can run for minutes, so
// no service-side timeout is applied.
func (s *ChatService) AskStream(ctx context.Context, userID, sessionID, question string, emitter events.Emitter) (*TurnResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, NewValidationError("question", "is required")
	}
	if emitter == nil {
		emitter = events.Nop
	}

	sess, err := s.resolveSession(ctx, userID, sessionID, question)
	if err != nil {
		return nil, err
	}

	// History is captured before the new user message is stored so the
	// question appears exactly once in the planner prompt. Internal
	// bookkeeping messages inflate the raw row count, so the window is
	// fetched generously; the renderer trims to whole rounds.
	history, err := s.store.LastMessages(ctx, sess.ID, s.historyRounds*8)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	userMsg, err := s.persistMessage(ctx, sess.ID, models.RoleUser, question, time.Now())
	if err != nil {
		return nil, err
	}
	emitter.Emit(events.EventMetadata, events.MetadataPayload{
		SessionID:   sess.ID,
		UserMessage: messageRef(userMsg),
	})

	profileText := ""
	if s.profile != nil {
		if profileText, err = s.profile.Text(ctx, userID); err != nil {
			slog.Warn("Profile unavailable for turn", "user_id", userID, "error", err)
			profileText = ""
		}
	}

	state := &models.TurnState{
		SessionID:   sess.ID,
		Question:    question,
		History:     toPromptMessages(history),
		UserProfile: profileText,
	}
	if err := s.runner.Run(ctx, state, emitter); err != nil {
		emitter.Emit(events.EventError, events.ErrorPayload{Detail: "internal error"})
		return nil, fmt.Errorf("turn failed: %w", err)
	}

	answer := state.FinalAnswer
	if strings.TrimSpace(answer) == "" {
		answer = agent.ApologyFallback
	}

	// Internal notes first, then the user-facing answer. Timestamps step by
	// one millisecond so chronological reads replay production order even
	// within a single clock tick.
	at := time.Now()
	for _, m := range state.Messages {
		if m.Role != models.RoleAssistant || !models.IsInternalNote(m.Content) {
			continue
		}
		if _, err := s.persistMessage(ctx, sess.ID, models.RoleAssistant, m.Content, at); err != nil {
			return nil, err
		}
		at = at.Add(time.Millisecond)
	}
	assistantMsg, err := s.persistMessage(ctx, sess.ID, models.RoleAssistant, answer, at)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchSession(ctx, sess.ID, assistantMsg.CreatedAt); err != nil {
		slog.Warn("Failed to touch session", "session_id", sess.ID, "error", err)
	}

	emitter.Emit(events.EventDone, events.DonePayload{
		AssistantMessage: messageRef(assistantMsg),
		FinalAnswer:      answer,
	})

	// Profile maintenance happens after done: its outcome never affects
	// the delivered answer.
	if s.profile != nil {
		if applied, err := s.profile.Update(ctx, userID, question, answer); err != nil {
			slog.Warn("Profile update failed", "user_id", userID, "error", err)
		} else if applied > 0 {
			slog.Info("Profile updated", "user_id", userID, "edges", applied)
		}
	}

	return &TurnResult{SessionID: sess.ID, Answer: answer, Message: assistantMsg}, nil
}

func (s *ChatService) resolveSession(ctx context.Context, userID, sessionID, question string) (*models.ChatSession, error) {
	if sessionID != "" {
		sess, err := s.store.SessionByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if sess.UserID != userID {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return sess, nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := models.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     sessionTitle(question),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &sess, nil
}

func (s *ChatService) persistMessage(ctx context.Context, sessionID, role, content string, at time.Time) (models.ChatMessage, error) {
	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: at.UTC().Truncate(time.Millisecond),
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("failed to persist %s message: %w", role, err)
	}
	return msg, nil
}

func sessionTitle(question string) string {
	title := strings.TrimSpace(question)
	runes := []rune(title)
	if len(runes) > sessionTitleRunes {
		return string(runes[:sessionTitleRunes])
	}
	return title
}

func toPromptMessages(messages []models.ChatMessage) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, models.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func messageRef(m models.ChatMessage) events.MessageRef {
	return events.MessageRef{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}
