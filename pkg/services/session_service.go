package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/session"
)

// SessionService exposes owner-scoped access to chat sessions. A session
// belonging to another user is reported as not found, never as forbidden, so
// session ids do not leak.
type SessionService struct {
	store *session.Store
}

// NewSessionService creates a session service.
func NewSessionService(store *session.Store) *SessionService {
	return &SessionService{store: store}
}

// List returns the user's sessions, most recently updated first.
func (s *SessionService) List(httpCtx context.Context, userID string) ([]models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Messages returns a session's messages in chronological order.
func (s *SessionService) Messages(httpCtx context.Context, userID, sessionID string) ([]models.ChatMessage, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "is required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Delete removes a session and its messages.
func (s *SessionService) Delete(httpCtx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return NewValidationError("session_id", "is required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionService) ownedSession(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
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
