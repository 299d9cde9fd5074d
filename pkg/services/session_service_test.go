package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/session"
)

func seedSession(t *testing.T, store *session.Store, userID, title string) models.ChatSession {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := models.ChatSession{
		ID: uuid.NewString(), UserID: userID, Title: title,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateSession(context.Background(), sess))
	return sess
}

func seedUser(t *testing.T, store *session.Store, username string) models.User {
	t.Helper()
	user := models.User{
		ID: uuid.NewString(), Username: username, PasswordHash: "hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestSessionServiceList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	svc := NewSessionService(store)

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	seedSession(t, store, alice.ID, "graphs")
	seedSession(t, store, bob.ID, "sorting")

	sessions, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "graphs", sessions[0].Title)
}

func TestSessionServiceMessages(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	svc := NewSessionService(store)

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	sess := seedSession(t, store, alice.ID, "graphs")
	require.NoError(t, store.AddMessage(ctx, models.ChatMessage{
		ID: uuid.NewString(), SessionID: sess.ID, Role: models.RoleUser,
		Content: "what is BFS?", CreatedAt: time.Now().UTC(),
	}))

	messages, err := svc.Messages(ctx, alice.ID, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "what is BFS?", messages[0].Content)

	t.Run("other user's session looks missing", func(t *testing.T) {
		_, err := svc.Messages(ctx, bob.ID, sess.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.Messages(ctx, alice.ID, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("blank session id", func(t *testing.T) {
		_, err := svc.Messages(ctx, alice.ID, "")
		assert.True(t, IsValidationError(err))
	})
}

func TestSessionServiceDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	svc := NewSessionService(store)

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	sess := seedSession(t, store, alice.ID, "graphs")

	t.Run("owner only", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, bob.ID, sess.ID), ErrNotFound)
	})

	require.NoError(t, svc.Delete(ctx, alice.ID, sess.ID))
	sessions, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	t.Run("already deleted", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, alice.ID, sess.ID), ErrNotFound)
	})
}
