package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/athenalab/kgrag/pkg/events"
	"github.com/athenalab/kgrag/pkg/services"
)

// sseHeartbeatInterval is how often a comment line keeps an idle SSE
// connection alive through proxies.
const sseHeartbeatInterval = 15 * time.Second

// askHandler handles POST /api/v1/chat/ask (synchronous).
func (s *Server) askHandler(c *echo.Context) error {
	user := currentUser(c)

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := s.chat.Ask(c.Request().Context(), user.ID, req.SessionID, req.Question)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &AskResponse{
		SessionID: result.SessionID,
		Answer:    result.Answer,
		Message:   result.Message,
	})
}

type sseEvent struct {
	Type    string
	Payload any
}

// askStreamHandler handles POST /api/v1/chat/ask/stream. One SSE event per
// turn event, flushed immediately; a heartbeat comment goes out every 15s.
func (s *Server) askStreamHandler(c *echo.Context) error {
	user := currentUser(c)

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	w := c.Response()
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	_ = rc.Flush()

	// The emitter must never block the turn: a slow consumer loses events,
	// the turn still completes and persists.
	eventCh := make(chan sseEvent, 256)
	var errorEmitted atomic.Bool
	emitter := events.EmitterFunc(func(eventType string, payload any) {
		if eventType == events.EventError {
			errorEmitted.Store(true)
		}
		select {
		case eventCh <- sseEvent{Type: eventType, Payload: payload}:
		default:
		}
	})

	ctx := c.Request().Context()
	turnDone := make(chan error, 1)
	go func() {
		_, err := s.chat.AskStream(ctx, user.ID, req.SessionID, req.Question, emitter)
		turnDone <- err
	}()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev := <-eventCh:
			writeSSE(w, rc, ev.Type, ev.Payload)
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			_ = rc.Flush()
		case err := <-turnDone:
			finishStream(w, rc, eventCh, err, &errorEmitted)
			return nil
		case <-ctx.Done():
			// Client went away; the turn sees the same context and
			// winds down on its own.
			return nil
		}
	}
}

// finishStream drains buffered events and, for failures that never reached
// the emitter (validation, unknown session), closes with an error event.
func finishStream(w io.Writer, rc *http.ResponseController, eventCh <-chan sseEvent, turnErr error, errorEmitted *atomic.Bool) {
	for {
		select {
		case ev := <-eventCh:
			writeSSE(w, rc, ev.Type, ev.Payload)
		default:
			if turnErr != nil && !errorEmitted.Load() {
				writeSSE(w, rc, events.EventError, events.ErrorPayload{Detail: safeErrorDetail(turnErr)})
			}
			return
		}
	}
}

// safeErrorDetail renders a turn error for the stream without leaking
// internals.
func safeErrorDetail(err error) string {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return validErr.Error()
	}
	if errors.Is(err, services.ErrNotFound) {
		return "resource not found"
	}
	return "internal error"
}

func writeSSE(w io.Writer, rc *http.ResponseController, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to marshal stream event", "event", eventType, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	_ = rc.Flush()
}
