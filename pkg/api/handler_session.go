package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/athenalab/kgrag/pkg/models"
)

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	sessions, err := s.sessions.List(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return mapServiceError(err)
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// sessionMessagesHandler handles GET /api/v1/sessions/:id/messages.
func (s *Server) sessionMessagesHandler(c *echo.Context) error {
	messages, err := s.sessions.Messages(c.Request().Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return c.JSON(http.StatusOK, messages)
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	if err := s.sessions.Delete(c.Request().Context(), currentUser(c).ID, c.Param("id")); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
