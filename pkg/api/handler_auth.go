package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// registerHandler handles POST /api/v1/auth/register.
func (s *Server) registerHandler(c *echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := s.auth.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

// loginHandler handles POST /api/v1/auth/login.
func (s *Server) loginHandler(c *echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, _, err := s.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// meHandler handles GET /api/v1/auth/me.
func (s *Server) meHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}
