// Package api exposes the HTTP surface: auth, chat (sync + SSE), session
// management, graph overview and health.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/services"
	"github.com/athenalab/kgrag/pkg/session"
)

// Server owns the echo instance and the services behind it.
type Server struct {
	echo     *echo.Echo
	http     *http.Server
	auth     *services.AuthService
	chat     *services.ChatService
	sessions *services.SessionService
	graph    graph.Store
	store    *session.Store
}

// NewServer wires the routes and middleware. Call Start to serve.
func NewServer(auth *services.AuthService, chat *services.ChatService, sessions *services.SessionService, g graph.Store, store *session.Store) *Server {
	s := &Server{
		echo:     echo.New(),
		auth:     auth,
		chat:     chat,
		sessions: sessions,
		graph:    g,
		store:    store,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)

	v1 := e.Group("/api/v1")
	v1.POST("/auth/register", s.registerHandler)
	v1.POST("/auth/login", s.loginHandler)

	protected := v1.Group("", s.requireAuth())
	protected.GET("/auth/me", s.meHandler)
	protected.POST("/chat/ask", s.askHandler)
	protected.POST("/chat/ask/stream", s.askStreamHandler)
	protected.GET("/sessions", s.listSessionsHandler)
	protected.GET("/sessions/:id/messages", s.sessionMessagesHandler)
	protected.DELETE("/sessions/:id", s.deleteSessionHandler)
	protected.GET("/graph/overview", s.graphOverviewHandler)
}

// ServeHTTP makes the server usable directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// ServeDashboard mounts a built single-page UI at the web root.
func (s *Server) ServeDashboard(dir string) {
	s.echo.Static("/", dir)
}

// Start serves on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
