package api

import "github.com/athenalab/kgrag/pkg/models"

// TokenResponse is the login response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AskResponse is the synchronous chat response.
type AskResponse struct {
	SessionID string             `json:"session_id"`
	Answer    string             `json:"answer"`
	Message   models.ChatMessage `json:"message"`
}

// HealthCheck is one component's health state.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}
