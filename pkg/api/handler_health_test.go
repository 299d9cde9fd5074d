package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, healthStatusHealthy, health.Status)
	assert.Equal(t, healthStatusHealthy, health.Checks["database"].Status)
	assert.NotEmpty(t, health.Version)

	t.Run("unhealthy when the database is gone", func(t *testing.T) {
		require.NoError(t, store.Close())

		rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var health HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		assert.Equal(t, healthStatusUnhealthy, health.Status)
		assert.NotEmpty(t, health.Checks["database"].Message)
	})
}
