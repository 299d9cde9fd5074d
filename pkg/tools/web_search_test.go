package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearch(t *testing.T) {
	var gotAuth string
	var gotReq searchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/search", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]string{
				{"title": "BFS - Wikipedia", "url": "https://en.wikipedia.org/wiki/BFS", "description": "Breadth-first search"},
			},
		})
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, "test-key", 5)
	out, err := tool.Call(context.Background(), "BFS algorithm")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, searchRequest{Query: "BFS algorithm", Limit: 5}, gotReq)
	assert.Contains(t, out, "[1] BFS - Wikipedia")
	assert.Contains(t, out, "https://en.wikipedia.org/wiki/BFS")
}

func TestWebSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, "k", 5)
	out, err := tool.Call(context.Background(), "obscure query")
	require.NoError(t, err)
	assert.Equal(t, "No web results found.", out)
}

func TestWebSearchFailures(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		tool := NewWebSearch(srv.URL, "bad-key", 5)
		_, err := tool.Call(context.Background(), "q")
		require.Error(t, err)
		assert.Equal(t, KindUnavailable, KindOf(err))
	})

	t.Run("api reports failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "warning": "rate limited"})
		}))
		defer srv.Close()

		tool := NewWebSearch(srv.URL, "k", 5)
		_, err := tool.Call(context.Background(), "q")
		require.Error(t, err)
		assert.Equal(t, KindUnavailable, KindOf(err))
	})

	t.Run("empty input", func(t *testing.T) {
		tool := NewWebSearch("http://unused", "k", 5)
		_, err := tool.Call(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, KindBadInput, KindOf(err))
	})
}
