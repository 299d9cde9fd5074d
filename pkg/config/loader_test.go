package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model)
	assert.Equal(t, "deepseek-chat", cfg.LLM.FastModel)
	assert.Equal(t, 600*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, 50, cfg.LLM.Concurrency)
	assert.Equal(t, 8192, cfg.Ingest.ChunkSize)
	assert.Equal(t, 64, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 25, cfg.Ingest.FileConcurrency)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, 6, cfg.Agent.MaxSteps)
	assert.Equal(t, 5, cfg.Agent.TopK)
	assert.Equal(t, 3, cfg.Agent.Concurrency)
	assert.Equal(t, 50, cfg.Agent.StorageConcurrency)
	assert.Equal(t, 5, cfg.Agent.HistoryRounds)

	require.NoError(t, cfg.Validate())
}

func TestInitialize_EnvOverrides(t *testing.T) {
	t.Setenv("KGRAG_LLM_MODEL", "deepseek-v3")
	t.Setenv("KGRAG_CHUNK_SIZE", "1024")
	t.Setenv("KGRAG_CHUNK_OVERLAP", "0")
	t.Setenv("KGRAG_TOP_K", "7")
	t.Setenv("KGRAG_LLM_REQUEST_TIMEOUT", "120")
	t.Setenv("KGRAG_JWT_TTL", "24h")

	cfg, err := Initialize("")
	require.NoError(t, err)

	assert.Equal(t, "deepseek-v3", cfg.LLM.Model)
	assert.Equal(t, 1024, cfg.Ingest.ChunkSize)
	assert.Equal(t, 0, cfg.Ingest.ChunkOverlap, "explicit zero overlap must be honored")
	assert.Equal(t, 7, cfg.Agent.TopK)
	assert.Equal(t, 120*time.Second, cfg.LLM.RequestTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Server.JWTTTL)
}

func TestInitialize_MalformedIntKeepsDefault(t *testing.T) {
	t.Setenv("KGRAG_TOP_K", "lots")

	cfg, err := Initialize("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Agent.TopK)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "zero chunk size rejected",
			mutate:  func(cfg *Config) { cfg.Ingest.ChunkSize = 0 },
			wantErr: "chunk_size must be positive",
		},
		{
			name:    "negative chunk size rejected",
			mutate:  func(cfg *Config) { cfg.Ingest.ChunkSize = -3 },
			wantErr: "chunk_size must be positive",
		},
		{
			name: "overlap equal to chunk size rejected",
			mutate: func(cfg *Config) {
				cfg.Ingest.ChunkSize = 100
				cfg.Ingest.ChunkOverlap = 100
			},
			wantErr: "chunk_overlap",
		},
		{
			name: "overlap greater than chunk size rejected",
			mutate: func(cfg *Config) {
				cfg.Ingest.ChunkSize = 100
				cfg.Ingest.ChunkOverlap = 150
			},
			wantErr: "chunk_overlap",
		},
		{
			name:    "negative overlap rejected",
			mutate:  func(cfg *Config) { cfg.Ingest.ChunkOverlap = -1 },
			wantErr: "chunk_overlap",
		},
		{
			name: "zero overlap accepted",
			mutate: func(cfg *Config) {
				cfg.Ingest.ChunkOverlap = 0
			},
		},
		{
			name:    "zero max iterations rejected",
			mutate:  func(cfg *Config) { cfg.Agent.MaxIterations = 0 },
			wantErr: "max_iterations",
		},
		{
			name:    "zero top_k rejected",
			mutate:  func(cfg *Config) { cfg.Agent.TopK = 0 },
			wantErr: "top_k",
		},
		{
			name:    "zero llm concurrency rejected",
			mutate:  func(cfg *Config) { cfg.LLM.Concurrency = 0 },
			wantErr: "llm_concurrency",
		},
		{
			name:    "zero request timeout rejected",
			mutate:  func(cfg *Config) { cfg.LLM.RequestTimeout = 0 },
			wantErr: "llm_request_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSessionDBPath(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = "/var/lib/kgrag"
	assert.Equal(t, "/var/lib/kgrag/sessions.sqlite3", cfg.SessionDBPath())

	cfg.Server.SessionDB = "/tmp/custom.sqlite3"
	assert.Equal(t, "/tmp/custom.sqlite3", cfg.SessionDBPath())
}

func TestEmbeddingEndpoint_FallsBackToLLM(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.BaseURL = "https://api.deepseek.com/v1"
	cfg.LLM.APIKey = "sk-chat"

	baseURL, apiKey := cfg.EmbeddingEndpoint()
	assert.Equal(t, "https://api.deepseek.com/v1", baseURL)
	assert.Equal(t, "sk-chat", apiKey)

	cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	cfg.Embedding.APIKey = "sk-embed"

	baseURL, apiKey = cfg.EmbeddingEndpoint()
	assert.Equal(t, "https://api.openai.com/v1", baseURL)
	assert.Equal(t, "sk-embed", apiKey)
}
