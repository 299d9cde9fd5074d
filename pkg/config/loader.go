package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load the .env file when present (existing environment wins)
//  2. Apply KGRAG_* environment overrides on top of built-in defaults
//  3. Validate the result
func Initialize(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load .env file, continuing with existing environment",
				"path", envFile, "error", err)
		} else {
			slog.Info("Loaded environment", "path", envFile)
		}
	}

	cfg := Defaults()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Neo4j.Password == "neo4j" {
		slog.Warn("Neo4j is using the default password, set KGRAG_NEO4J_PASSWORD for production use")
	}

	slog.Info("Configuration initialized",
		"model", cfg.LLM.Model,
		"fast_model", cfg.LLM.FastModel,
		"embedding_model", cfg.Embedding.Model,
		"neo4j", cfg.Neo4j.URI,
		"data_dir", cfg.DataDir)

	return cfg, nil
}

// applyEnv overrides cfg fields from KGRAG_* variables. Unset or blank
// variables leave the default in place; malformed numeric values are
// logged and ignored rather than failing startup.
func applyEnv(cfg *Config) {
	setStr(&cfg.LLM.BaseURL, "KGRAG_LLM_BASE_URL")
	setStr(&cfg.LLM.APIKey, "KGRAG_LLM_API_KEY")
	setStr(&cfg.LLM.Model, "KGRAG_LLM_MODEL")
	setStr(&cfg.LLM.FastModel, "KGRAG_LLM_FAST_MODEL")
	setDur(&cfg.LLM.RequestTimeout, "KGRAG_LLM_REQUEST_TIMEOUT")
	setInt(&cfg.LLM.Concurrency, "KGRAG_LLM_CONCURRENCY")

	setStr(&cfg.Embedding.BaseURL, "KGRAG_EMBEDDING_BASE_URL")
	setStr(&cfg.Embedding.APIKey, "KGRAG_EMBEDDING_API_KEY")
	setStr(&cfg.Embedding.Model, "KGRAG_EMBEDDING_MODEL")
	setInt(&cfg.Embedding.Dim, "KGRAG_EMBEDDING_DIM")

	setStr(&cfg.Neo4j.URI, "KGRAG_NEO4J_URI")
	setStr(&cfg.Neo4j.Username, "KGRAG_NEO4J_USER")
	setStr(&cfg.Neo4j.Password, "KGRAG_NEO4J_PASSWORD")
	setStr(&cfg.Neo4j.Database, "KGRAG_NEO4J_DATABASE")

	setInt(&cfg.Agent.MaxIterations, "KGRAG_MAX_ITERATIONS")
	setInt(&cfg.Agent.MaxSteps, "KGRAG_MAX_STEPS")
	setInt(&cfg.Agent.TopK, "KGRAG_TOP_K")
	setInt(&cfg.Agent.Concurrency, "KGRAG_AGENT_CONCURRENCY")
	setInt(&cfg.Agent.StorageConcurrency, "KGRAG_STORAGE_CONCURRENCY")
	setInt(&cfg.Agent.HistoryRounds, "KGRAG_SESSION_HISTORY_ROUNDS")

	setInt(&cfg.Ingest.ChunkSize, "KGRAG_CHUNK_SIZE")
	setIntAllowZero(&cfg.Ingest.ChunkOverlap, "KGRAG_CHUNK_OVERLAP")
	setInt(&cfg.Ingest.FileConcurrency, "KGRAG_FILE_CONCURRENCY")

	setStr(&cfg.Server.Port, "KGRAG_HTTP_PORT")
	setStr(&cfg.Server.JWTSecret, "KGRAG_JWT_SECRET")
	setDur(&cfg.Server.JWTTTL, "KGRAG_JWT_TTL")
	setStr(&cfg.Server.SessionDB, "KGRAG_SESSION_DB")
	setStr(&cfg.Server.DashboardDir, "KGRAG_DASHBOARD_DIR")

	setStr(&cfg.WebSearch.APIKey, "KGRAG_FIRECRAWL_API_KEY")
	setStr(&cfg.WebSearch.BaseURL, "KGRAG_FIRECRAWL_BASE_URL")
	setInt(&cfg.WebSearch.Limit, "KGRAG_WEB_SEARCH_LIMIT")

	setStr(&cfg.DataDir, "KGRAG_DATA_DIR")
}

// Validate checks cross-field constraints. It does not require endpoint
// credentials; commands that need them check at wiring time so that e.g.
// pure-local commands work without an API key.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk_overlap must satisfy 0 <= overlap < chunk_size, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be >= 1, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.Agent.TopK)
	}
	for name, v := range map[string]int{
		"agent_concurrency":   c.Agent.Concurrency,
		"llm_concurrency":     c.LLM.Concurrency,
		"storage_concurrency": c.Agent.StorageConcurrency,
		"file_concurrency":    c.Ingest.FileConcurrency,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", name, v)
		}
	}
	if c.LLM.RequestTimeout <= 0 {
		return fmt.Errorf("llm_request_timeout must be positive, got %s", c.LLM.RequestTimeout)
	}
	if c.Embedding.Dim < 1 {
		return fmt.Errorf("embedding_dim must be >= 1, got %d", c.Embedding.Dim)
	}
	if c.Agent.HistoryRounds < 0 {
		return fmt.Errorf("session_history_rounds must be >= 0, got %d", c.Agent.HistoryRounds)
	}
	return nil
}

// SessionDBPath returns the SQLite session database location.
func (c *Config) SessionDBPath() string {
	if c.Server.SessionDB != "" {
		return c.Server.SessionDB
	}
	return filepath.Join(c.DataDir, "sessions.sqlite3")
}

// VectorIndexPath returns the persisted vector index location.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.DataDir, "vector_index")
}

// EmbeddingEndpoint resolves the embedding credentials, falling back to
// the chat endpoint when the embedding-specific ones are unset.
func (c *Config) EmbeddingEndpoint() (baseURL, apiKey string) {
	baseURL = c.Embedding.BaseURL
	if baseURL == "" {
		baseURL = c.LLM.BaseURL
	}
	apiKey = c.Embedding.APIKey
	if apiKey == "" {
		apiKey = c.LLM.APIKey
	}
	return baseURL, apiKey
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring malformed integer in environment", "key", key, "value", v)
		return
	}
	*dst = n
}

// setIntAllowZero accepts an explicit "0", which setInt would also accept;
// it exists so that chunk_overlap=0 is visibly a supported setting.
func setIntAllowZero(dst *int, key string) {
	setInt(dst, key)
}

func setDur(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	// Accept either a Go duration string ("600s") or bare seconds ("600").
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	slog.Warn("Ignoring malformed duration in environment", "key", key, "value", v)
}
