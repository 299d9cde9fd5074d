// Package config loads and validates process-wide configuration.
//
// Configuration is environment-first: every knob is a KGRAG_-prefixed
// variable with a built-in default, optionally seeded from a .env file.
// The loaded Config value is threaded through constructors; nothing in
// this package is a mutable global.
package config

import (
	"time"
)

// Config is the complete, validated runtime configuration.
type Config struct {
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Neo4j     Neo4jConfig
	Agent     AgentConfig
	Ingest    IngestConfig
	Server    ServerConfig
	WebSearch WebSearchConfig

	// DataDir is the root directory for local state: the vector index
	// and the session database live underneath it.
	DataDir string
}

// LLMConfig describes the two OpenAI-compatible chat endpoints.
// Model is the reasoning model used by the planner, sub-agents, judge and
// responder; FastModel serves extraction, dedup, query generation and
// profile calls. They may point at the same deployment.
type LLMConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	FastModel string

	// RequestTimeout bounds every individual model call.
	RequestTimeout time.Duration

	// Concurrency caps in-flight model calls process-wide.
	Concurrency int
}

// EmbeddingConfig describes the OpenAI-compatible embedding endpoint.
// BaseURL and APIKey fall back to the chat endpoint's values when unset.
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Dim     int
}

// Neo4jConfig holds the property-graph connection settings.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// AgentConfig holds the orchestration knobs.
type AgentConfig struct {
	// MaxIterations is the re-plan ceiling (completed plans per turn).
	MaxIterations int
	// MaxSteps caps Thought/Action rounds inside one sub-task.
	MaxSteps int
	// TopK is the default result count for chunk retrieval.
	TopK int
	// Concurrency caps sub-tasks running in parallel within one turn.
	Concurrency int
	// StorageConcurrency caps concurrent store writes during ingestion.
	StorageConcurrency int
	// HistoryRounds is how many recent dialogue rounds prompts include.
	HistoryRounds int
}

// IngestConfig holds the ingestion pipeline knobs.
type IngestConfig struct {
	// ChunkSize is the token window per chunk.
	ChunkSize int
	// ChunkOverlap is the token overlap between consecutive chunks.
	// Must be strictly smaller than ChunkSize; zero is honored.
	ChunkOverlap int
	// FileConcurrency caps documents ingested in parallel.
	FileConcurrency int
}

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	Port      string
	JWTSecret string
	JWTTTL    time.Duration
	// SessionDB overrides the session database location. Empty means
	// <DataDir>/sessions.sqlite3.
	SessionDB string
	// DashboardDir, when set, serves a built single-page UI from disk.
	DashboardDir string
}

// WebSearchConfig holds the external web-search settings. The tool is
// registered only when an API key is configured.
type WebSearchConfig struct {
	APIKey  string
	BaseURL string
	Limit   int
}

// Defaults returns a Config populated with built-in defaults. Endpoint
// credentials are intentionally empty; validation decides which of them a
// given command actually requires.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:        "https://api.deepseek.com/v1",
			Model:          "deepseek-reasoner",
			FastModel:      "deepseek-chat",
			RequestTimeout: 600 * time.Second,
			Concurrency:    50,
		},
		Embedding: EmbeddingConfig{
			Model: "Qwen3-Embedding-8B",
			Dim:   4096,
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "neo4j",
			Database: "neo4j",
		},
		Agent: AgentConfig{
			MaxIterations:      3,
			MaxSteps:           6,
			TopK:               5,
			Concurrency:        3,
			StorageConcurrency: 50,
			HistoryRounds:      5,
		},
		Ingest: IngestConfig{
			ChunkSize:       8192,
			ChunkOverlap:    64,
			FileConcurrency: 25,
		},
		Server: ServerConfig{
			Port:   "8000",
			JWTTTL: 24 * time.Hour,
		},
		WebSearch: WebSearchConfig{
			BaseURL: "https://api.firecrawl.dev",
			Limit:   5,
		},
		DataDir: "./data",
	}
}
