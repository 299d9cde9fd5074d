// Package graph provides the labeled property-graph store: entity and
// relation persistence, read-only structured queries for the tool layer,
// and user-profile edges.
package graph

import (
	"context"

	"github.com/athenalab/kgrag/pkg/models"
)

// ProfileEdge is one user-profile fact stored in the graph.
type ProfileEdge struct {
	Relation string `json:"relation"`
	Entity   string `json:"entity"`
	Note     string `json:"note,omitempty"`
}

// Overview is a bounded snapshot of the graph for UI rendering.
type Overview struct {
	EntityCounts   map[string]int64 `json:"entity_counts"`
	RelationCounts map[string]int64 `json:"relation_counts"`
	SampleNodes    []models.Entity  `json:"sample_nodes"`
	SampleEdges    []models.Relation `json:"sample_edges"`
}

// Store is the property-graph contract. Implementations wrap every
// operation in transient-error retry; statement errors surface unchanged so
// the query tool can classify them.
type Store interface {
	Initialize(ctx context.Context) error
	Finalize(ctx context.Context) error

	UpsertNode(ctx context.Context, entity models.Entity) error
	UpsertEdge(ctx context.Context, relation models.Relation) error
	GetNode(ctx context.Context, name string) (*models.Entity, error)
	GetEdge(ctx context.Context, source, target, relType string) (*models.Relation, error)
	HasNode(ctx context.Context, name string) (bool, error)
	HasEdge(ctx context.Context, source, target, relType string) (bool, error)
	DeleteNode(ctx context.Context, name string) error

	ListEntities(ctx context.Context) ([]models.Entity, error)
	ListRelations(ctx context.Context) ([]models.Relation, error)

	// QueryStructured runs a read-only query and returns one map per row.
	QueryStructured(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	UpsertProfileEdge(ctx context.Context, userID, relType, entityName, note string) error
	UserProfile(ctx context.Context, userID string) ([]ProfileEdge, error)

	GraphOverview(ctx context.Context, limit int) (*Overview, error)
}
