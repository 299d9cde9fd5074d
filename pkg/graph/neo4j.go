package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/athenalab/kgrag/pkg/models"
)

// Neo4jStore implements Store over a shared Neo4j driver. Sessions are
// opened per operation; the driver pools connections underneath.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore creates a store for the given bolt endpoint.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

// Initialize verifies connectivity and creates the uniqueness constraints
// idempotently.
func (s *Neo4jStore) Initialize(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to reach neo4j: %w", err)
	}

	constraints := []string{
		"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.entity_id IS UNIQUE",
		"CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE",
	}
	for _, typ := range []string{
		models.EntityAlgorithm, models.EntityDataStructure, models.EntityTechnique,
		models.EntityProblem, models.EntityConcept,
	} {
		constraints = append(constraints, fmt.Sprintf(
			"CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (e:%s) REQUIRE e.entity_id IS UNIQUE",
			lowerFirst(typ), typ))
	}
	for _, stmt := range constraints {
		if err := s.write(ctx, "create constraint", stmt, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	slog.Info("Graph store initialized", "database", s.database)
	return nil
}

// Finalize closes the driver.
func (s *Neo4jStore) Finalize(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// UpsertNode merges the entity on entity_id and refreshes its properties.
// Known types additionally get the type label.
func (s *Neo4jStore) UpsertNode(ctx context.Context, entity models.Entity) error {
	id := entity.ID
	if id == "" {
		id = models.EntityID(entity.Name)
	}
	params := map[string]any{
		"id":          id,
		"name":        entity.Name,
		"type":        entity.Type,
		"description": entity.Description,
		"aliases":     toAnySlice(entity.Aliases),
	}
	query := `MERGE (e:Entity {entity_id: $id})
SET e.name = $name, e.type = $type, e.description = $description, e.aliases = $aliases`
	if models.IsEntityType(entity.Type) {
		// Label names cannot be parameterized; the type set is closed, so
		// interpolation is safe here.
		query += fmt.Sprintf("\nSET e:%s", entity.Type)
	}
	return s.write(ctx, "upsert node", query, params)
}

// UpsertEdge merges the relation between two entities resolved by name.
// Unknown relation types are written as RELATED_TO with the original name in
// original_type.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, relation models.Relation) error {
	relType, originalType := resolveRelType(relation.Type)
	weight := relation.Weight
	if weight == 0 {
		weight = 1.0
	}
	params := map[string]any{
		"sid":         models.EntityID(relation.Source),
		"tid":         models.EntityID(relation.Target),
		"description": relation.Description,
		"weight":      weight,
	}
	set := "SET r.description = $description, r.weight = $weight"
	if originalType != "" {
		set += ", r.original_type = $original_type"
		params["original_type"] = originalType
	}
	query := fmt.Sprintf(`MATCH (s:Entity {entity_id: $sid}), (t:Entity {entity_id: $tid})
MERGE (s)-[r:%s]->(t)
%s`, relType, set)
	return s.write(ctx, "upsert edge", query, params)
}

// GetNode looks an entity up by name. Returns nil when absent.
func (s *Neo4jStore) GetNode(ctx context.Context, name string) (*models.Entity, error) {
	rows, err := s.read(ctx, "get node",
		`MATCH (e:Entity {entity_id: $id})
RETURN e.entity_id AS id, e.name AS name, e.type AS type, e.description AS description, e.aliases AS aliases`,
		map[string]any{"id": models.EntityID(name)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	e := rowToEntity(rows[0])
	return &e, nil
}

// GetEdge looks a relation up by endpoint names and type. Returns nil when
// absent.
func (s *Neo4jStore) GetEdge(ctx context.Context, source, target, relType string) (*models.Relation, error) {
	label, _ := resolveRelType(relType)
	rows, err := s.read(ctx, "get edge", fmt.Sprintf(
		`MATCH (s:Entity {entity_id: $sid})-[r:%s]->(t:Entity {entity_id: $tid})
RETURN s.name AS source, t.name AS target, type(r) AS type, r.description AS description, r.weight AS weight`,
		label),
		map[string]any{"sid": models.EntityID(source), "tid": models.EntityID(target)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rowToRelation(rows[0])
	return &r, nil
}

// HasNode reports whether an entity with the given name exists.
func (s *Neo4jStore) HasNode(ctx context.Context, name string) (bool, error) {
	node, err := s.GetNode(ctx, name)
	return node != nil, err
}

// HasEdge reports whether the relation exists.
func (s *Neo4jStore) HasEdge(ctx context.Context, source, target, relType string) (bool, error) {
	edge, err := s.GetEdge(ctx, source, target, relType)
	return edge != nil, err
}

// DeleteNode removes an entity and all its relationships.
func (s *Neo4jStore) DeleteNode(ctx context.Context, name string) error {
	return s.write(ctx, "delete node",
		"MATCH (e:Entity {entity_id: $id}) DETACH DELETE e",
		map[string]any{"id": models.EntityID(name)})
}

// ListEntities returns every entity, ordered by name.
func (s *Neo4jStore) ListEntities(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.read(ctx, "list entities",
		`MATCH (e:Entity)
RETURN e.entity_id AS id, e.name AS name, e.type AS type, e.description AS description, e.aliases AS aliases
ORDER BY e.name`, nil)
	if err != nil {
		return nil, err
	}
	entities := make([]models.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities, nil
}

// ListRelations returns every knowledge relation, ordered by endpoints.
func (s *Neo4jStore) ListRelations(ctx context.Context) ([]models.Relation, error) {
	rows, err := s.read(ctx, "list relations",
		`MATCH (s:Entity)-[r]->(t:Entity)
RETURN s.name AS source, t.name AS target, type(r) AS type, r.description AS description, r.weight AS weight
ORDER BY source, target, type`, nil)
	if err != nil {
		return nil, err
	}
	relations := make([]models.Relation, 0, len(rows))
	for _, row := range rows {
		relations = append(relations, rowToRelation(row))
	}
	return relations, nil
}

// QueryStructured runs a read-only query. The caller (the query tool) has
// already validated the text; statement errors propagate for classification.
func (s *Neo4jStore) QueryStructured(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return s.read(ctx, "structured query", query, params)
}

// UpsertProfileEdge records one user-profile fact. The target entity is
// created as a bare Concept when it is not in the graph yet.
func (s *Neo4jStore) UpsertProfileEdge(ctx context.Context, userID, relType, entityName, note string) error {
	if !models.IsProfileRelation(relType) {
		return fmt.Errorf("unknown profile relation type %q", relType)
	}
	query := fmt.Sprintf(`MERGE (u:User {user_id: $uid})
MERGE (e:Entity {entity_id: $eid})
ON CREATE SET e.name = $name, e.type = $type, e.description = '', e.aliases = []
MERGE (u)-[r:%s]->(e)
SET r.note = $note`, relType)
	return s.write(ctx, "upsert profile edge", query, map[string]any{
		"uid":  userID,
		"eid":  models.EntityID(entityName),
		"name": entityName,
		"type": models.EntityConcept,
		"note": note,
	})
}

// UserProfile returns the user's profile edges, ordered for stable prompt
// rendering. Empty for unknown users.
func (s *Neo4jStore) UserProfile(ctx context.Context, userID string) ([]ProfileEdge, error) {
	rows, err := s.read(ctx, "user profile",
		`MATCH (u:User {user_id: $uid})-[r]->(e:Entity)
RETURN type(r) AS relation, e.name AS entity, r.note AS note
ORDER BY relation, entity`,
		map[string]any{"uid": userID})
	if err != nil {
		return nil, err
	}
	edges := make([]ProfileEdge, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, ProfileEdge{
			Relation: asString(row["relation"]),
			Entity:   asString(row["entity"]),
			Note:     asString(row["note"]),
		})
	}
	return edges, nil
}

// GraphOverview returns type counts plus a bounded node/edge sample.
func (s *Neo4jStore) GraphOverview(ctx context.Context, limit int) (*Overview, error) {
	if limit < 1 {
		limit = 25
	}
	overview := &Overview{
		EntityCounts:   map[string]int64{},
		RelationCounts: map[string]int64{},
	}

	rows, err := s.read(ctx, "entity counts",
		"MATCH (e:Entity) RETURN e.type AS type, count(*) AS n", nil)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		overview.EntityCounts[asString(row["type"])] = asInt64(row["n"])
	}

	rows, err = s.read(ctx, "relation counts",
		"MATCH (:Entity)-[r]->(:Entity) RETURN type(r) AS type, count(*) AS n", nil)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		overview.RelationCounts[asString(row["type"])] = asInt64(row["n"])
	}

	rows, err = s.read(ctx, "sample nodes",
		`MATCH (e:Entity)
RETURN e.entity_id AS id, e.name AS name, e.type AS type, e.description AS description, e.aliases AS aliases
ORDER BY e.name LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		overview.SampleNodes = append(overview.SampleNodes, rowToEntity(row))
	}

	rows, err = s.read(ctx, "sample edges",
		`MATCH (s:Entity)-[r]->(t:Entity)
RETURN s.name AS source, t.name AS target, type(r) AS type, r.description AS description, r.weight AS weight
ORDER BY source, target LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		overview.SampleEdges = append(overview.SampleEdges, rowToRelation(row))
	}

	return overview, nil
}

func (s *Neo4jStore) read(ctx context.Context, label, query string, params map[string]any) ([]map[string]any, error) {
	var rows []map[string]any
	err := withRetry(ctx, label, func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: s.database,
			AccessMode:   neo4j.AccessModeRead,
		})
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, params)
		if err != nil {
			return err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return err
		}
		rows = make([]map[string]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.AsMap())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Neo4jStore) write(ctx context.Context, label, query string, params map[string]any) error {
	return withRetry(ctx, label, func(ctx context.Context) error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: s.database,
			AccessMode:   neo4j.AccessModeWrite,
		})
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, params)
		if err != nil {
			return err
		}
		_, err = result.Consume(ctx)
		return err
	})
}

// resolveRelType maps a relation type to its stored relationship type.
// Unknown types collapse to RELATED_TO and keep the original name.
func resolveRelType(relType string) (label, originalType string) {
	if models.IsKnowledgeRelation(relType) {
		return relType, ""
	}
	return models.RelRelatedTo, relType
}

func rowToEntity(row map[string]any) models.Entity {
	return models.Entity{
		ID:          asString(row["id"]),
		Name:        asString(row["name"]),
		Type:        asString(row["type"]),
		Description: asString(row["description"]),
		Aliases:     asStringSlice(row["aliases"]),
	}
}

func rowToRelation(row map[string]any) models.Relation {
	return models.Relation{
		Source:      asString(row["source"]),
		Target:      asString(row["target"]),
		Type:        asString(row["type"]),
		Description: asString(row["description"]),
		Weight:      asFloat64(row["weight"]),
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}

var _ Store = (*Neo4jStore)(nil)
