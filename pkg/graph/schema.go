package graph

// SchemaText is the literal schema block embedded in the query-generation
// prompt. It must stay in sync with the labels and relationship types the
// store writes.
const SchemaText = `Node labels:
- Entity: every knowledge node. Properties: entity_id (string, unique), name (string), type (string), description (string), aliases (list of string)
- Algorithm, DataStructure, Technique, Problem, Concept: additional label on Entity nodes of that type
- User: a learner. Properties: user_id (string, unique)

Relationship types between Entity nodes (property: description, weight; unknown originals carry original_type):
- PREREQ: source must be understood before target
- VARIANT_OF: source is a variant of target
- IMPROVES: source improves on target
- USES: source uses target
- APPLIES_TO: source applies to target
- BELONGS_TO: source belongs to the category target
- RELATED_TO: generic relatedness

Relationship types from User to Entity (property: note):
- MASTERED, WEAK_AT, INTERESTED_IN`
