package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Entity types recognized by the knowledge graph. Entities whose type falls
// outside this set are stored with the base label only.
const (
	EntityAlgorithm     = "Algorithm"
	EntityDataStructure = "DataStructure"
	EntityTechnique     = "Technique"
	EntityProblem       = "Problem"
	EntityConcept       = "Concept"
)

// Knowledge relation types.
const (
	RelPrereq    = "PREREQ"
	RelVariantOf = "VARIANT_OF"
	RelImproves  = "IMPROVES"
	RelUses      = "USES"
	RelAppliesTo = "APPLIES_TO"
	RelBelongsTo = "BELONGS_TO"
	RelRelatedTo = "RELATED_TO"
)

// Profile relation types linking a user to entities they have interacted with.
const (
	RelMastered     = "MASTERED"
	RelWeakAt       = "WEAK_AT"
	RelInterestedIn = "INTERESTED_IN"
)

var entityTypes = map[string]bool{
	EntityAlgorithm:     true,
	EntityDataStructure: true,
	EntityTechnique:     true,
	EntityProblem:       true,
	EntityConcept:       true,
}

var knowledgeRelations = map[string]bool{
	RelPrereq:    true,
	RelVariantOf: true,
	RelImproves:  true,
	RelUses:      true,
	RelAppliesTo: true,
	RelBelongsTo: true,
	RelRelatedTo: true,
}

var profileRelations = map[string]bool{
	RelMastered:     true,
	RelWeakAt:       true,
	RelInterestedIn: true,
}

// IsEntityType reports whether t is a recognized entity type.
func IsEntityType(t string) bool { return entityTypes[t] }

// IsKnowledgeRelation reports whether t is a recognized knowledge relation type.
func IsKnowledgeRelation(t string) bool { return knowledgeRelations[t] }

// IsProfileRelation reports whether t is a recognized profile relation type.
func IsProfileRelation(t string) bool { return profileRelations[t] }

// Entity is a node in the knowledge graph.
type Entity struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Aliases      []string `json:"aliases"`
	SourceChunks []string `json:"source_chunks"`
}

// Relation is a directed edge between two entities. Source and Target hold
// entity names during extraction and dedup; they are resolved to canonical
// names before graph writes.
type Relation struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// TextChunk is one window of a source document.
type TextChunk struct {
	ID         string            `json:"id"`
	DocID      string            `json:"doc_id"`
	Index      int               `json:"index"`
	Content    string            `json:"content"`
	StartToken int               `json:"start_token"`
	EndToken   int               `json:"end_token"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// EntityID derives the stable entity identifier from a name. The hash is
// taken over the lowercased, whitespace-trimmed name so that casing and
// padding variants of the same name collapse to one node.
func EntityID(name string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return hex.EncodeToString(h[:])
}

// ChunkID derives the stable chunk identifier from the document id and the
// chunk ordinal, so re-chunking the same document is idempotent.
func ChunkID(docID string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s::%d", docID, index)))
	return hex.EncodeToString(h[:])
}

// ProfileProposal is a candidate user-profile edge extracted from a finished
// conversation round. Proposals below the confidence floor are discarded.
type ProfileProposal struct {
	RelationType string  `json:"relation_type"`
	TargetEntity string  `json:"target_entity"`
	Confidence   float64 `json:"confidence"`
	Evidence     string  `json:"evidence"`
}
