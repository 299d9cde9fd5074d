package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
	"github.com/athenalab/kgrag/pkg/prompt"
)

// MinProposalConfidence is the floor below which profile proposals are
// discarded.
const MinProposalConfidence = 0.7

var profileFencePattern = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$")

// ProfileService maintains the per-user learner profile stored as edges in
// the knowledge graph.
type ProfileService struct {
	graph     graph.Store
	model     llm.ChatModel
	modelName string
	prompts   *prompt.Builder
}

// NewProfileService creates a profile service. model is the fast model used
// for proposal extraction.
func NewProfileService(g graph.Store, model llm.ChatModel, modelName string) *ProfileService {
	return &ProfileService{graph: g, model: model, modelName: modelName, prompts: prompt.NewBuilder()}
}

// Text renders the user's profile as a compact bullet list for prompt
// injection. A user without profile edges gets an empty string.
func (s *ProfileService) Text(ctx context.Context, userID string) (string, error) {
	edges, err := s.graph.UserProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user profile: %w", err)
	}
	if len(edges) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, e := range edges {
		b.WriteString("- ")
		b.WriteString(e.Relation)
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.Note != "" {
			b.WriteString(" (")
			b.WriteString(e.Note)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Apply filters proposals and writes the surviving ones as profile edges.
// It returns the number applied.
func (s *ProfileService) Apply(ctx context.Context, userID string, proposals []models.ProfileProposal) (int, error) {
	applied := 0
	for _, p := range proposals {
		relType := strings.ToUpper(strings.TrimSpace(p.RelationType))
		entity := strings.TrimSpace(p.TargetEntity)
		if p.Confidence < MinProposalConfidence || entity == "" || !models.IsProfileRelation(relType) {
			continue
		}
		if err := s.graph.UpsertProfileEdge(ctx, userID, relType, entity, p.Evidence); err != nil {
			return applied, fmt.Errorf("failed to apply profile edge %s->%s: %w", relType, entity, err)
		}
		applied++
	}
	return applied, nil
}

// Update extracts profile proposals from one finished dialogue round and
// applies the ones that pass the confidence and relation-type filters.
func (s *ProfileService) Update(ctx context.Context, userID, question, answer string) (int, error) {
	existing, err := s.Text(ctx, userID)
	if err != nil {
		return 0, err
	}

	msgs := s.prompts.ProfileMessages(existing, question, answer)
	completion, err := s.model.Complete(ctx, msgs, llm.Options{Model: s.modelName})
	if err != nil {
		return 0, fmt.Errorf("failed to extract profile proposals: %w", err)
	}

	proposals, err := parseProposals(completion.Content)
	if err != nil {
		return 0, err
	}
	return s.Apply(ctx, userID, proposals)
}

func parseProposals(raw string) ([]models.ProfileProposal, error) {
	text := profileFencePattern.ReplaceAllString(raw, "")
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in profile response")
	}
	var proposals []models.ProfileProposal
	if err := json.Unmarshal([]byte(text[start:end+1]), &proposals); err != nil {
		return nil, fmt.Errorf("failed to parse profile proposals: %w", err)
	}
	return proposals, nil
}
