package prompt

import (
	"fmt"
	"strings"

	"github.com/athenalab/kgrag/pkg/models"
)

// ToolSpec describes one tool for the sub-agent system prompt. Defined here
// (not in the tools package) so prompt stays dependency-free.
type ToolSpec struct {
	Name        string
	Description string
}

// Builder builds conversations for every model call in the pipeline.
// Stateless and safe for concurrent use.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// PlannerMessages builds the planning conversation.
// history and priorEvidence may be empty; gap is the judge's gap description
// from the previous round (empty on the first plan).
func (b *Builder) PlannerMessages(profile string, maxIterations int, history, question, priorEvidence, gap string) []models.Message {
	profileSection := plannerNoProfile
	if strings.TrimSpace(profile) != "" {
		profileSection = fmt.Sprintf(plannerProfileTemplate, profile)
	}
	system := fmt.Sprintf(plannerSystemTemplate, profileSection, maxIterations)

	var user strings.Builder
	if strings.TrimSpace(history) != "" {
		user.WriteString(fmt.Sprintf(plannerHistoryTemplate, untrustedPreamble, history))
		user.WriteString("\n\n")
	}
	if strings.TrimSpace(priorEvidence) != "" {
		if gap == "" {
			gap = "coverage was incomplete"
		}
		user.WriteString(fmt.Sprintf(plannerRetryTemplate, untrustedPreamble, priorEvidence, gap))
		user.WriteString("\n\n")
	}
	user.WriteString("Current question:\n")
	user.WriteString(question)

	return []models.Message{
		models.SystemMessage(system),
		models.UserMessage(user.String()),
	}
}

// SubAgentMessages builds the initial conversation for one sub-task.
func (b *Builder) SubAgentMessages(task string, tools []ToolSpec) []models.Message {
	var list strings.Builder
	for _, t := range tools {
		list.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	return []models.Message{
		models.SystemMessage(fmt.Sprintf(subAgentSystemTemplate, strings.TrimRight(list.String(), "\n"))),
		models.UserMessage("Task: " + task),
	}
}

// FormatReminder returns the verbatim format restatement sent after an
// unparseable sub-agent response.
func (b *Builder) FormatReminder() string { return formatReminder }

// ForcedConclusion returns the instruction appended when a sub-task reaches
// its step ceiling without a Final Answer.
func (b *Builder) ForcedConclusion() string { return forcedConclusion }

// JudgeMessages builds the sufficiency-review conversation.
func (b *Builder) JudgeMessages(question, evidence string) []models.Message {
	return []models.Message{
		models.SystemMessage(judgeSystemPrompt),
		models.UserMessage(fmt.Sprintf(judgeUserTemplate, untrustedPreamble, question, evidence)),
	}
}

// ResponderMessages builds the answer-composition conversation.
func (b *Builder) ResponderMessages(profile, question, evidence string) []models.Message {
	profileSection := plannerNoProfile
	if strings.TrimSpace(profile) != "" {
		profileSection = fmt.Sprintf(plannerProfileTemplate, profile)
	}
	return []models.Message{
		models.SystemMessage(fmt.Sprintf(responderSystemTemplate, profileSection)),
		models.UserMessage(fmt.Sprintf(responderUserTemplate, untrustedPreamble, question, evidence)),
	}
}

// CypherMessages builds the query-generation conversation.
func (b *Builder) CypherMessages(schema, question string) []models.Message {
	return []models.Message{
		models.SystemMessage(fmt.Sprintf(cypherSystemTemplate, schema)),
		models.UserMessage(question),
	}
}

// CypherRepairMessages builds the one-shot query-repair conversation.
func (b *Builder) CypherRepairMessages(schema, question, brokenQuery, issue string) []models.Message {
	return []models.Message{
		models.SystemMessage(fmt.Sprintf(cypherSystemTemplate, schema)),
		models.UserMessage(fmt.Sprintf(cypherRepairTemplate, schema, question, brokenQuery, issue)),
	}
}

// ExtractionMessages builds the entity/relation extraction conversation for
// one chunk.
func (b *Builder) ExtractionMessages(chunkText string) []models.Message {
	return []models.Message{
		models.SystemMessage(extractionSystemPrompt),
		models.UserMessage(fmt.Sprintf(extractionUserTemplate, untrustedPreamble, chunkText)),
	}
}

// ExtractionRetry returns the instruction sent once when extraction output
// fails to parse.
func (b *Builder) ExtractionRetry() string { return extractionRetryPrompt }

// DedupMessages builds the model-driven dedup conversation over a numbered
// entity listing.
func (b *Builder) DedupMessages(listing string) []models.Message {
	return []models.Message{
		models.SystemMessage(dedupSystemPrompt),
		models.UserMessage(fmt.Sprintf(dedupUserTemplate, listing)),
	}
}

// ProfileMessages builds the profile-proposal conversation for one finished
// round.
func (b *Builder) ProfileMessages(existingProfile, question, answer string) []models.Message {
	profileSection := "No existing profile."
	if strings.TrimSpace(existingProfile) != "" {
		profileSection = "Existing profile:\n" + existingProfile
	}
	return []models.Message{
		models.SystemMessage(profileSystemPrompt),
		models.UserMessage(fmt.Sprintf(profileUserTemplate, profileSection, question, answer)),
	}
}
