package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/athenalab/kgrag/pkg/graph"
	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/prompt"
)

// RejectionMessage is the fixed reply for unsafe generated queries. Never
// varied, never retried.
const RejectionMessage = "Query rejected: only read operations are allowed."

// failureMessage is the generic reply after the repair attempt also fails.
// Internal errors and query text never leak through it.
const failureMessage = "The graph query could not be completed. Try rephrasing the question."

// GraphQuery is the natural-language-to-structured-query tool.
type GraphQuery struct {
	model     llm.ChatModel
	modelName string
	store     graph.Store
	prompts   *prompt.Builder
}

// NewGraphQuery creates the tool. modelName may be empty to use the client
// default.
func NewGraphQuery(model llm.ChatModel, modelName string, store graph.Store, prompts *prompt.Builder) *GraphQuery {
	return &GraphQuery{model: model, modelName: modelName, store: store, prompts: prompts}
}

// Name implements Tool.
func (t *GraphQuery) Name() string { return "graph_query" }

// Description implements Tool.
func (t *GraphQuery) Description() string {
	return "Query the knowledge graph of algorithms, data structures, techniques, problems and concepts. Input: a question in natural language about entities or their relationships."
}

// Call implements Tool. The generated query is treated as adversarial: it is
// normalized, validated read-only, bounded, and repaired at most once.
func (t *GraphQuery) Call(ctx context.Context, input string) (string, error) {
	question := strings.TrimSpace(input)
	if question == "" {
		return "", NewError(KindBadInput, fmt.Errorf("empty graph question"))
	}

	completion, err := t.model.Complete(ctx, t.prompts.CypherMessages(graph.SchemaText, question), llm.Options{Model: t.modelName})
	if err != nil {
		return "", NewError(KindUnavailable, fmt.Errorf("query generation failed: %w", err))
	}

	result, issue, err := t.attempt(ctx, completion.Content)
	if err != nil {
		return "", err
	}
	if issue == "" {
		return result, nil
	}
	if result == RejectionMessage {
		return RejectionMessage, nil
	}

	// One-shot repair with the broken query and the specific issue.
	slog.Warn("Generated graph query needs repair", "issue", issue)
	repaired, err := t.model.Complete(ctx,
		t.prompts.CypherRepairMessages(graph.SchemaText, question, completion.Content, issue),
		llm.Options{Model: t.modelName})
	if err != nil {
		return "", NewError(KindUnavailable, fmt.Errorf("query repair failed: %w", err))
	}

	result, issue, err = t.attempt(ctx, repaired.Content)
	if err != nil {
		return "", err
	}
	if issue == "" || result == RejectionMessage {
		return result, nil
	}
	slog.Warn("Graph query repair attempt also failed", "issue", issue)
	return failureMessage, nil
}

// attempt normalizes, validates, bounds, and executes one candidate query.
// A non-empty issue with nil error marks a repairable failure; a result of
// RejectionMessage marks a permanent unsafe rejection.
func (t *GraphQuery) attempt(ctx context.Context, rawQuery string) (result, issue string, err error) {
	query := NormalizeQuery(rawQuery)

	unsafe, issue := ValidateQuery(query)
	if unsafe {
		slog.Warn("Rejected unsafe generated graph query")
		return RejectionMessage, issue, nil
	}
	if issue != "" {
		return "", issue, nil
	}

	bounded := EnsureLimit(query)
	rows, execErr := t.store.QueryStructured(ctx, bounded, nil)
	if execErr != nil {
		if detail := graph.StatementErrorDetail(execErr); detail != "" {
			return "", detail, nil
		}
		return "", "", NewError(KindStoreError, fmt.Errorf("graph query execution failed: %w", execErr))
	}

	return formatRows(rows), "", nil
}

// formatRows renders result rows with stable key order.
func formatRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "No rows returned."
	}
	var sb strings.Builder
	for i, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Row %d: ", i+1))
		for j, k := range keys {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", k, row[k]))
		}
	}
	return sb.String()
}
