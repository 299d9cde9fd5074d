package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/athenalab/kgrag/pkg/models"
)

func TestRenderHistory(t *testing.T) {
	t.Run("internal notes and tool calls excluded", func(t *testing.T) {
		msgs := []models.Message{
			models.UserMessage("what is BFS?"),
			models.AssistantMessage(models.InternalPlanPrefix + " [{...}]"),
			models.AssistantMessage(models.InternalResultsPrefix + "\nstuff"),
			models.AssistantMessage(models.InternalReviewPrefix + " SUFFICIENT"),
			{Role: models.RoleAssistant, Content: "searching...", ToolCalls: []models.ToolCall{{ID: "t1"}}},
			models.AssistantMessage("BFS is breadth-first search."),
		}
		out := RenderHistory(msgs, 5)
		assert.Equal(t, "User: what is BFS?\nAssistant: BFS is breadth-first search.", out)
	})

	t.Run("last rounds kept", func(t *testing.T) {
		var msgs []models.Message
		for _, q := range []string{"q1", "q2", "q3"} {
			msgs = append(msgs, models.UserMessage(q), models.AssistantMessage("a-"+q))
		}
		out := RenderHistory(msgs, 2)
		assert.NotContains(t, out, "q1")
		assert.Contains(t, out, "User: q2")
		assert.Contains(t, out, "Assistant: a-q3")
	})

	t.Run("unanswered question rendered alone", func(t *testing.T) {
		out := RenderHistory([]models.Message{models.UserMessage("pending?")}, 5)
		assert.Equal(t, "User: pending?", out)
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, "", RenderHistory(nil, 5))
	})

	t.Run("long messages truncated", func(t *testing.T) {
		long := strings.Repeat("长", 2500)
		out := RenderHistory([]models.Message{models.UserMessage(long)}, 5)
		assert.Less(t, len([]rune(out)), 2100)
		assert.Contains(t, out, "…")
	})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "ab…", truncateRunes("abcdef", 2))
	assert.Equal(t, "宽度优…", truncateRunes("宽度优先搜索", 3))
}
