package agent

import (
	"strings"

	"github.com/athenalab/kgrag/pkg/models"
)

// Each history message is capped before it enters a prompt.
const historyMessageRuneLimit = 2000

// RenderHistory renders up to the last rounds question/answer rounds as
// compact dialogue text for the planner. Internal bookkeeping answers and
// messages carrying tool calls are excluded.
func RenderHistory(messages []models.Message, rounds int) string {
	type round struct {
		question string
		answer   string
	}

	var all []round
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			all = append(all, round{question: msg.Content})
		case models.RoleAssistant:
			if len(msg.ToolCalls) > 0 || models.IsInternalNote(msg.Content) {
				continue
			}
			if len(all) > 0 && all[len(all)-1].answer == "" {
				all[len(all)-1].answer = msg.Content
			}
		}
	}

	if rounds > 0 && len(all) > rounds {
		all = all[len(all)-rounds:]
	}

	var b strings.Builder
	for _, r := range all {
		b.WriteString("User: ")
		b.WriteString(truncateRunes(r.question, historyMessageRuneLimit))
		b.WriteString("\n")
		if r.answer != "" {
			b.WriteString("Assistant: ")
			b.WriteString(truncateRunes(r.answer, historyMessageRuneLimit))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
