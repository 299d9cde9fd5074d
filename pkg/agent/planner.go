package agent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/athenalab/kgrag/pkg/models"
)

var planFencePattern = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$")

// plannerItem is one raw sub-task descriptor as the model emits it. Models
// waver between "task" and "content" for the description and between numeric
// and string ids, so both are tolerated.
type plannerItem struct {
	ID       any    `json:"id"`
	Task     string `json:"task"`
	Content  string `json:"content"`
	ToolHint string `json:"tool_hint"`
}

// ParsePlan parses the planner's response into pending todos. Parsing is
// best-effort: fences are stripped, the outermost JSON array is located, and
// any failure falls back to a single sub-task carrying the raw text.
func ParsePlan(raw string) []models.TodoItem {
	fallback := []models.TodoItem{{
		ID:      "1",
		Content: strings.TrimSpace(raw),
		Status:  models.TodoPending,
	}}

	text := planFencePattern.ReplaceAllString(raw, "")
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return fallback
	}

	var items []plannerItem
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return fallback
	}

	todos := make([]models.TodoItem, 0, len(items))
	for i, item := range items {
		content := strings.TrimSpace(item.Task)
		if content == "" {
			content = strings.TrimSpace(item.Content)
		}
		if content == "" {
			continue
		}
		todos = append(todos, models.TodoItem{
			ID:      normalizeTodoID(item.ID, i),
			Content: content,
			Status:  models.TodoPending,
		})
	}
	if len(todos) == 0 {
		return fallback
	}
	return todos
}

func normalizeTodoID(id any, index int) string {
	switch v := id.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.Itoa(index + 1)
}
