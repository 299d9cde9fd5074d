package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "ascii tokens lowercased in order",
			query: "How does BFS differ from DFS?",
			want:  []string{"how", "does", "bfs", "differ", "from", "dfs"},
		},
		{
			name:  "stop words dropped",
			query: "check trace BFS marker",
			want:  []string{"bfs"},
		},
		{
			name:  "single letters dropped",
			query: "a b queue",
			want:  []string{"queue"},
		},
		{
			name:  "duplicates collapse",
			query: "queue queue Queue",
			want:  []string{"queue"},
		},
		{
			name:  "cjk runs of three or more",
			query: "什么是广度优先搜索",
			want:  []string{"什么是广度优先搜索"},
		},
		{
			name:  "mixed scripts",
			query: "BFS 广度优先搜索 入门",
			want:  []string{"bfs", "广度优先搜索"},
		},
		{
			name:  "empty query",
			query: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.query))
		})
	}
}

func TestExtractKeywordsDeterministic(t *testing.T) {
	query := "shortest path from source using Dijkstra with priority queue"
	first := ExtractKeywords(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ExtractKeywords(query))
	}
	assert.LessOrEqual(t, len(first), maxKeywords)
}

func TestKeywordScore(t *testing.T) {
	kws := []string{"bfs", "queue"}
	assert.Equal(t, 2, KeywordScore("BFS uses a queue for traversal", kws))
	assert.Equal(t, 1, KeywordScore("a queue is FIFO", kws))
	assert.Equal(t, 0, KeywordScore("depth-first search", kws))
	assert.Equal(t, 0, KeywordScore("", kws))
	assert.Equal(t, 0, KeywordScore("anything", nil))
	// distinct keywords, not occurrences
	assert.Equal(t, 1, KeywordScore("queue queue queue", kws))
}

func TestBoostOrder(t *testing.T) {
	// candidates arrive cosine-descending
	candidates := []scored{
		{index: 0, cosine: 0.9, keywordScore: 0},
		{index: 1, cosine: 0.8, keywordScore: 2},
		{index: 2, cosine: 0.7, keywordScore: 0},
		{index: 3, cosine: 0.6, keywordScore: 3},
		{index: 4, cosine: 0.5, keywordScore: 2},
	}

	t.Run("keyword hits lead, cosine backfills", func(t *testing.T) {
		order := boostOrder(candidates, 4)
		// hits sorted by (kw desc, cos desc): 3, 1, 4 — then cosine backfill: 0
		assert.Equal(t, []int{3, 1, 4, 0}, order)
	})

	t.Run("hit prefix truncated at topK", func(t *testing.T) {
		order := boostOrder(candidates, 2)
		assert.Equal(t, []int{3, 1}, order)
	})

	t.Run("no hits preserves cosine order", func(t *testing.T) {
		noHits := []scored{
			{index: 0, cosine: 0.9},
			{index: 1, cosine: 0.8},
		}
		assert.Equal(t, []int{0, 1}, boostOrder(noHits, 5))
	})
}
