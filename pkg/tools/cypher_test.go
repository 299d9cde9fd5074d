package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain query unchanged",
			in:   "MATCH (n) RETURN n",
			want: "MATCH (n) RETURN n",
		},
		{
			name: "fenced with language tag",
			in:   "```cypher\nMATCH (n) RETURN n\n```",
			want: "MATCH (n) RETURN n",
		},
		{
			name: "bare fences",
			in:   "```\nMATCH (n) RETURN n\n```",
			want: "MATCH (n) RETURN n",
		},
		{
			name: "standalone language tag line",
			in:   "cypher:\nMATCH (n) RETURN n",
			want: "MATCH (n) RETURN n",
		},
		{
			name: "cql tag",
			in:   "CQL\nMATCH (n) RETURN n",
			want: "MATCH (n) RETURN n",
		},
		{
			name: "truncated MATCH repaired",
			in:   "CH (e:Entity) RETURN e.name AS name",
			want: "MATCH (e:Entity) RETURN e.name AS name",
		},
		{
			name: "CH inside a word untouched",
			in:   "MATCH (n) WHERE n.name = 'CHess' RETURN n",
			want: "MATCH (n) WHERE n.name = 'CHess' RETURN n",
		},
		{
			name: "surrounding whitespace trimmed",
			in:   "  \nMATCH (n) RETURN n\n ",
			want: "MATCH (n) RETURN n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.in))
		})
	}
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "MATCH (n) \n RETURN n",
		StripComments("MATCH (n) // trailing\n RETURN n"))
	assert.Equal(t, "MATCH (n)   RETURN n",
		StripComments("MATCH (n) /* block\ncomment */ RETURN n"))
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantUnsafe bool
		wantIssue  string
	}{
		{
			name:  "read query passes",
			query: "MATCH (n) RETURN n",
		},
		{
			name:  "optional match passes",
			query: "OPTIONAL MATCH (n) RETURN n",
		},
		{
			name:       "create rejected",
			query:      "CREATE (n:X) RETURN n",
			wantUnsafe: true,
			wantIssue:  "unsafe keyword detected",
		},
		{
			name:       "lowercase merge rejected",
			query:      "match (n) merge (m) return n",
			wantUnsafe: true,
			wantIssue:  "unsafe keyword detected",
		},
		{
			name:       "keyword hidden in comment is ignored",
			query:      "MATCH (n) // CREATE\nRETURN n",
			wantUnsafe: false,
			wantIssue:  "",
		},
		{
			name:       "load csv rejected",
			query:      "LOAD CSV FROM 'x' AS line RETURN line",
			wantUnsafe: true,
			wantIssue:  "unsafe keyword detected",
		},
		{
			name:       "apoc rejected",
			query:      "RETURN apoc.version()",
			wantUnsafe: true,
			wantIssue:  "unsafe keyword detected",
		},
		{
			name:      "missing return is repairable",
			query:     "MATCH (n)",
			wantIssue: "missing RETURN clause",
		},
		{
			name:      "bad first keyword is repairable",
			query:     "EXPLAIN MATCH (n) RETURN n",
			wantIssue: "query must start with MATCH, OPTIONAL MATCH, WITH, UNWIND or RETURN",
		},
		{
			name:      "empty query",
			query:     "   ",
			wantIssue: "empty query",
		},
		{
			name:  "identifier containing keyword letters passes",
			query: "MATCH (n) WHERE n.name = 'mergesort' RETURN n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsafe, issue := ValidateQuery(tt.query)
			assert.Equal(t, tt.wantUnsafe, unsafe)
			assert.Equal(t, tt.wantIssue, issue)
		})
	}
}

func TestEnsureLimit(t *testing.T) {
	assert.Equal(t, "MATCH (n) RETURN n LIMIT 50", EnsureLimit("MATCH (n) RETURN n"))
	assert.Equal(t, "MATCH (n) RETURN n LIMIT 5", EnsureLimit("MATCH (n) RETURN n LIMIT 5"))
	// a LIMIT only inside a comment does not count
	assert.Equal(t, "MATCH (n) RETURN n // LIMIT\n LIMIT 50",
		EnsureLimit("MATCH (n) RETURN n // LIMIT\n"))
}
