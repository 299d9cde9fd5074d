package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func allowedSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func TestParseResponseFinalAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "simple",
			in:   "Thought: I know enough.\nFinal Answer: BFS explores level by level.",
			want: "BFS explores level by level.",
		},
		{
			name: "case insensitive marker",
			in:   "final answer: lowercase works",
			want: "lowercase works",
		},
		{
			name: "multiline answer captured to EOF",
			in:   "Final Answer: line one\nline two\nline three",
			want: "line one\nline two\nline three",
		},
		{
			name: "capture stops at next marker",
			in:   "Final Answer: the answer\nThought: echoing the format example",
			want: "the answer",
		},
		{
			name: "indented marker",
			in:   "  Final Answer:  padded  ",
			want: "padded",
		},
		{
			name: "literal marker line inside the answer is kept",
			in:   "Final Answer: end your reply with the line\nFinal Answer: <your text>",
			want: "end your reply with the line\nFinal Answer: <your text>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseResponse(tt.in, nil)
			assert.True(t, parsed.IsFinal)
			assert.False(t, parsed.HasAction)
			assert.Equal(t, tt.want, parsed.FinalAnswer)
		})
	}
}

func TestParseResponseFinalAnswerPrecedence(t *testing.T) {
	in := "Thought: done\nAction: chunk_search\nAction Input: BFS\nFinal Answer: no more tools needed"
	parsed := ParseResponse(in, allowedSet("chunk_search"))
	assert.True(t, parsed.IsFinal)
	assert.Equal(t, "no more tools needed", parsed.FinalAnswer)
}

func TestParseResponseActions(t *testing.T) {
	t.Run("newline separated pair", func(t *testing.T) {
		in := "Thought: search the notes\nAction: chunk_search\nAction Input: BFS complexity"
		parsed := ParseResponse(in, nil)
		assert.True(t, parsed.HasAction)
		assert.Equal(t, "chunk_search", parsed.Tool)
		assert.Equal(t, "BFS complexity", parsed.Input)
		assert.Equal(t, "search the notes", parsed.Thought)
	})

	t.Run("same line pair", func(t *testing.T) {
		parsed := ParseResponse("Action: graph_query Action Input: what uses BFS", nil)
		assert.True(t, parsed.HasAction)
		assert.Equal(t, "graph_query", parsed.Tool)
		assert.Equal(t, "what uses BFS", parsed.Input)
	})

	t.Run("last pair wins", func(t *testing.T) {
		in := "Action: chunk_search\nAction Input: first\nObservation: ...\nAction: graph_query\nAction Input: second"
		parsed := ParseResponse(in, nil)
		assert.Equal(t, "graph_query", parsed.Tool)
		assert.Equal(t, "second", parsed.Input)
	})

	t.Run("allowed set preferred over last", func(t *testing.T) {
		in := "Action: chunk_search\nAction Input: real call\nAction: made_up_tool\nAction Input: echo of an example"
		parsed := ParseResponse(in, allowedSet("chunk_search", "graph_query"))
		assert.Equal(t, "chunk_search", parsed.Tool)
		assert.Equal(t, "real call", parsed.Input)
	})

	t.Run("unknown tool kept when nothing allowed matches", func(t *testing.T) {
		parsed := ParseResponse("Action: made_up_tool\nAction Input: x", allowedSet("chunk_search"))
		assert.True(t, parsed.HasAction)
		assert.Equal(t, "made_up_tool", parsed.Tool)
	})

	t.Run("backticked tool name normalized", func(t *testing.T) {
		parsed := ParseResponse("Action: `chunk_search`\nAction Input: q", nil)
		assert.Equal(t, "chunk_search", parsed.Tool)
	})

	t.Run("missing input yields empty string", func(t *testing.T) {
		parsed := ParseResponse("Action: chunk_search", nil)
		assert.True(t, parsed.HasAction)
		assert.Equal(t, "", parsed.Input)
	})
}

func TestParseResponseUnparseable(t *testing.T) {
	for _, in := range []string{
		"",
		"I think I should search for BFS first.",
		"The action: is not at a line start... just kidding, it is not an action at all.",
	} {
		parsed := ParseResponse(in, nil)
		assert.False(t, parsed.IsFinal, "input %q", in)
		assert.False(t, parsed.HasAction, "input %q", in)
	}
}

func TestParseResponseThoughtAttachment(t *testing.T) {
	in := "Thought: first idea\nAction: chunk_search\nAction Input: a\nObservation: none\nThought: better idea\nAction: graph_query\nAction Input: b"
	parsed := ParseResponse(in, nil)
	assert.Equal(t, "graph_query", parsed.Tool)
	assert.Equal(t, "better idea", parsed.Thought)
}
