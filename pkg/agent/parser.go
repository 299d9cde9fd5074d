package agent

import (
	"regexp"
	"strings"
)

// ParsedResponse is the structured view of one sub-agent model turn. Exactly
// one of IsFinal/HasAction is set when parsing succeeds; both are false when
// the text matches neither form.
type ParsedResponse struct {
	Thought     string
	IsFinal     bool
	FinalAnswer string
	HasAction   bool
	Tool        string
	Input       string
}

var (
	finalAnswerPattern = regexp.MustCompile(`(?im)^[ \t]*Final Answer[ \t]*:[ \t]*`)
	actionPattern      = regexp.MustCompile(`(?im)^[ \t]*Action[ \t]*:[ \t]*([^\n]*)`)
	actionInputPattern = regexp.MustCompile(`(?im)^[ \t]*Action[ \t]+Input[ \t]*:[ \t]*([^\n]*)`)
	thoughtPattern     = regexp.MustCompile(`(?im)^[ \t]*Thought[ \t]*:[ \t]*`)

	// Markers that terminate a captured section.
	sectionEndPattern = regexp.MustCompile(`(?im)^[ \t]*(Thought|Action|Action[ \t]+Input|Observation|Final Answer)[ \t]*:`)

	// A Final Answer body runs until the next protocol marker; a further
	// literal "Final Answer:" line is part of the answer text.
	answerEndPattern = regexp.MustCompile(`(?im)^[ \t]*(Thought|Action|Action[ \t]+Input|Observation)[ \t]*:`)

	inlineInputPattern = regexp.MustCompile(`(?i)Action[ \t]+Input[ \t]*:[ \t]*`)
)

// ParseResponse parses one model turn of the Thought/Action protocol.
// Final Answer takes precedence over actions. Among multiple action pairs the
// last one wins; when allowed is non-empty, the last pair naming an allowed
// tool is preferred over the last pair overall.
func ParseResponse(text string, allowed map[string]struct{}) ParsedResponse {
	if answer, ok := parseFinalAnswer(text); ok {
		return ParsedResponse{
			Thought:     lastThoughtBefore(text, len(text)),
			IsFinal:     true,
			FinalAnswer: answer,
		}
	}

	candidates := parseActions(text)
	if len(candidates) == 0 {
		return ParsedResponse{}
	}

	chosen := candidates[len(candidates)-1]
	if len(allowed) > 0 {
		for i := len(candidates) - 1; i >= 0; i-- {
			if _, ok := allowed[candidates[i].tool]; ok {
				chosen = candidates[i]
				break
			}
		}
	}

	return ParsedResponse{
		Thought:   lastThoughtBefore(text, chosen.pos),
		HasAction: true,
		Tool:      chosen.tool,
		Input:     chosen.input,
	}
}

func parseFinalAnswer(text string) (string, bool) {
	loc := finalAnswerPattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	if end := answerEndPattern.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return strings.TrimSpace(rest), true
}

type actionCandidate struct {
	tool  string
	input string
	pos   int
}

func parseActions(text string) []actionCandidate {
	actions := actionPattern.FindAllStringSubmatchIndex(text, -1)
	if len(actions) == 0 {
		return nil
	}
	inputs := actionInputPattern.FindAllStringSubmatchIndex(text, -1)

	candidates := make([]actionCandidate, 0, len(actions))
	for i, m := range actions {
		lineRest := text[m[2]:m[3]]
		next := len(text)
		if i+1 < len(actions) {
			next = actions[i+1][0]
		}

		var tool, input string
		if inline := inlineInputPattern.FindStringIndex(lineRest); inline != nil {
			// "Action: tool Action Input: x" on a single line.
			tool = lineRest[:inline[0]]
			input = lineRest[inline[1]:]
		} else {
			tool = lineRest
			for _, in := range inputs {
				if in[0] > m[1] && in[0] < next {
					input = text[in[2]:in[3]]
					break
				}
			}
		}

		tool = normalizeToolName(tool)
		if tool == "" {
			continue
		}
		candidates = append(candidates, actionCandidate{
			tool:  tool,
			input: strings.TrimSpace(input),
			pos:   m[0],
		})
	}
	return candidates
}

func normalizeToolName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "`'\"")
	return strings.TrimSpace(name)
}

// lastThoughtBefore extracts the content of the last Thought: section that
// starts before pos. Used to attach the model's stated reasoning to the
// streamed tool-call event.
func lastThoughtBefore(text string, pos int) string {
	matches := thoughtPattern.FindAllStringIndex(text, -1)
	var start = -1
	for _, m := range matches {
		if m[0] < pos {
			start = m[1]
		}
	}
	if start < 0 {
		return ""
	}
	rest := text[start:]
	if end := sectionEndPattern.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return strings.TrimSpace(rest)
}
