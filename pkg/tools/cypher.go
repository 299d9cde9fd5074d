package tools

import (
	"regexp"
	"strings"
)

// Forbidden write/effect surface. Matched as whole words on comment-stripped
// text; the generator is treated as adversarial.
var (
	forbiddenKeywordPattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|CALL|FOREACH)\b`)
	loadCSVPattern          = regexp.MustCompile(`(?i)\bLOAD\s+CSV\b`)
	apocPattern             = regexp.MustCompile(`(?i)\bapoc\.`)
	returnPattern           = regexp.MustCompile(`(?i)\bRETURN\b`)
	limitPattern            = regexp.MustCompile(`(?i)\bLIMIT\b`)
	langTagPattern          = regexp.MustCompile(`(?i)^(cypher|cql|query):?$`)
	lineCommentPattern      = regexp.MustCompile(`//[^\n]*`)
	blockCommentPattern     = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// Clauses a query may open with.
var allowedFirstKeywords = map[string]bool{
	"MATCH":    true,
	"OPTIONAL": true,
	"WITH":     true,
	"UNWIND":   true,
	"RETURN":   true,
}

// defaultLimitClause is appended when the generator omits a LIMIT.
const defaultLimitClause = " LIMIT 50"

// NormalizeQuery cleans model output into a bare query: fences stripped, a
// leading standalone language tag dropped, and the observed "CH" truncation
// of MATCH repaired.
func NormalizeQuery(raw string) string {
	text := strings.TrimSpace(raw)

	// Strip code fences line-wise so both fenced-only and fence-wrapped
	// responses reduce to the query text.
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	// Drop a leading standalone language tag line.
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		if langTagPattern.MatchString(strings.TrimSpace(text[:idx])) {
			text = strings.TrimSpace(text[idx+1:])
		}
	}

	// Some models truncate the leading MATCH to "CH".
	if fields := strings.Fields(text); len(fields) > 0 && strings.EqualFold(fields[0], "CH") {
		text = "MATCH" + text[len(fields[0]):]
	}

	return text
}

// StripComments removes line and block comments.
func StripComments(query string) string {
	query = blockCommentPattern.ReplaceAllString(query, " ")
	query = lineCommentPattern.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}

// ValidateQuery checks a normalized query for read-only safety.
//
// unsafe=true means a write/effect keyword or procedure call was found; the
// caller rejects permanently and never repairs. A non-empty issue with
// unsafe=false is a repairable structural problem.
func ValidateQuery(query string) (unsafe bool, issue string) {
	stripped := StripComments(query)
	if stripped == "" {
		return false, "empty query"
	}

	if forbiddenKeywordPattern.MatchString(stripped) ||
		loadCSVPattern.MatchString(stripped) ||
		apocPattern.MatchString(stripped) {
		return true, "unsafe keyword detected"
	}

	first := strings.ToUpper(strings.Fields(stripped)[0])
	if !allowedFirstKeywords[first] {
		return false, "query must start with MATCH, OPTIONAL MATCH, WITH, UNWIND or RETURN"
	}

	if !returnPattern.MatchString(stripped) {
		return false, "missing RETURN clause"
	}

	return false, ""
}

// EnsureLimit appends LIMIT 50 when the query has no LIMIT clause.
func EnsureLimit(query string) string {
	if limitPattern.MatchString(StripComments(query)) {
		return query
	}
	return query + defaultLimitClause
}
