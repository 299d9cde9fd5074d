package vector

import (
	"regexp"
	"sort"
	"strings"
)

// Keyword extraction bounds. Short tokens are noise; long ones are almost
// never exact-match terms.
const (
	maxKeywords = 8
)

var (
	asciiTokenPattern = regexp.MustCompile(`[A-Za-z]{2,16}`)
	cjkTokenPattern   = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{3,16}`)
)

// stopWords drops tool-name noise tokens that models echo into queries.
var stopWords = map[string]bool{
	"trace":     true,
	"check":     true,
	"marker":    true,
	"langsmith": true,
	"langchain": true,
}

// ExtractKeywords derives a small, deterministic keyword set from a query:
// lowercased ASCII tokens and CJK runs, first occurrence order, capped per
// script at maxKeywords.
func ExtractKeywords(query string) []string {
	var keywords []string
	seen := map[string]bool{}

	ascii := asciiTokenPattern.FindAllString(query, -1)
	count := 0
	for _, tok := range ascii {
		if count >= maxKeywords {
			break
		}
		tok = strings.ToLower(tok)
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		count++
	}

	cjk := cjkTokenPattern.FindAllString(query, -1)
	count = 0
	for _, tok := range cjk {
		if count >= maxKeywords {
			break
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		count++
	}

	return keywords
}

// KeywordScore counts how many of the keywords occur in the content,
// case-insensitively. Distinct keywords, not occurrences, so one repeated
// term cannot drown out broader matches.
func KeywordScore(content string, keywords []string) int {
	if len(keywords) == 0 || content == "" {
		return 0
	}
	lower := strings.ToLower(content)
	score := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	return score
}

// scored pairs a candidate index with its ranking signals.
type scored struct {
	index        int
	cosine       float32
	keywordScore int
}

// boostOrder returns candidate indices in final rank order: keyword hits
// first, sorted by (keyword score desc, cosine desc), then the remainder by
// cosine. Candidates must already be in cosine-descending order.
func boostOrder(candidates []scored, topK int) []int {
	var hits []scored
	for _, c := range candidates {
		if c.keywordScore > 0 {
			hits = append(hits, c)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].keywordScore != hits[j].keywordScore {
			return hits[i].keywordScore > hits[j].keywordScore
		}
		return hits[i].cosine > hits[j].cosine
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	chosen := make(map[int]bool, len(hits))
	order := make([]int, 0, topK)
	for _, h := range hits {
		chosen[h.index] = true
		order = append(order, h.index)
	}
	for _, c := range candidates {
		if len(order) >= topK {
			break
		}
		if chosen[c.index] {
			continue
		}
		order = append(order, c.index)
	}
	return order
}
