package ingest

import (
	"strings"

	"github.com/athenalab/kgrag/pkg/models"
)

// MergeEntities collapses per-chunk entities that share a lowercased name
// into one record: descriptions concatenate line-deduped, the type is chosen
// by majority vote, aliases and source chunks union preserving order.
func MergeEntities(entities []models.Entity) []models.Entity {
	groups := make(map[string][]models.Entity)
	var order []string
	for _, e := range entities {
		key := strings.ToLower(e.Name)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	merged := make([]models.Entity, 0, len(order))
	for _, key := range order {
		merged = append(merged, mergeGroup(groups[key], groups[key][0].Name))
	}
	return merged
}

// mergeGroup merges entity records into one under the given canonical name.
// Name variants that differ from the canonical name are preserved as aliases.
func mergeGroup(group []models.Entity, canonical string) models.Entity {
	out := models.Entity{
		ID:   models.EntityID(canonical),
		Name: canonical,
		Type: majorityType(group),
	}

	var descriptions []string
	var aliases []string
	for _, e := range group {
		descriptions = append(descriptions, e.Description)
		if e.Name != canonical {
			aliases = append(aliases, e.Name)
		}
		aliases = append(aliases, e.Aliases...)
		out.SourceChunks = appendUnique(out.SourceChunks, e.SourceChunks...)
	}
	out.Description = mergeDescriptions(descriptions)
	out.Aliases = uniqueAliases(aliases, canonical)
	return out
}

// mergeDescriptions concatenates descriptions, dropping repeated lines.
func mergeDescriptions(descriptions []string) string {
	seen := make(map[string]bool)
	var lines []string
	for _, d := range descriptions {
		for _, line := range strings.Split(d, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[strings.ToLower(line)] {
				continue
			}
			seen[strings.ToLower(line)] = true
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// majorityType picks the most frequent type in the group; ties go to the
// earliest record.
func majorityType(group []models.Entity) string {
	counts := make(map[string]int)
	best := group[0].Type
	bestCount := 0
	for _, e := range group {
		counts[e.Type]++
		if counts[e.Type] > bestCount {
			best = e.Type
			bestCount = counts[e.Type]
		}
	}
	return best
}

// uniqueAliases dedups aliases case-insensitively. The exact canonical name
// is dropped; casing variants of it survive as aliases.
func uniqueAliases(aliases []string, canonical string) []string {
	seen := make(map[string]bool, len(aliases))
	var out []string
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || a == canonical || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
