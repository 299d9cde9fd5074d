package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/athenalab/kgrag/pkg/llm"
	"github.com/athenalab/kgrag/pkg/models"
)

// DedupAliases is the deterministic dedup layer: entities whose name matches
// another entity's alias (case-insensitive, length ≥ 2) are merged. Alias↔
// alias overlap alone never merges — too noisy. Returns the deduped entities
// plus a name map old → canonical for every displaced name. Running it again
// over its own output is a no-op.
func DedupAliases(entities []models.Entity) ([]models.Entity, map[string]string) {
	uf := newUnionFind(len(entities))

	nameIndex := make(map[string]int, len(entities))
	for i, e := range entities {
		key := strings.ToLower(e.Name)
		if len(key) >= 2 {
			nameIndex[key] = i
		}
	}
	for i, e := range entities {
		for _, alias := range e.Aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if len(key) < 2 {
				continue
			}
			if j, ok := nameIndex[key]; ok && j != i {
				uf.union(i, j)
			}
		}
	}

	components := make(map[int][]int)
	var order []int
	for i := range entities {
		root := uf.find(i)
		if _, seen := components[root]; !seen {
			order = append(order, root)
		}
		components[root] = append(components[root], i)
	}

	nameMap := make(map[string]string)
	deduped := make([]models.Entity, 0, len(order))
	for _, root := range order {
		members := make([]models.Entity, 0, len(components[root]))
		for _, idx := range components[root] {
			members = append(members, entities[idx])
		}
		canonical := longestName(members)
		merged := mergeGroup(members, canonical)
		for _, m := range members {
			if m.Name != canonical {
				nameMap[m.Name] = canonical
			}
		}
		deduped = append(deduped, merged)
	}
	return deduped, nameMap
}

// longestName picks the canonical name for a component: the longest name,
// earliest record on ties.
func longestName(members []models.Entity) string {
	best := members[0].Name
	for _, m := range members[1:] {
		if len(m.Name) > len(best) {
			best = m.Name
		}
	}
	return best
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// dedupGroup is one consolidation proposal from the model.
type dedupGroup struct {
	Canonical  string   `json:"canonical"`
	Duplicates []string `json:"duplicates"`
}

// ModelDedup is the second dedup layer: one model call over a numbered
// listing of the remaining entities. Groups naming unknown entities are
// rejected; a name joins at most one group. The name map is extended with
// every accepted displacement.
func ModelDedup(ctx context.Context, model llm.ChatModel, modelName string, prompts promptBuilder, entities []models.Entity, nameMap map[string]string) []models.Entity {
	if len(entities) < 2 {
		return entities
	}

	completion, err := model.Complete(ctx, prompts.DedupMessages(entityListing(entities)), llm.Options{Model: modelName})
	if err != nil {
		slog.Warn("Model dedup call failed, keeping entities as-is", "error", err)
		return entities
	}

	groups, err := parseDedupGroups(completion.Content)
	if err != nil {
		slog.Warn("Model dedup response unparseable, keeping entities as-is", "error", err)
		return entities
	}

	byName := make(map[string]int, len(entities))
	for i, e := range entities {
		byName[e.Name] = i
	}

	claimed := make(map[string]bool)
	removed := make(map[int]bool)
	mergedByIndex := make(map[int]models.Entity)

	for _, group := range groups {
		canonicalIdx, ok := byName[group.Canonical]
		if !ok || claimed[group.Canonical] {
			slog.Warn("Rejecting dedup group with unknown or reused canonical", "canonical", group.Canonical)
			continue
		}

		members := []models.Entity{current(entities, mergedByIndex, canonicalIdx)}
		var displacedIdx []int
		for _, dup := range group.Duplicates {
			idx, ok := byName[dup]
			if !ok || claimed[dup] || dup == group.Canonical {
				continue
			}
			members = append(members, current(entities, mergedByIndex, idx))
			displacedIdx = append(displacedIdx, idx)
		}
		if len(displacedIdx) == 0 {
			continue
		}

		claimed[group.Canonical] = true
		mergedByIndex[canonicalIdx] = mergeGroup(members, group.Canonical)
		for _, idx := range displacedIdx {
			claimed[entities[idx].Name] = true
			removed[idx] = true
			nameMap[entities[idx].Name] = group.Canonical
		}
	}

	out := make([]models.Entity, 0, len(entities))
	for i := range entities {
		if removed[i] {
			continue
		}
		out = append(out, current(entities, mergedByIndex, i))
	}
	return out
}

func current(entities []models.Entity, merged map[int]models.Entity, idx int) models.Entity {
	if e, ok := merged[idx]; ok {
		return e
	}
	return entities[idx]
}

// promptBuilder is the slice of the prompt builder the dedup layer needs.
type promptBuilder interface {
	DedupMessages(listing string) []models.Message
}

func entityListing(entities []models.Entity) string {
	var b strings.Builder
	for i, e := range entities {
		fmt.Fprintf(&b, "%d. %s", i+1, e.Name)
		if len(e.Aliases) > 0 {
			fmt.Fprintf(&b, " (aliases: %s)", strings.Join(e.Aliases, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseDedupGroups(raw string) ([]dedupGroup, error) {
	text := extractFencePattern.ReplaceAllString(raw, "")
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var groups []dedupGroup
	if err := json.Unmarshal([]byte(text[start:end+1]), &groups); err != nil {
		return nil, fmt.Errorf("invalid dedup JSON: %w", err)
	}
	return groups, nil
}
