package ingest

import (
	"github.com/athenalab/kgrag/pkg/models"
)

// RemapRelations resolves relation endpoints through the transitive closure
// of nameMap, drops self-loops, and dedups (source, target, type) triples
// keeping the first occurrence.
func RemapRelations(relations []models.Relation, nameMap map[string]string) []models.Relation {
	type key struct {
		source, target, relType string
	}
	seen := make(map[key]bool, len(relations))

	out := make([]models.Relation, 0, len(relations))
	for _, r := range relations {
		r.Source = resolveName(r.Source, nameMap)
		r.Target = resolveName(r.Target, nameMap)
		if r.Source == r.Target {
			continue
		}
		k := key{r.Source, r.Target, r.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// resolveName follows nameMap to a fixpoint. A bounded walk guards against
// accidental cycles in the map.
func resolveName(name string, nameMap map[string]string) string {
	for range nameMap {
		next, ok := nameMap[name]
		if !ok || next == name {
			return name
		}
		name = next
	}
	return name
}
