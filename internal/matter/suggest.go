package matter

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// suggestLimit is how far (in edits) a known id may be from the requested
// one and still be offered as a suggestion.
func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

// suggest returns up to three known ids close to want, nearest first.
func suggest(want string, known []string) []string {
	type scored struct {
		id   string
		dist int
	}
	var cands []scored
	for _, id := range known {
		if id == want {
			continue
		}
		dist := levenshtein.ComputeDistance(want, id)
		if dist > suggestLimit(len(id)) {
			continue
		}
		cands = append(cands, scored{id: id, dist: dist})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist == cands[j].dist {
			return cands[i].id < cands[j].id
		}
		return cands[i].dist < cands[j].dist
	})
	out := make([]string, 0, 3)
	for _, c := range cands {
		out = append(out, c.id)
		if len(out) == 3 {
			break
		}
	}
	return out
}
