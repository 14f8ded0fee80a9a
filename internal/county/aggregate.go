package county

import (
	"sort"

	"github.com/sells-group/frc-county-map/internal/model"
)

// Aggregate counts distinct teams per canonical county. Records without a
// county are skipped. The result is sorted by count descending, then by
// county name.
func Aggregate(records []model.TeamRecord) []model.CountyCount {
	teams := make(map[string]map[string]struct{})
	for _, r := range records {
		c := Canonicalize(r.County)
		if c == "" {
			continue
		}
		set, ok := teams[c]
		if !ok {
			set = make(map[string]struct{})
			teams[c] = set
		}
		set[r.TeamKey] = struct{}{}
	}

	counts := make([]model.CountyCount, 0, len(teams))
	for c, set := range teams {
		counts = append(counts, model.CountyCount{County: c, TeamCount: len(set)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].TeamCount != counts[j].TeamCount {
			return counts[i].TeamCount > counts[j].TeamCount
		}
		return counts[i].County < counts[j].County
	})
	return counts
}

// Total returns the sum of all county counts.
func Total(counts []model.CountyCount) int {
	n := 0
	for _, c := range counts {
		n += c.TeamCount
	}
	return n
}
