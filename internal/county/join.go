package county

import (
	"sort"

	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/model"
)

// Join left-joins counts onto geometries by canonical county name. Every
// geometry appears exactly once in the result, with TeamCount 0 when no team
// was counted there. Counted counties with no geometry are returned as
// dropped, sorted by name, and logged; they are not an error.
func Join(geometries []model.CountyGeometry, counts []model.CountyCount) ([]model.CountyFeature, []string) {
	byCounty := make(map[string]int, len(counts))
	for _, c := range counts {
		byCounty[Canonicalize(c.County)] += c.TeamCount
	}

	matched := make(map[string]bool, len(geometries))
	features := make([]model.CountyFeature, 0, len(geometries))
	for _, g := range geometries {
		key := Canonicalize(g.County)
		f := model.CountyFeature{
			County:    key,
			Geometry:  g.Geometry,
			TeamCount: byCounty[key],
		}
		if g.Geometry != nil {
			if c, err := xy.Centroid(g.Geometry); err == nil && len(c) >= 2 {
				f.Centroid = c
			}
		}
		if _, ok := byCounty[key]; ok {
			matched[key] = true
		}
		features = append(features, f)
	}

	var dropped []string
	for c := range byCounty {
		if !matched[c] {
			dropped = append(dropped, c)
		}
	}
	sort.Strings(dropped)

	if len(dropped) > 0 {
		lost := 0
		for _, c := range dropped {
			lost += byCounty[c]
		}
		zap.L().Warn("county: counted counties missing from boundary file",
			zap.Strings("counties", dropped),
			zap.Int("teams", lost),
		)
	}

	return features, dropped
}
