package geometry

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/frc-county-map/internal/apperr"
)

func readGeoJSON(path string) ([]feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, apperr.NewConfigError(eris.Wrapf(err, "geometry: parse %s", path))
	}

	out := make([]feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		out = append(out, feature{geometry: polygonal(f.Geometry), properties: f.Properties})
	}
	return out, nil
}

// polygonal keeps Polygon and MultiPolygon geometries and drops the rest.
func polygonal(g geom.T) geom.T {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g
	default:
		return nil
	}
}
