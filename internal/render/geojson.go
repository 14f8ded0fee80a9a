package render

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/frc-county-map/internal/model"
)

// GeoJSON writes features as a FeatureCollection with county and team_count
// properties.
func GeoJSON(w io.Writer, features []model.CountyFeature) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: f.Geometry,
			Properties: map[string]any{
				"county":     f.County,
				"team_count": f.TeamCount,
			},
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "render: encode geojson")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return eris.Wrap(err, "render: write geojson")
	}
	return nil
}
