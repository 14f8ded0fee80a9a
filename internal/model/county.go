package model

import "github.com/twpayne/go-geom"

// CountyCount is the number of distinct teams in one canonical county.
type CountyCount struct {
	County    string `json:"county"`
	TeamCount int    `json:"team_count"`
}

// CountyGeometry is a named county polygon loaded from a boundary file.
type CountyGeometry struct {
	County     string         // canonical name, used as the join key
	RawName    string         // name as it appears in the source file
	Geometry   geom.T         // Polygon or MultiPolygon
	Properties map[string]any // remaining source attributes
}

// CountyFeature is a county geometry joined with its team count.
type CountyFeature struct {
	County    string
	Geometry  geom.T
	TeamCount int
	Centroid  geom.Coord // nil when the centroid could not be computed
}
