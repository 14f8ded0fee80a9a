// Package render draws joined county features as an SVG choropleth and
// writes them as GeoJSON for external GIS tools.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/frc-county-map/internal/model"
)

// Defaults for Options fields left zero.
const (
	DefaultWidth       = 1000
	DefaultLegendLabel = "FRC teams"

	padding      = 20.0
	titleHeight  = 40.0
	legendHeight = 60.0
)

// Options controls the rendered map.
type Options struct {
	Title       string
	LegendLabel string
	Width       int
	// HideLabels suppresses the per-county count labels.
	HideLabels bool
}

type svgPath struct {
	County string
	Count  int
	Fill   string
	D      string
}

type svgLabel struct {
	X, Y string
	Text string
}

type svgSwatch struct {
	X, TextX string
	Color    string
	Label    string
}

type svgData struct {
	Title        string
	LegendLabel  string
	Width        int
	Height       int
	TitleX       string
	TitleY       string
	LegendX      string
	LegendY      string
	LegendLabelY string
	LegendTextY  string
	FontSize     string
	Paths        []svgPath
	Labels       []svgLabel
	Swatches     []svgSwatch
}

var svgTemplate = template.Must(template.New("map").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
<rect width="100%" height="100%" fill="#ffffff"/>
<text x="{{.TitleX}}" y="{{.TitleY}}" text-anchor="middle" font-family="sans-serif" font-size="18">{{.Title | html}}</text>
<g stroke="#808080" stroke-width="0.5" fill-rule="evenodd">
{{- range .Paths}}
<path d="{{.D}}" fill="{{.Fill}}"><title>{{.County | html}}: {{.Count}}</title></path>
{{- end}}
</g>
<g font-family="sans-serif" font-size="{{.FontSize}}" text-anchor="middle" dominant-baseline="central" fill="#000000">
{{- range .Labels}}
<text x="{{.X}}" y="{{.Y}}">{{.Text}}</text>
{{- end}}
</g>
<g font-family="sans-serif" font-size="12">
<text x="{{.LegendX}}" y="{{.LegendLabelY}}">{{.LegendLabel | html}}</text>
{{- range .Swatches}}
<rect x="{{.X}}" y="{{$.LegendY}}" width="40" height="14" fill="{{.Color}}" stroke="#808080" stroke-width="0.5"/>
<text x="{{.TextX}}" y="{{$.LegendTextY}}" text-anchor="middle">{{.Label}}</text>
{{- end}}
</g>
</svg>
`))

// projection maps lon/lat onto SVG pixels, scaling longitude by the cosine
// of the mean latitude.
type projection struct {
	minX, maxY float64
	kx, scale  float64
	offsetY    float64
}

func (p projection) point(x, y float64) (float64, float64) {
	return padding + (x-p.minX)*p.kx*p.scale, p.offsetY + (p.maxY-y)*p.scale
}

func newProjection(features []model.CountyFeature, width int) (projection, float64, error) {
	b := geom.NewBounds(geom.XY)
	var found bool
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		b.Extend(f.Geometry)
		found = true
	}
	if !found {
		return projection{}, 0, eris.New("render: no geometry to draw")
	}

	minX, minY, maxX, maxY := b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	kx := math.Cos((minY + maxY) / 2 * math.Pi / 180)
	spanX := (maxX - minX) * kx
	spanY := maxY - minY
	if spanX <= 0 || spanY <= 0 {
		return projection{}, 0, eris.New("render: degenerate geometry bounds")
	}

	scale := (float64(width) - 2*padding) / spanX
	return projection{
		minX:    minX,
		maxY:    maxY,
		kx:      kx,
		scale:   scale,
		offsetY: titleHeight + padding,
	}, spanY * scale, nil
}

// SVG writes a choropleth of features to w. Counties are filled by team
// count and counties with at least one team are labelled at their centroid.
func SVG(w io.Writer, features []model.CountyFeature, opts Options) error {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}
	legendLabel := opts.LegendLabel
	if legendLabel == "" {
		legendLabel = DefaultLegendLabel
	}

	proj, mapHeight, err := newProjection(features, width)
	if err != nil {
		return err
	}

	maxCount := 0
	for _, f := range features {
		if f.TeamCount > maxCount {
			maxCount = f.TeamCount
		}
	}
	scale := NewScale(maxCount)

	legendY := titleHeight + padding + mapHeight + padding + 16
	height := int(math.Ceil(legendY + legendHeight))
	data := svgData{
		Title:        opts.Title,
		LegendLabel:  legendLabel,
		Width:        width,
		Height:       height,
		TitleX:       num(float64(width) / 2),
		TitleY:       num(titleHeight - 12),
		LegendX:      num(padding),
		LegendY:      num(legendY),
		LegendLabelY: num(legendY - 6),
		LegendTextY:  num(legendY + 28),
		FontSize:     num(math.Max(8, math.Min(14, float64(width)/90))),
	}

	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		data.Paths = append(data.Paths, svgPath{
			County: f.County,
			Count:  f.TeamCount,
			Fill:   scale.Color(f.TeamCount),
			D:      pathData(f.Geometry, proj),
		})
		if !opts.HideLabels && f.TeamCount > 0 && f.Centroid != nil {
			x, y := proj.point(f.Centroid.X(), f.Centroid.Y())
			data.Labels = append(data.Labels, svgLabel{X: num(x), Y: num(y), Text: strconv.Itoa(f.TeamCount)})
		}
	}

	for i, e := range scale.Legend() {
		x := padding + float64(i)*44
		data.Swatches = append(data.Swatches, svgSwatch{
			X:     num(x),
			TextX: num(x + 20),
			Color: e.Color,
			Label: e.Label,
		})
	}

	if err := svgTemplate.Execute(w, data); err != nil {
		return eris.Wrap(err, "render: write svg")
	}
	return nil
}

// pathData converts a Polygon or MultiPolygon into an SVG path.
func pathData(g geom.T, p projection) string {
	var sb strings.Builder
	polygon := func(poly *geom.Polygon) {
		for i := 0; i < poly.NumLinearRings(); i++ {
			ring := poly.LinearRing(i)
			for j := 0; j < ring.NumCoords(); j++ {
				c := ring.Coord(j)
				x, y := p.point(c.X(), c.Y())
				if j == 0 {
					sb.WriteString("M")
				} else {
					sb.WriteString("L")
				}
				fmt.Fprintf(&sb, "%s %s", num(x), num(y))
			}
			sb.WriteString("Z")
		}
	}

	switch t := g.(type) {
	case *geom.Polygon:
		polygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polygon(t.Polygon(i))
		}
	}
	return sb.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
