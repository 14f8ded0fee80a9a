package render

import (
	"fmt"
	"math"
)

// OrRd is the 9-class ColorBrewer orange-red sequential scheme, light to dark.
var OrRd = []string{
	"#fff7ec", "#fee8c8", "#fdd49e", "#fdbb84", "#fc8d59",
	"#ef6548", "#d7301f", "#b30000", "#7f0000",
}

// Scale maps team counts onto color classes, linear between 0 and Max.
type Scale struct {
	Colors []string
	Max    int
}

// NewScale returns an OrRd scale covering 0..max.
func NewScale(max int) Scale {
	return Scale{Colors: OrRd, Max: max}
}

// Class returns the color class index for count.
func (s Scale) Class(count int) int {
	if s.Max <= 0 || count <= 0 {
		return 0
	}
	if count >= s.Max {
		return len(s.Colors) - 1
	}
	return int(math.Round(float64(count) / float64(s.Max) * float64(len(s.Colors)-1)))
}

// Color returns the fill color for count.
func (s Scale) Color(count int) string {
	return s.Colors[s.Class(count)]
}

// LegendEntry is one swatch of the map legend.
type LegendEntry struct {
	Color string
	Label string
}

// Legend lists the classes that at least one count in 0..Max falls into,
// labelled with the count range each covers.
func (s Scale) Legend() []LegendEntry {
	lo := make([]int, len(s.Colors))
	hi := make([]int, len(s.Colors))
	for i := range lo {
		lo[i] = -1
	}
	for c := 0; c <= s.Max; c++ {
		k := s.Class(c)
		if lo[k] < 0 {
			lo[k] = c
		}
		hi[k] = c
	}

	var out []LegendEntry
	for k := range s.Colors {
		if lo[k] < 0 {
			continue
		}
		label := fmt.Sprintf("%d", lo[k])
		if hi[k] != lo[k] {
			label = fmt.Sprintf("%d-%d", lo[k], hi[k])
		}
		out = append(out, LegendEntry{Color: s.Colors[k], Label: label})
	}
	return out
}
