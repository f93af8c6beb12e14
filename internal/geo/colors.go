package geo

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// YlOrRd6 is the six-class yellow-orange-red palette of the choropleth.
var YlOrRd6 = []string{"#ffffb2", "#fed976", "#feb24c", "#fd8d3c", "#f03b20", "#bd0026"}

// OrRd9 is the nine-step orange-red ramp behind the circle colour scale.
var OrRd9 = []string{
	"#fff7ec", "#fee8c8", "#fdd49e", "#fdbb84", "#fc8d59",
	"#ef6548", "#d7301f", "#b30000", "#7f0000",
}

// NaNFill colours regions without data.
const NaNFill = "#000000"

// LinearScale maps a numeric domain onto a colour ramp with evenly spaced
// stops, interpolating in RGB between neighbours.
type LinearScale struct {
	Min, Max float64
	stops    []colorful.Color
	Hex      []string
}

// NewLinearScale builds a scale over [lo, hi]. Invalid hex stops are
// reported as errors.
func NewLinearScale(ramp []string, lo, hi float64) (*LinearScale, error) {
	stops := make([]colorful.Color, len(ramp))
	for i, h := range ramp {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, err
		}
		stops[i] = c
	}
	return &LinearScale{Min: lo, Max: hi, stops: stops, Hex: ramp}, nil
}

// Color returns the hex colour for v. Values outside the domain take the
// nearest end of the ramp.
func (s *LinearScale) Color(v float64) string {
	if len(s.stops) == 0 {
		return NaNFill
	}
	if math.IsNaN(v) || s.Max <= s.Min {
		return s.stops[0].Hex()
	}
	pos := (v - s.Min) / (s.Max - s.Min) * float64(len(s.stops)-1)
	pos = math.Max(0, math.Min(pos, float64(len(s.stops)-1)))
	i := int(math.Floor(pos))
	if i == len(s.stops)-1 {
		return s.stops[i].Hex()
	}
	return s.stops[i].BlendRgb(s.stops[i+1], pos-float64(i)).Clamped().Hex()
}

// Classes splits [lo, hi] into n equal-width classes.
type Classes struct {
	Edges  []float64 `json:"edges"`
	Colors []string  `json:"colors"`
}

// NewClasses builds len(palette) equal-width classes over [lo, hi].
func NewClasses(palette []string, lo, hi float64) Classes {
	n := len(palette)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	return Classes{Edges: edges, Colors: palette}
}

// Index returns the class of v. The last class is closed on the right.
func (c Classes) Index(v float64) int {
	n := len(c.Colors)
	lo, hi := c.Edges[0], c.Edges[n]
	if math.IsNaN(v) || v < lo || v > hi {
		return -1
	}
	if hi == lo {
		return 0
	}
	return min(int((v-lo)/(hi-lo)*float64(n)), n-1)
}

// Color returns the fill for v, or NaNFill when v has no class.
func (c Classes) Color(v float64) string {
	if i := c.Index(v); i >= 0 {
		return c.Colors[i]
	}
	return NaNFill
}
