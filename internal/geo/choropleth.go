package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"ccdash/internal/core"
)

// USCenter and ChoroplethZoom frame the contiguous United States.
var USCenter = [2]float64{37.8, -96}

const (
	ChoroplethZoom = 4
	FillOpacity    = 0.7
	LineOpacity    = 0.2
)

// Feature property keys written on every boundary.
const (
	PropCount     = "count"
	PropFillColor = "fill_color"
)

// Label is a state identifier drawn at the centre of its outline.
type Label struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Choropleth shades each state boundary by the number of filtered rows in
// that state.
type Choropleth struct {
	View        View                       `json:"view"`
	Title       string                     `json:"title"`
	LegendName  string                     `json:"legend_name"`
	FillOpacity float64                    `json:"fill_opacity"`
	LineOpacity float64                    `json:"line_opacity"`
	NaNFill     string                     `json:"nan_fill_color"`
	Classes     Classes                    `json:"classes"`
	Counts      map[string]int             `json:"counts"`
	Boundaries  *geojson.FeatureCollection `json:"boundaries"`
	Labels      []Label                    `json:"labels"`
}

// StateCounts counts rows per non-empty state.
func StateCounts(rows []core.Transaction) map[string]int {
	counts := make(map[string]int)
	for _, t := range rows {
		if t.State != "" {
			counts[t.State]++
		}
	}
	return counts
}

// BuildChoropleth joins per-state counts to the boundaries by feature id.
// The input collection is not modified: the result carries new features
// that share the source geometries. Features without a matching count get
// the NaN fill.
func BuildChoropleth(rows []core.Transaction, boundaries *geojson.FeatureCollection) Choropleth {
	counts := StateCounts(rows)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, n := range counts {
		lo = math.Min(lo, float64(n))
		hi = math.Max(hi, float64(n))
	}
	if len(counts) == 0 {
		lo, hi = 0, 0
	}
	classes := NewClasses(YlOrRd6, lo, hi)

	c := Choropleth{
		View:        newView(USCenter[0], USCenter[1], ChoroplethZoom),
		Title:       "US Fraud Count by State",
		LegendName:  "Fraud Count",
		FillOpacity: FillOpacity,
		LineOpacity: LineOpacity,
		NaNFill:     NaNFill,
		Classes:     classes,
		Counts:      counts,
		Boundaries:  geojson.NewFeatureCollection(),
		Labels:      []Label{},
	}

	for _, src := range boundaries.Features {
		id := FeatureID(src)
		f := geojson.NewFeature(src.Geometry)
		f.ID = src.ID
		for k, v := range src.Properties {
			f.Properties[k] = v
		}
		if n, ok := counts[id]; ok && len(counts) > 0 {
			f.Properties[PropCount] = n
			f.Properties[PropFillColor] = classes.Color(float64(n))
		} else {
			f.Properties[PropCount] = nil
			f.Properties[PropFillColor] = NaNFill
		}
		c.Boundaries.Append(f)

		if lat, lon, ok := RingCentroid(src.Geometry); ok && id != "" {
			c.Labels = append(c.Labels, Label{ID: id, Lat: lat, Lon: lon})
		}
	}
	return c
}

// FeatureID returns the feature id as a string, or "" when absent.
func FeatureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// RingCentroid averages the vertices of the first ring of a polygon, or of
// the first polygon of a multipolygon. Other geometries have no label.
func RingCentroid(g orb.Geometry) (lat, lon float64, ok bool) {
	var ring orb.Ring
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return 0, 0, false
		}
		ring = geom[0]
	case orb.MultiPolygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return 0, 0, false
		}
		ring = geom[0][0]
	default:
		return 0, 0, false
	}
	if len(ring) == 0 {
		return 0, 0, false
	}
	for _, p := range ring {
		lon += p.Lon()
		lat += p.Lat()
	}
	n := float64(len(ring))
	return lat / n, lon / n, true
}
