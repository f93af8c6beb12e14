package geo

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"ccdash/internal/core"
)

var allColumns = []string{
	core.ColAmount, core.ColGender, core.ColAge, core.ColState,
	core.ColMerchLat, core.ColMerchLong, core.ColCategory,
}

func manyRows(n int) []core.Transaction {
	rows := make([]core.Transaction, n)
	for i := range rows {
		rows[i] = core.Transaction{
			Amount:    float64(i % 500),
			Gender:    "F",
			Age:       40,
			State:     "CA",
			MerchLat:  30 + float64(i%10),
			MerchLong: -100 + float64(i%7),
			Category:  "misc_pos",
		}
	}
	return rows
}

func TestHeatmapsCoverFullDataset(t *testing.T) {
	rows := manyRows(100)
	rows[3].MerchLat = math.NaN()
	rows[4].Amount = math.NaN()
	ds := core.NewDataset(rows, allColumns)

	h := DensityHeatmap(ds)
	if len(h.Points) != 99 || h.Radius != 8 || h.Blur != 10 || h.MinOpacity != 0.3 {
		t.Fatalf("unexpected density heatmap: %d points, %+v", len(h.Points), h.View)
	}

	w := WeightedHeatmap(ds)
	if len(w.Points) != 98 {
		t.Fatalf("weighted points = %d, want 98", len(w.Points))
	}
	top := 0.0
	for _, p := range w.Points {
		if len(p) != 3 || p[2] < 0 || p[2] > 1 {
			t.Fatalf("bad weighted point %v", p)
		}
		top = math.Max(top, p[2])
	}
	if top < 0.999 {
		t.Fatalf("max weight %v, want ~1", top)
	}
}

func TestHeatmapUnavailableWithoutCoordinates(t *testing.T) {
	ds := core.NewDataset(manyRows(5), core.RequiredColumns)
	if DensityHeatmap(ds).Available || WeightedHeatmap(ds).Available {
		t.Fatal("heatmaps should be unavailable without merchant coordinates")
	}
}

func TestMerchantMarkersSampling(t *testing.T) {
	rows := manyRows(5000)
	ds := core.NewDataset(rows, allColumns)

	m := MerchantMarkers(ds, rows, 0)
	if !m.Sampled || m.Total != 5000 || len(m.Markers) != SampleSize {
		t.Fatalf("sampled=%v total=%d markers=%d", m.Sampled, m.Total, len(m.Markers))
	}
	again := MerchantMarkers(ds, rows, 0)
	for i := range m.Markers {
		if m.Markers[i] != again.Markers[i] {
			t.Fatal("sampling must be deterministic")
		}
	}
	if m.Clusters != nil {
		t.Fatal("clusters only requested with a zoom")
	}

	few := MerchantMarkers(ds, rows[:3], 0)
	if few.Sampled || len(few.Markers) != 3 {
		t.Fatalf("small sets must not be sampled: %+v", few)
	}
	if few.Markers[1].Popup != "misc_pos $1.00" {
		t.Fatalf("popup = %q", few.Markers[1].Popup)
	}
}

func TestGridClusterConservesMarkers(t *testing.T) {
	rows := manyRows(700)
	ds := core.NewDataset(rows, allColumns)
	for _, zoom := range []int{1, 4, 8, 14} {
		m := MerchantMarkers(ds, rows, zoom)
		total := 0
		for _, c := range m.Clusters {
			total += c.Count
		}
		if total != len(m.Markers) {
			t.Fatalf("zoom %d: clusters hold %d markers, want %d", zoom, total, len(m.Markers))
		}
	}
	if CellDegrees(2) >= CellDegrees(1) {
		t.Fatal("cells must shrink as zoom grows")
	}
}

func TestProportionalCircles(t *testing.T) {
	rows := manyRows(200)
	rows[0].Amount = 100000
	ds := core.NewDataset(rows, allColumns)

	c, err := ProportionalCircles(ds, rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Circles) != 200 || c.Legend.Caption != "Transaction Amount" {
		t.Fatalf("circles=%d legend=%+v", len(c.Circles), c.Legend)
	}
	if c.Legend.Max >= 100000 {
		t.Fatalf("outlier was not clipped: %v", c.Legend.Max)
	}
	for _, circle := range c.Circles {
		if circle.Radius < 2 || circle.Radius > 10 {
			t.Fatalf("radius out of [2,10]: %+v", circle)
		}
		if !strings.HasPrefix(circle.Color, "#") || len(circle.Color) != 7 {
			t.Fatalf("bad colour %q", circle.Color)
		}
	}
	if c.Circles[0].Color != "#7f0000" {
		t.Fatalf("clipped maximum should take the darkest stop, got %s", c.Circles[0].Color)
	}
}

func TestLinearScaleEnds(t *testing.T) {
	s, err := NewLinearScale(OrRd9, 10, 90)
	if err != nil {
		t.Fatal(err)
	}
	tests := map[float64]string{0: "#fff7ec", 10: "#fff7ec", 20: "#fee8c8", 90: "#7f0000", 200: "#7f0000"}
	for v, want := range tests {
		if got := s.Color(v); got != want {
			t.Errorf("Color(%v) = %s, want %s", v, got, want)
		}
	}
	if _, err := NewLinearScale([]string{"nope"}, 0, 1); err == nil {
		t.Error("expected an error for an invalid stop")
	}
}

func TestClasses(t *testing.T) {
	c := NewClasses(YlOrRd6, 0, 60)
	tests := map[float64]int{0: 0, 9.9: 0, 10: 1, 59: 5, 60: 5, -1: -1, 61: -1}
	for v, want := range tests {
		if got := c.Index(v); got != want {
			t.Errorf("Index(%v) = %d, want %d", v, got, want)
		}
	}
	if c.Color(math.NaN()) != NaNFill {
		t.Error("NaN must use the nan fill")
	}
}

const boundariesJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"CA","properties":{"name":"California"},
  "geometry":{"type":"Polygon","coordinates":[[[-120,40],[-118,40],[-118,34],[-120,34]]]}},
 {"type":"Feature","id":"HI","properties":{"name":"Hawaii"},
  "geometry":{"type":"MultiPolygon","coordinates":[[[[-156,20],[-154,20],[-155,22]]],[[[-160,22],[-159,22],[-159,21]]]]}},
 {"type":"Feature","id":"XX","properties":{"name":"Nowhere"},
  "geometry":{"type":"Point","coordinates":[0,0]}}
]}`

func TestBuildChoropleth(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(boundariesJSON))
	if err != nil {
		t.Fatal(err)
	}
	rows := []core.Transaction{{State: "CA"}, {State: "CA"}, {State: "NY"}}

	c := BuildChoropleth(rows, fc)
	if c.Counts["CA"] != 2 || c.Counts["NY"] != 1 {
		t.Fatalf("counts = %v", c.Counts)
	}
	if c.LegendName != "Fraud Count" || c.FillOpacity != 0.7 || c.LineOpacity != 0.2 {
		t.Fatalf("unexpected styling: %+v", c)
	}
	if len(c.Boundaries.Features) != 3 {
		t.Fatalf("features = %d", len(c.Boundaries.Features))
	}

	ca := c.Boundaries.Features[0]
	if ca.Properties[PropCount] != 2 || ca.Properties[PropFillColor] != YlOrRd6[5] {
		t.Fatalf("CA properties = %v", ca.Properties)
	}
	if ca.Properties["name"] != "California" {
		t.Fatal("source properties must be carried over")
	}
	hi := c.Boundaries.Features[1]
	if hi.Properties[PropFillColor] != NaNFill || hi.Properties[PropCount] != nil {
		t.Fatalf("unmatched state should use the nan fill: %v", hi.Properties)
	}
	if _, ok := fc.Features[0].Properties[PropCount]; ok {
		t.Fatal("source collection must not be modified")
	}

	if len(c.Labels) != 2 {
		t.Fatalf("labels = %+v", c.Labels)
	}
	if l := c.Labels[0]; l.ID != "CA" || l.Lat != 37 || l.Lon != -119 {
		t.Fatalf("CA label = %+v", l)
	}
	if l := c.Labels[1]; l.ID != "HI" || l.Lat != 62.0/3 || l.Lon != -155 {
		t.Fatalf("HI label = %+v", l)
	}

	if _, err := json.Marshal(c); err != nil {
		t.Fatalf("choropleth must encode: %v", err)
	}
}

func TestRingCentroidRejectsEmpty(t *testing.T) {
	if _, _, ok := RingCentroid(orb.Polygon{}); ok {
		t.Fatal("empty polygon has no centroid")
	}
	if _, _, ok := RingCentroid(orb.LineString{{0, 0}}); ok {
		t.Fatal("line strings have no label")
	}
}
