package geo

import (
	"fmt"

	"ccdash/internal/core"
	"ccdash/internal/stats"
)

// Circle radius bounds in pixels and fill opacity.
const (
	CircleMinRadius  = 2
	CircleRadiusSpan = 8
	CircleOpacity    = 0.6
)

// Circle is a merchant drawn with size and colour proportional to the
// transaction amount.
type Circle struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
	Popup  string  `json:"popup"`
}

// Legend describes the colour scale drawn on the map.
type Legend struct {
	Caption string   `json:"caption"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Colors  []string `json:"colors"`
}

// Circles is the proportional-circle layer over the filtered rows.
type Circles struct {
	View        View     `json:"view"`
	Circles     []Circle `json:"circles"`
	FillOpacity float64  `json:"fill_opacity"`
	Legend      Legend   `json:"legend"`
	Available   bool     `json:"available"`
}

// ProportionalCircles samples at most SampleSize located rows, clips their
// amounts at the sample's 99th percentile and maps each clipped value v
// onto radius 2 + 8*(v-vmin)/(vmax-vmin+eps) and the OrRd ramp.
func ProportionalCircles(ds *core.Dataset, rows []core.Transaction) (Circles, error) {
	c := Circles{
		View:        centerOf(rows),
		Circles:     []Circle{},
		FillOpacity: CircleOpacity,
		Legend:      Legend{Caption: "Transaction Amount", Colors: OrRd9},
		Available:   hasCoordinates(ds) && ds.Has(core.ColCategory),
	}
	if !c.Available {
		return c, nil
	}

	points := sample(located(rows))
	if len(points) == 0 {
		return c, nil
	}

	amounts := make([]float64, len(points))
	for i, t := range points {
		amounts[i] = t.Amount
	}
	clipped := stats.ClipUpper(amounts, stats.Quantile(amounts, ClipQuantile))
	vmin, vmax := stats.MinMax(clipped)

	scale, err := NewLinearScale(OrRd9, vmin, vmax)
	if err != nil {
		return c, fmt.Errorf("circle colour scale: %w", err)
	}
	c.Legend.Min, c.Legend.Max = vmin, vmax

	c.Circles = make([]Circle, len(points))
	for i, t := range points {
		v := clipped[i]
		c.Circles[i] = Circle{
			Lat:    t.MerchLat,
			Lon:    t.MerchLong,
			Radius: CircleMinRadius + CircleRadiusSpan*stats.Scale(v, vmin, vmax),
			Color:  scale.Color(v),
			Popup:  Popup(t),
		}
	}
	return c, nil
}
