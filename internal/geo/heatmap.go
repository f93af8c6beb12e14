package geo

import (
	"math"

	"ccdash/internal/core"
	"ccdash/internal/stats"
)

// Heatmap rendering options passed to the browser layer.
const (
	HeatRadius     = 8
	HeatBlur       = 10
	HeatMinOpacity = 0.3
	HeatMax        = 1.0
)

// Heatmap is a point density layer. Each point is [lat, lon] or, for the
// weighted variant, [lat, lon, weight] with weight in [0, 1].
type Heatmap struct {
	View       View        `json:"view"`
	Weighted   bool        `json:"weighted"`
	Radius     int         `json:"radius"`
	Blur       int         `json:"blur"`
	MinOpacity float64     `json:"min_opacity"`
	Max        float64     `json:"max"`
	Points     [][]float64 `json:"points"`
	Available  bool        `json:"available"`
}

func newHeatmap(rows []core.Transaction, weighted bool) Heatmap {
	return Heatmap{
		View:       centerOf(rows),
		Weighted:   weighted,
		Radius:     HeatRadius,
		Blur:       HeatBlur,
		MinOpacity: HeatMinOpacity,
		Max:        HeatMax,
		Points:     [][]float64{},
		Available:  true,
	}
}

// DensityHeatmap places one point per located merchant. It is drawn over
// the whole dataset, not the filtered view.
func DensityHeatmap(ds *core.Dataset) Heatmap {
	h := newHeatmap(ds.Rows(), false)
	if !hasCoordinates(ds) {
		h.Available = false
		return h
	}
	for _, t := range ds.Rows() {
		if t.HasLocation() {
			h.Points = append(h.Points, []float64{t.MerchLat, t.MerchLong})
		}
	}
	return h
}

// WeightedHeatmap weights each located merchant by its amount, clipped at
// the 99th percentile and min-max scaled onto [0, 1].
func WeightedHeatmap(ds *core.Dataset) Heatmap {
	h := newHeatmap(ds.Rows(), true)
	if !hasCoordinates(ds) {
		h.Available = false
		return h
	}
	var lats, lons, amounts []float64
	for _, t := range ds.Rows() {
		if t.HasLocation() && !math.IsNaN(t.Amount) {
			lats = append(lats, t.MerchLat)
			lons = append(lons, t.MerchLong)
			amounts = append(amounts, t.Amount)
		}
	}
	weights := stats.ClipAndNormalize(amounts, ClipQuantile)
	h.Points = make([][]float64, len(weights))
	for i, w := range weights {
		h.Points[i] = []float64{lats[i], lons[i], w}
	}
	return h
}

func hasCoordinates(ds *core.Dataset) bool {
	return ds.Has(core.ColMerchLat) && ds.Has(core.ColMerchLong)
}
