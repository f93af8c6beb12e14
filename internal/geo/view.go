// Package geo builds the map layers of the dashboard: heatmaps, merchant
// markers, the state choropleth and proportional circles. Every function
// is a pure transform over transaction rows; the browser only draws.
package geo

import (
	"fmt"
	"math"

	"ccdash/internal/core"
	"ccdash/internal/stats"
)

// Base map settings shared by every layer.
const (
	Tiles       = "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png"
	Attribution = "&copy; OpenStreetMap contributors &copy; CARTO"

	DefaultZoom = 5

	// SampleSize caps the number of point markers sent to the browser.
	SampleSize = 3000
	SampleSeed = 42

	// ClipQuantile bounds the influence of outlier amounts.
	ClipQuantile = 0.99
)

// View positions the base map.
type View struct {
	Center      [2]float64 `json:"center"`
	Zoom        int        `json:"zoom"`
	Tiles       string     `json:"tiles"`
	Attribution string     `json:"attribution"`
}

func newView(lat, lon float64, zoom int) View {
	return View{Center: [2]float64{lat, lon}, Zoom: zoom, Tiles: Tiles, Attribution: Attribution}
}

// centerOf returns a view centred on the mean merchant location. With no
// located rows it falls back to the continental US.
func centerOf(rows []core.Transaction) View {
	lats := make([]float64, 0, len(rows))
	lons := make([]float64, 0, len(rows))
	for _, t := range rows {
		if t.HasLocation() {
			lats = append(lats, t.MerchLat)
			lons = append(lons, t.MerchLong)
		}
	}
	lat, lon := stats.Mean(lats), stats.Mean(lons)
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return newView(USCenter[0], USCenter[1], DefaultZoom)
	}
	return newView(lat, lon, DefaultZoom)
}

// located returns the rows with merchant coordinates, an amount and a
// category.
func located(rows []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(rows))
	for _, t := range rows {
		if t.HasLocation() && !math.IsNaN(t.Amount) && t.Category != "" {
			out = append(out, t)
		}
	}
	return out
}

// sample picks at most SampleSize rows deterministically.
func sample(rows []core.Transaction) []core.Transaction {
	idx := stats.SampleIndices(len(rows), SampleSize, SampleSeed)
	out := make([]core.Transaction, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// Popup is the marker caption, e.g. "grocery_pos $12.50".
func Popup(t core.Transaction) string {
	return fmt.Sprintf("%s $%.2f", t.Category, t.Amount)
}
