package geo

import (
	"cmp"
	"math"
	"slices"

	"ccdash/internal/core"
)

// clusterCellPx is the clustering cell size in screen pixels.
const clusterCellPx = 80

// Marker is one merchant pin.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"`
}

// Cluster groups the markers falling into one grid cell at a zoom level.
type Cluster struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Count int     `json:"count"`
}

// Markers is the merchant pin layer over the filtered rows.
type Markers struct {
	View      View      `json:"view"`
	Total     int       `json:"total"`
	Sampled   bool      `json:"sampled"`
	Markers   []Marker  `json:"markers"`
	Zoom      int       `json:"zoom,omitempty"`
	Clusters  []Cluster `json:"clusters,omitempty"`
	Available bool      `json:"available"`
}

// MerchantMarkers places a pin per located row, sampling down to
// SampleSize with a fixed seed. When zoom is positive the pins are also
// grouped into grid clusters for that zoom level.
func MerchantMarkers(ds *core.Dataset, rows []core.Transaction, zoom int) Markers {
	m := Markers{View: centerOf(rows), Markers: []Marker{}, Available: hasCoordinates(ds) && ds.Has(core.ColCategory)}
	if !m.Available {
		return m
	}

	points := located(rows)
	m.Total = len(points)
	if len(points) > SampleSize {
		points = sample(points)
		m.Sampled = true
	}
	m.Markers = make([]Marker, len(points))
	for i, t := range points {
		m.Markers[i] = Marker{Lat: t.MerchLat, Lon: t.MerchLong, Popup: Popup(t)}
	}
	if zoom > 0 {
		m.Zoom = zoom
		m.Clusters = GridCluster(m.Markers, zoom)
	}
	return m
}

// CellDegrees is the width in degrees of a clusterCellPx square at zoom on
// a 256px Web Mercator tile pyramid.
func CellDegrees(zoom int) float64 {
	return 360 / (256 * math.Exp2(float64(zoom))) * clusterCellPx
}

// GridCluster buckets markers into square cells and returns one cluster
// per non-empty cell, positioned at the mean of its members, largest first.
func GridCluster(markers []Marker, zoom int) []Cluster {
	size := CellDegrees(zoom)
	type cell struct{ x, y int }
	type acc struct {
		lat, lon float64
		n        int
	}
	cells := make(map[cell]*acc)
	for _, mk := range markers {
		k := cell{int(math.Floor(mk.Lon / size)), int(math.Floor(mk.Lat / size))}
		a, ok := cells[k]
		if !ok {
			a = &acc{}
			cells[k] = a
		}
		a.lat += mk.Lat
		a.lon += mk.Lon
		a.n++
	}

	out := make([]Cluster, 0, len(cells))
	for _, a := range cells {
		out = append(out, Cluster{Lat: a.lat / float64(a.n), Lon: a.lon / float64(a.n), Count: a.n})
	}
	slices.SortFunc(out, func(a, b Cluster) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Lat, b.Lat); c != 0 {
			return c
		}
		return cmp.Compare(a.Lon, b.Lon)
	})
	return out
}
