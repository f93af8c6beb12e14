// Package charts turns transaction rows into the grouped and binned count
// series drawn on the descriptive-statistics tab.
package charts

import (
	"cmp"
	"slices"
)

// Palette is the nine-colour scheme applied to every bar and pie chart.
var Palette = []string{
	"#C2D5D7", "#859D9B", "#5B868A", "#3B848D", "#317178",
	"#32666C", "#24575D", "#133639", "#1E484D",
}

// Bar is one group of a count series.
type Bar struct {
	Label     string  `json:"label"`
	Count     int     `json:"count"`
	CountNorm float64 `json:"count_norm"`
}

// Series is a titled, ordered list of bars. Available is false when the
// columns the series needs are absent from the dataset.
type Series struct {
	Title     string `json:"title"`
	Available bool   `json:"available"`
	Bars      []Bar  `json:"bars"`
}

// Total returns the sum of all bar counts.
func (s Series) Total() int {
	n := 0
	for _, b := range s.Bars {
		n += b.Count
	}
	return n
}

func unavailable(title string) Series {
	return Series{Title: title, Bars: []Bar{}}
}

// Normalize sets CountNorm to count/max for every bar. When the maximum is
// zero every bar gets 0.
func Normalize(bars []Bar) []Bar {
	top := 0
	for _, b := range bars {
		top = max(top, b.Count)
	}
	for i := range bars {
		if top == 0 {
			bars[i].CountNorm = 0
			continue
		}
		bars[i].CountNorm = float64(bars[i].Count) / float64(top)
	}
	return bars
}

// ValueCounts groups labels and orders them by descending count, breaking
// ties by label so that the output is stable.
func ValueCounts(labels []string) []Bar {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	bars := make([]Bar, 0, len(counts))
	for l, n := range counts {
		bars = append(bars, Bar{Label: l, Count: n})
	}
	slices.SortFunc(bars, func(a, b Bar) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return Normalize(bars)
}

// fixedOrder counts labels into a predeclared axis, keeping empty groups.
func fixedOrder(axis []string, labels []string) []Bar {
	index := make(map[string]int, len(axis))
	bars := make([]Bar, len(axis))
	for i, l := range axis {
		index[l] = i
		bars[i].Label = l
	}
	for _, l := range labels {
		if i, ok := index[l]; ok {
			bars[i].Count++
		}
	}
	return Normalize(bars)
}
