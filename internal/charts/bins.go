package charts

import "math"

// BinTable maps numeric values onto labelled intervals.
//
// With RightClosed the intervals are (e[i], e[i+1]], and IncludeLowest
// additionally admits the first edge. Otherwise they are [e[i], e[i+1]).
type BinTable struct {
	Edges         []float64
	Labels        []string
	RightClosed   bool
	IncludeLowest bool
}

// AgeBins groups customer ages.
var AgeBins = BinTable{
	Edges:         []float64{0, 18, 25, 35, 45, 55, 65, 75, 120},
	Labels:        []string{"0-17", "18-24", "25-34", "35-44", "45-54", "55-64", "65-74", "75+"},
	RightClosed:   true,
	IncludeLowest: true,
}

// AmountBins groups transaction amounts.
var AmountBins = BinTable{
	Edges:  []float64{0, 10, 25, 50, 100, 200, 500, 1000, math.Inf(1)},
	Labels: []string{"0-10", "10-25", "25-50", "50-100", "100-200", "200-500", "500-1000", "1000+"},
}

// Index returns the bin holding v, or -1 when v is NaN or outside the
// table.
func (b BinTable) Index(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	for i := 0; i+1 < len(b.Edges); i++ {
		lo, hi := b.Edges[i], b.Edges[i+1]
		var in bool
		if b.RightClosed {
			in = v > lo && v <= hi
			if i == 0 && b.IncludeLowest && v == lo {
				in = true
			}
		} else {
			in = v >= lo && v < hi
		}
		if in {
			return i
		}
	}
	return -1
}

// Count bins every value. Values outside the table are dropped.
func (b BinTable) Count(values []float64) []Bar {
	bars := make([]Bar, len(b.Labels))
	for i, l := range b.Labels {
		bars[i].Label = l
	}
	for _, v := range values {
		if i := b.Index(v); i >= 0 {
			bars[i].Count++
		}
	}
	return Normalize(bars)
}
