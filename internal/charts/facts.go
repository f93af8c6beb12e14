package charts

import (
	"fmt"
	"math"
	"time"

	"ccdash/internal/core"
)

// Top-N slider settings for the states chart.
const (
	MinTopN     = 5
	MaxTopN     = 50
	TopNStep    = 5
	DefaultTopN = 20
)

// MissingLabel names the group of rows with no gender.
const MissingLabel = core.UnknownGender

// Weekdays is the fixed axis of the weekday chart.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Facts is the payload of the descriptive-statistics tab.
type Facts struct {
	Palette    []string `json:"palette"`
	TopN       int      `json:"top_n"`
	Gender     Series   `json:"gender"`
	States     Series   `json:"states"`
	AgeGroups  Series   `json:"age_groups"`
	Categories Series   `json:"categories"`
	Amounts    Series   `json:"amounts"`
	Hours      Series   `json:"hours"`
	Weekdays   Series   `json:"weekdays"`
}

// ClampTopN snaps n onto the slider domain: 5..50 in steps of 5. Zero
// selects the default.
func ClampTopN(n int) int {
	if n == 0 {
		return DefaultTopN
	}
	n = min(max(n, MinTopN), MaxTopN)
	return n - n%TopNStep
}

// BuildFacts computes every chart of the tab over rows. Charts whose
// source column is missing from ds are returned with Available false.
func BuildFacts(ds *core.Dataset, rows []core.Transaction, topN int) Facts {
	topN = ClampTopN(topN)
	f := Facts{
		Palette:   Palette,
		TopN:      topN,
		Gender:    GenderDistribution(rows),
		States:    TopStates(rows, topN),
		AgeGroups: AgeGroups(rows),
		Amounts:   AmountRanges(rows),
	}

	if ds.Has(core.ColCategory) {
		f.Categories = Categories(rows)
	} else {
		f.Categories = unavailable("Fraud Count by Category")
	}

	if ds.Has(core.ColTimestamp) || ds.Has(core.ColTimestampRaw) {
		f.Hours = HourOfDay(rows)
		f.Weekdays = WeekdayCounts(rows)
	} else {
		f.Hours = unavailable("Fraud Count by Hour of Day")
		f.Weekdays = unavailable("Fraud Count by Weekday")
	}
	return f
}

// GenderDistribution counts rows per gender, including a group for rows
// without one.
func GenderDistribution(rows []core.Transaction) Series {
	labels := make([]string, len(rows))
	for i, t := range rows {
		labels[i] = core.GenderLabel(t.Gender)
	}
	return Series{Title: "Gender Distribution", Available: true, Bars: ValueCounts(labels)}
}

// TopStates returns the n states with the most rows.
func TopStates(rows []core.Transaction, n int) Series {
	labels := make([]string, 0, len(rows))
	for _, t := range rows {
		if t.State != "" {
			labels = append(labels, t.State)
		}
	}
	bars := ValueCounts(labels)
	if len(bars) > n {
		bars = bars[:n]
	}
	return Series{
		Title:     fmt.Sprintf("Fraud Count by State (Top %d)", n),
		Available: true,
		Bars:      Normalize(bars),
	}
}

// AgeGroups bins ages; rows with a missing age are skipped.
func AgeGroups(rows []core.Transaction) Series {
	return Series{
		Title:     "Transactions by Age Group",
		Available: true,
		Bars:      AgeBins.Count(column(rows, func(t core.Transaction) float64 { return t.Age })),
	}
}

// AmountRanges bins amounts; rows with a missing amount are skipped.
func AmountRanges(rows []core.Transaction) Series {
	return Series{
		Title:     "Transactions by Amount Range",
		Available: true,
		Bars:      AmountBins.Count(column(rows, func(t core.Transaction) float64 { return t.Amount })),
	}
}

// Categories counts rows per merchant category.
func Categories(rows []core.Transaction) Series {
	labels := make([]string, 0, len(rows))
	for _, t := range rows {
		if t.Category != "" {
			labels = append(labels, t.Category)
		}
	}
	return Series{Title: "Fraud Count by Category", Available: true, Bars: ValueCounts(labels)}
}

// HourOfDay counts rows per hour over every hour between the earliest and
// latest observed one. Rows with a null timestamp are excluded.
func HourOfDay(rows []core.Transaction) Series {
	var counts [24]int
	lo, hi := 24, -1
	for _, t := range rows {
		if !t.Time.Valid {
			continue
		}
		h := t.Time.Hour()
		counts[h]++
		lo, hi = min(lo, h), max(hi, h)
	}
	if hi < 0 {
		return Series{Title: "Fraud Count by Hour of Day", Available: true, Bars: []Bar{}}
	}

	bars := make([]Bar, 0, hi-lo+1)
	for h := lo; h <= hi; h++ {
		bars = append(bars, Bar{Label: fmt.Sprint(h), Count: counts[h]})
	}
	return Series{
		Title:     fmt.Sprintf("Fraud Count by Hour of Day (%d:00 to %d:00)", lo, hi),
		Available: true,
		Bars:      Normalize(bars),
	}
}

// WeekdayCounts counts rows per weekday, Monday first.
func WeekdayCounts(rows []core.Transaction) Series {
	labels := make([]string, 0, len(rows))
	for _, t := range rows {
		if t.Time.Valid {
			labels = append(labels, weekdayName(t.Time.Weekday()))
		}
	}
	return Series{Title: "Fraud Count by Weekday", Available: true, Bars: fixedOrder(Weekdays, labels)}
}

func weekdayName(d time.Weekday) string {
	// time.Weekday starts at Sunday.
	return Weekdays[(int(d)+6)%7]
}

func column(rows []core.Transaction, value func(core.Transaction) float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, t := range rows {
		if v := value(t); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
