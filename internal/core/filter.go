package core

import (
	"slices"
	"strconv"
	"strings"
)

// Range is an inclusive numeric interval. NaN never falls inside it.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// UnknownGender labels rows without a gender. Selecting it matches them.
const UnknownGender = "Unknown"

// GenderLabel returns g, or UnknownGender when g is empty.
func GenderLabel(g string) string {
	if g == "" {
		return UnknownGender
	}
	return g
}

// Filter is the sidebar selection.
//
// The two set filters treat an empty selection differently:
//   - Genders == nil means no selection was made and every gender passes;
//     a non-nil empty slice is an explicit empty selection and matches no rows.
//   - States nil or empty means no restriction.
type Filter struct {
	Genders []string
	Amount  Range
	Age     Range
	States  []string
}

// DefaultFilter returns the selection the sidebar starts with: every
// gender, the full amount and age ranges, no state restriction.
func DefaultFilter(d *Dataset) Filter {
	return Filter{
		Amount: d.AmountBounds(),
		Age:    d.AgeBounds(),
	}
}

// Match reports whether t satisfies every predicate of the filter.
func (f Filter) Match(t Transaction) bool {
	if f.Genders != nil && !slices.Contains(f.Genders, GenderLabel(t.Gender)) {
		return false
	}
	if !f.Amount.Contains(t.Amount) {
		return false
	}
	if !f.Age.Contains(t.Age) {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, t.State) {
		return false
	}
	return true
}

// Apply returns the rows matching f, in their original order.
func Apply(rows []Transaction, f Filter) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, t := range rows {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Filter applies f to the whole dataset.
func (d *Dataset) Filter(f Filter) []Transaction {
	return Apply(d.rows, f)
}

// Key returns a canonical string for f, suitable as a cache key. Two
// filters selecting the same rows by the same predicates share a key.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString("g=")
	if f.Genders == nil {
		b.WriteString("*")
	} else {
		b.WriteString("[" + joinSorted(f.Genders) + "]")
	}
	b.WriteString("|a=" + formatRange(f.Amount))
	b.WriteString("|y=" + formatRange(f.Age))
	b.WriteString("|s=")
	if len(f.States) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString("[" + joinSorted(f.States) + "]")
	}
	return b.String()
}

func joinSorted(values []string) string {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), ",")
}

func formatRange(r Range) string {
	return strconv.FormatFloat(r.Min, 'g', -1, 64) + ":" + strconv.FormatFloat(r.Max, 'g', -1, 64)
}
