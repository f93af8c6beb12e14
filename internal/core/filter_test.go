package core

import (
	"math"
	"slices"
	"testing"
)

func TestFilterPredicatesHoldForEveryRow(t *testing.T) {
	d := sampleDataset()
	f := Filter{
		Genders: []string{"M"},
		Amount:  Range{Min: 0, Max: 50},
		Age:     Range{Min: 18, Max: 65},
	}

	got := d.Filter(f)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(got), got)
	}
	for _, row := range got {
		if row.Gender != "M" || row.Amount > 50 || row.Age < 18 || row.Age > 65 {
			t.Fatalf("row violates filter: %+v", row)
		}
	}
	if k := ComputeKPIs(got); k.TotalTransactions != len(got) {
		t.Fatalf("KPI total %d != %d", k.TotalTransactions, len(got))
	}
}

func TestDefaultFilterKeepsEveryCompleteRow(t *testing.T) {
	d := sampleDataset()
	got := d.Filter(DefaultFilter(d))
	// The row with a missing age never satisfies an age range.
	if len(got) != d.Len()-1 {
		t.Fatalf("expected %d rows, got %d", d.Len()-1, len(got))
	}
}

func TestFilterEmptySelections(t *testing.T) {
	d := sampleDataset()
	base := DefaultFilter(d)
	base.Age = Range{Min: math.Inf(-1), Max: math.Inf(1)}

	tests := []struct {
		name    string
		genders []string
		states  []string
		want    int
	}{
		{name: "no gender selection passes everything", genders: nil, want: 5},
		{name: "explicit empty gender selection matches nothing", genders: []string{}, want: 0},
		{name: "empty state selection is no restriction", genders: nil, states: []string{}, want: 5},
		{name: "state selection restricts", genders: nil, states: []string{"CA", "NY"}, want: 3},
		{name: "gender and state combine", genders: []string{"F"}, states: []string{"CA"}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			f.Genders = tt.genders
			f.States = tt.states
			if got := len(d.Filter(f)); got != tt.want {
				t.Errorf("got %d rows, want %d", got, tt.want)
			}
		})
	}
}

func TestRangeIsInclusiveAndRejectsNaN(t *testing.T) {
	r := Range{Min: 18, Max: 65}
	for _, v := range []float64{18, 40, 65} {
		if !r.Contains(v) {
			t.Errorf("expected %v inside %+v", v, r)
		}
	}
	for _, v := range []float64{17.99, 65.01, math.NaN()} {
		if r.Contains(v) {
			t.Errorf("expected %v outside %+v", v, r)
		}
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	rows := sampleRows()
	got := Apply(rows, Filter{Amount: Range{Min: 0, Max: 1000}, Age: Range{Min: 0, Max: 100}, States: []string{"CA"}})
	if len(got) != 2 || got[0].Amount != 12.5 || got[1].Amount != 820.1 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestFilterKey(t *testing.T) {
	a := Filter{Genders: []string{"M", "F"}, Amount: Range{0, 50}, Age: Range{18, 65}, States: []string{"NY", "CA"}}
	b := Filter{Genders: []string{"F", "M"}, Amount: Range{0, 50}, Age: Range{18, 65}, States: []string{"CA", "NY", "CA"}}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}

	all := Filter{Genders: nil}
	none := Filter{Genders: []string{}}
	if all.Key() == none.Key() {
		t.Fatalf("nil and empty gender selections must not share a key: %q", all.Key())
	}

	// Key must not reorder the caller's slice.
	if !slices.Equal(a.Genders, []string{"M", "F"}) {
		t.Fatalf("Key mutated input: %v", a.Genders)
	}
}

func TestBlankGenderIsSelectable(t *testing.T) {
	rows := append(sampleRows(), Transaction{Amount: 20, Age: 40, State: "CA"})
	d := NewDataset(rows, []string{ColAmount, ColGender, ColAge, ColState})

	genders := d.Genders()
	if !slices.Equal(genders, []string{"F", "M", UnknownGender}) {
		t.Fatalf("Genders() = %v", genders)
	}

	// Ticking every listed option keeps the same rows as no selection.
	all := DefaultFilter(d)
	ticked := all
	ticked.Genders = genders
	if got, want := len(d.Filter(ticked)), len(d.Filter(all)); got != want {
		t.Fatalf("every option ticked gives %d rows, no selection gives %d", got, want)
	}

	only := all
	only.Genders = []string{UnknownGender}
	got := d.Filter(only)
	if len(got) != 1 || got[0].Gender != "" {
		t.Fatalf("Unknown selection = %+v", got)
	}
}
