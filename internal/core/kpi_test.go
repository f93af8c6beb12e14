package core

import (
	"math"
	"testing"
)

func TestComputeKPIs(t *testing.T) {
	rows := []Transaction{
		{Amount: 10.10, Age: 30},
		{Amount: 20.20, Age: 40},
		{Amount: 30.30, Age: math.NaN()},
	}
	k := ComputeKPIs(rows)

	if k.TotalTransactions != 3 {
		t.Fatalf("count = %d", k.TotalTransactions)
	}
	if got := k.TotalAmount.StringFixed(2); got != "60.60" {
		t.Fatalf("sum = %s", got)
	}
	if k.AverageAmount != 20.20 {
		t.Fatalf("average amount = %v", k.AverageAmount)
	}
	if k.AverageAge != 35 {
		t.Fatalf("average age = %v (missing ages must be skipped)", k.AverageAge)
	}
}

func TestComputeKPIsAverageIsSumOverCount(t *testing.T) {
	rows := sampleRows()
	k := ComputeKPIs(rows)
	sum, _ := k.TotalAmount.Float64()
	want := sum / float64(k.TotalTransactions)
	if math.Abs(k.AverageAmount-want) > 1e-9 {
		t.Fatalf("average %v, want %v", k.AverageAmount, want)
	}
}

func TestComputeKPIsEmptyIsNaN(t *testing.T) {
	k := ComputeKPIs(nil)
	if k.TotalTransactions != 0 || !k.TotalAmount.IsZero() {
		t.Fatalf("unexpected totals: %+v", k)
	}
	if !math.IsNaN(k.AverageAmount) || !math.IsNaN(k.AverageAge) {
		t.Fatalf("expected NaN means, got %v / %v", k.AverageAmount, k.AverageAge)
	}

	v := k.View()
	if v.AverageAmount != "$nan" || v.AverageAge != "nan yrs" {
		t.Fatalf("unexpected empty view: %+v", v)
	}
	if v.Raw.AverageAmount != nil || v.Raw.AverageAge != nil {
		t.Fatalf("NaN means must be null in raw view")
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"count with separators", FormatCount(1234567), "1,234,567"},
		{"small count", FormatCount(42), "42"},
		{"dollars two decimals", FormatDollars(12.3, 2), "$12.30"},
		{"dollars rounded", FormatDollars(99.6, 0), "$100"},
		{"dollars nan", FormatDollars(math.NaN(), 0), "$nan"},
		{"age", FormatAge(41.26), "41.3 yrs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
