package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// KPIs are the four dashboard tiles computed over the filtered rows.
// Means are NaN when no row contributes to them.
type KPIs struct {
	TotalTransactions int
	TotalAmount       decimal.Decimal
	AverageAmount     float64
	AverageAge        float64
}

// ComputeKPIs reduces rows to the dashboard tiles. Missing amounts and
// ages are skipped by the sums and means.
func ComputeKPIs(rows []Transaction) KPIs {
	total := decimal.Zero
	amounts := 0
	var ageSum float64
	ages := 0
	for _, t := range rows {
		if !math.IsNaN(t.Amount) {
			total = total.Add(decimal.NewFromFloat(t.Amount))
			amounts++
		}
		if !math.IsNaN(t.Age) {
			ageSum += t.Age
			ages++
		}
	}

	k := KPIs{
		TotalTransactions: len(rows),
		TotalAmount:       total,
		AverageAmount:     math.NaN(),
		AverageAge:        math.NaN(),
	}
	if amounts > 0 {
		k.AverageAmount = total.Div(decimal.NewFromInt(int64(amounts))).InexactFloat64()
	}
	if ages > 0 {
		k.AverageAge = ageSum / float64(ages)
	}
	return k
}
