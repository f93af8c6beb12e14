// Package core provides the transaction table, the filter engine and the
// KPI reduction.
//
// This file formats KPI values the way the dashboard tiles show them.
package core

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// KPIView is the presentation of KPIs: display strings for the tiles and
// nullable raw values for JSON clients.
type KPIView struct {
	TotalTransactions string     `json:"total_transactions"`
	TotalAmount       string     `json:"total_amount"`
	AverageAmount     string     `json:"average_amount"`
	AverageAge        string     `json:"average_age"`
	Raw               KPIRawView `json:"raw"`
}

// KPIRawView carries unformatted values; missing means are null.
type KPIRawView struct {
	Count         int      `json:"count"`
	Sum           string   `json:"sum"`
	AverageAmount *float64 `json:"average_amount"`
	AverageAge    *float64 `json:"average_age"`
}

// View formats k for display.
func (k KPIs) View() KPIView {
	total, _ := k.TotalAmount.Float64()
	return KPIView{
		TotalTransactions: FormatCount(k.TotalTransactions),
		TotalAmount:       FormatDollars(total, 0),
		AverageAmount:     FormatDollars(k.AverageAmount, 2),
		AverageAge:        FormatAge(k.AverageAge),
		Raw: KPIRawView{
			Count:         k.TotalTransactions,
			Sum:           k.TotalAmount.StringFixed(2),
			AverageAmount: nullable(k.AverageAmount),
			AverageAge:    nullable(k.AverageAge),
		},
	}
}

// FormatCount renders n with thousands separators, e.g. 1,234.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatDollars renders v as a dollar amount with thousands separators
// and 0 or 2 decimals.
func FormatDollars(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "$nan"
	}
	if decimals == 0 {
		return printer.Sprintf("$%.0f", v)
	}
	return printer.Sprintf("$%.2f", v)
}

// FormatAge renders a mean age with one decimal, e.g. 41.3 yrs.
func FormatAge(v float64) string {
	if math.IsNaN(v) {
		return "nan yrs"
	}
	return printer.Sprintf("%.1f yrs", v)
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
