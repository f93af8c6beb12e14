package core

import (
	"errors"
	"math"
	"slices"
	"time"
)

// Column names expected in the transactions dataset.
const (
	ColAmount    = "amt"
	ColGender    = "gender"
	ColAge       = "age"
	ColState     = "state"
	ColMerchLat  = "merch_lat"
	ColMerchLong = "merch_long"
	ColCategory  = "category"
	ColFraud     = "is_fraud"
	ColTimestamp = "trans_datetime"

	// ColTimestampRaw is the unprocessed timestamp column used when
	// trans_datetime is absent.
	ColTimestampRaw = "trans_date_trans_time"
)

// RequiredColumns are the columns the filter engine reads unconditionally.
var RequiredColumns = []string{ColAmount, ColGender, ColAge, ColState}

type (
	// Timestamp is a transaction time that may be null after coercion.
	Timestamp struct {
		time.Time
		Valid bool
	}

	// Transaction is one row of the dataset. Numeric fields hold NaN when
	// the source value was missing or could not be coerced.
	Transaction struct {
		Amount    float64
		Gender    string
		Age       float64
		State     string
		MerchLat  float64
		MerchLong float64
		Category  string
		IsFraud   bool
		Time      Timestamp
	}

	// Dataset is the immutable table loaded at startup.
	Dataset struct {
		rows    []Transaction
		columns map[string]bool
	}
)

var (
	ErrNegativeAmount = errors.New("negative amount")
	ErrNegativeAge    = errors.New("negative age")
)

// HasLocation reports whether both merchant coordinates are present.
func (t Transaction) HasLocation() bool {
	return !math.IsNaN(t.MerchLat) && !math.IsNaN(t.MerchLong)
}

// Validate checks the row-level invariants. Missing (NaN) values pass.
func (t Transaction) Validate() error {
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	if t.Age < 0 {
		return ErrNegativeAge
	}
	return nil
}

// NewDataset wraps rows and the header columns that were present.
func NewDataset(rows []Transaction, columns []string) *Dataset {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	return &Dataset{rows: rows, columns: cols}
}

// Rows returns the underlying rows. Callers must not modify the slice.
func (d *Dataset) Rows() []Transaction {
	return d.rows
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Has reports whether the named column was present in the source header.
func (d *Dataset) Has(column string) bool {
	return d.columns[column]
}

// Columns returns the present columns in sorted order.
func (d *Dataset) Columns() []string {
	out := make([]string, 0, len(d.columns))
	for c := range d.columns {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Genders returns the distinct genders, sorted. Rows without one are
// listed as UnknownGender.
func (d *Dataset) Genders() []string {
	return distinct(d.rows, func(t Transaction) string { return GenderLabel(t.Gender) })
}

// States returns the distinct non-empty states, sorted.
func (d *Dataset) States() []string {
	return distinct(d.rows, func(t Transaction) string { return t.State })
}

// AmountBounds returns the slider bounds for the amount column.
func (d *Dataset) AmountBounds() Range {
	return bounds(d.rows, func(t Transaction) float64 { return t.Amount })
}

// AgeBounds returns the slider bounds for the age column.
func (d *Dataset) AgeBounds() Range {
	return bounds(d.rows, func(t Transaction) float64 { return t.Age })
}

// FraudCount returns the number of rows flagged as fraudulent.
func (d *Dataset) FraudCount() int {
	n := 0
	for _, t := range d.rows {
		if t.IsFraud {
			n++
		}
	}
	return n
}

func distinct(rows []Transaction, key func(Transaction) string) []string {
	seen := make(map[string]struct{})
	for _, t := range rows {
		if k := key(t); k != "" {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// bounds widens the observed min/max to whole numbers so that the default
// range always contains every non-missing value.
func bounds(rows []Transaction, value func(Transaction) float64) Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range rows {
		v := value(t)
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return Range{}
	}
	return Range{Min: math.Floor(lo), Max: math.Ceil(hi)}
}
