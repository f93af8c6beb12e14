// Package dataset loads the transactions CSV into an immutable
// core.Dataset. Values that cannot be coerced become missing instead of
// failing the load; only a missing source or a missing required column is
// an error.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ccdash/internal/core"
	"ccdash/internal/sources"
)

var (
	// ErrNotFound is returned when the source has no dataset.
	ErrNotFound = sources.ErrNotFound
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmpty is returned when the source has no header row.
	ErrEmpty = errors.New("dataset is empty")
)

// timestampLayouts are tried in order when coercing timestamps.
var timestampLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	time.DateOnly,
}

// Report summarises what the loader had to coerce.
type Report struct {
	Rows              int
	TimestampColumn   string
	InvalidTimestamps int
	InvalidNumbers    int
	NegativeValues    int
}

// Load reads every row from r and parses it.
func Load(ctx context.Context, r sources.RowReader) (*core.Dataset, Report, error) {
	rows, err := r.ReadRows(ctx)
	if err != nil {
		return nil, Report{}, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(rows)
}

// Parse converts a header row plus records into a dataset.
func Parse(rows [][]string) (*core.Dataset, Report, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, Report{}, ErrEmpty
	}

	header := normalizeHeader(rows[0])
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	var missing []string
	for _, c := range core.RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, Report{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	p := parser{idx: idx}
	if _, ok := idx[core.ColTimestamp]; ok {
		p.timestampCol = core.ColTimestamp
	} else if _, ok := idx[core.ColTimestampRaw]; ok {
		p.timestampCol = core.ColTimestampRaw
	}

	out := make([]core.Transaction, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		if isBlank(rec) {
			continue
		}
		out = append(out, p.transaction(rec))
	}

	p.report.Rows = len(out)
	p.report.TimestampColumn = p.timestampCol
	return core.NewDataset(out, header), p.report, nil
}

type parser struct {
	idx          map[string]int
	timestampCol string
	report       Report
}

func (p *parser) field(rec []string, col string) (string, bool) {
	i, ok := p.idx[col]
	if !ok || i >= len(rec) {
		return "", ok
	}
	return strings.TrimSpace(rec[i]), true
}

func (p *parser) transaction(rec []string) core.Transaction {
	t := core.Transaction{
		Amount:    p.number(rec, core.ColAmount),
		Age:       p.number(rec, core.ColAge),
		MerchLat:  p.number(rec, core.ColMerchLat),
		MerchLong: p.number(rec, core.ColMerchLong),
	}
	t.Gender, _ = p.field(rec, core.ColGender)
	t.State, _ = p.field(rec, core.ColState)
	t.Category, _ = p.field(rec, core.ColCategory)
	if v, _ := p.field(rec, core.ColFraud); v != "" {
		t.IsFraud = parseFlag(v)
	}

	if t.Validate() != nil {
		if t.Amount < 0 {
			t.Amount = math.NaN()
			p.report.NegativeValues++
		}
		if t.Age < 0 {
			t.Age = math.NaN()
			p.report.NegativeValues++
		}
	}

	if p.timestampCol != "" {
		v, _ := p.field(rec, p.timestampCol)
		ts, ok := ParseTimestamp(v)
		if !ok && v != "" {
			p.report.InvalidTimestamps++
		}
		t.Time = ts
	}
	return t
}

// number coerces a numeric cell; blanks and garbage become NaN.
func (p *parser) number(rec []string, col string) float64 {
	v, present := p.field(rec, col)
	if !present || v == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) {
		p.report.InvalidNumbers++
		return math.NaN()
	}
	return f
}

// ParseTimestamp tries each known layout; an unparseable value yields a
// null timestamp.
func ParseTimestamp(v string) (core.Timestamp, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return core.Timestamp{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return core.Timestamp{Time: ts, Valid: true}, true
		}
	}
	return core.Timestamp{}, false
}

func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true
	default:
		return false
	}
}

func normalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		if i == 0 {
			c = strings.TrimPrefix(c, "\uFEFF")
		}
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
