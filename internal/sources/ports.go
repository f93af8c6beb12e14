package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when the configured dataset does not exist.
var ErrNotFound = errors.New("dataset not found")

// Ports for inbound dataset adapters.
type (
	// RowReader returns the dataset as a header row followed by records.
	RowReader interface {
		ReadRows(ctx context.Context) ([][]string, error)
	}

	// Describer names where a reader loads from, for logs.
	Describer interface {
		Describe() string
	}
)

// DecodeCSV reads every record of a CSV stream. Rows may have differing
// widths; the loader pads or truncates them against the header.
func DecodeCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return rows, nil
}
