package memory

import (
	"context"
	"strings"
	"sync"

	"ccdash/internal/sources"
)

// Store serves a dataset held in memory. It backs tests and demos.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

var _ sources.RowReader = (*Store)(nil)

// New returns a store with the given header and records.
func New(header []string, records ...[]string) *Store {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, header)
	rows = append(rows, records...)
	return &Store{rows: rows}
}

// FromCSV parses CSV text into a store.
func FromCSV(text string) (*Store, error) {
	rows, err := sources.DecodeCSV(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	return &Store{rows: rows}, nil
}

// Append adds a record.
func (s *Store) Append(record []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, record)
}

// Describe implements sources.Describer.
func (s *Store) Describe() string {
	return "memory"
}

// ReadRows returns a copy of the stored rows.
func (s *Store) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return nil, sources.ErrNotFound
	}
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}
