package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no row matches a lookup.
var ErrNotFound = errors.New("not found")

// Boundary is a cached boundary document.
type Boundary struct {
	URL       string
	Body      []byte
	ETag      string
	FetchedAt time.Time
}

// DashboardEvent is a persisted dashboard snapshot notification.
type DashboardEvent struct {
	ID         string
	FilterKey  string
	Rows       int
	TotalCents int64
	ReceivedAt time.Time
}

// FilterCount is the number of events recorded for one filter.
type FilterCount struct {
	FilterKey string
	Events    int
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetBoundary returns the stored document for url.
func (r *SQLiteRepository) GetBoundary(ctx context.Context, url string) (Boundary, error) {
	b := Boundary{URL: url}
	err := r.db.QueryRowContext(ctx,
		`SELECT body, etag, fetched_at FROM boundaries WHERE url = ?`, url,
	).Scan(&b.Body, &b.ETag, &b.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Boundary{}, ErrNotFound
	}
	if err != nil {
		return Boundary{}, fmt.Errorf("get boundary: %w", err)
	}
	return b, nil
}

// PutBoundary inserts or replaces the document for b.URL.
func (r *SQLiteRepository) PutBoundary(ctx context.Context, b Boundary) error {
	if b.FetchedAt.IsZero() {
		b.FetchedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO boundaries (url, body, etag, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, etag = excluded.etag, fetched_at = excluded.fetched_at`,
		b.URL, b.Body, b.ETag, b.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put boundary: %w", err)
	}
	slog.InfoContext(ctx, "Boundary document saved to SQLite", "url", b.URL, "bytes", len(b.Body))
	return nil
}

// RecordEvent stores a dashboard event. Redelivered events with a known
// ID are ignored.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e DashboardEvent) (bool, error) {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO dashboard_events (id, filter_key, rows, total_cents, received_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		e.ID, e.FilterKey, e.Rows, e.TotalCents, e.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	return n == 1, nil
}

// TopFilters returns the most requested filters, most frequent first.
func (r *SQLiteRepository) TopFilters(ctx context.Context, limit int) ([]FilterCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT filter_key, COUNT(*) AS n FROM dashboard_events
		 GROUP BY filter_key ORDER BY n DESC, filter_key ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top filters: %w", err)
	}
	defer rows.Close()

	var out []FilterCount
	for rows.Next() {
		var fc FilterCount
		if err := rows.Scan(&fc.FilterKey, &fc.Events); err != nil {
			return nil, fmt.Errorf("scan filter count: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}
