package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"ccdash/internal/sources"
)

// FallbackName is looked up in the working directory when the configured
// path does not exist.
const FallbackName = "df_clean.csv"

// Reader loads the dataset from a local CSV file.
type Reader struct {
	path      string
	fallbacks []string
}

var _ sources.RowReader = (*Reader)(nil)

// New returns a reader for path that falls back to ./df_clean.csv.
func New(path string) *Reader {
	return &Reader{path: path, fallbacks: []string{FallbackName}}
}

// Describe implements sources.Describer.
func (r *Reader) Describe() string {
	return "file:" + r.path
}

// Resolve returns the first candidate path that exists.
func (r *Reader) Resolve() (string, error) {
	for _, p := range append([]string{r.path}, r.fallbacks...) {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("%w: %s", sources.ErrNotFound, r.path)
}

// ReadRows implements sources.RowReader.
func (r *Reader) ReadRows(ctx context.Context) ([][]string, error) {
	path, err := r.Resolve()
	if err != nil {
		return nil, err
	}
	if path != r.path {
		slog.WarnContext(ctx, "Dataset path not found, using fallback", "configured", r.path, "fallback", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return sources.DecodeCSV(f)
}
