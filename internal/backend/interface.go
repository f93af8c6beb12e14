package backend

import (
	"context"

	"ccdash/internal/sources"
)

// Source is a dataset reader that can say where it reads from.
type Source interface {
	sources.RowReader
	sources.Describer
}

// CleanupFunc releases resources held by a source.
type CleanupFunc func() error

// SourceResult is an opened source and its optional cleanup.
type SourceResult struct {
	Source  Source
	Cleanup CleanupFunc
}

// Factory opens dataset sources.
type Factory interface {
	Open(ctx context.Context, config Config) (*SourceResult, error)
}

// Config selects and configures a dataset source.
type Config struct {
	Type SourceType

	// File and GCS
	Path string

	// Google Sheets
	SpreadsheetID      string
	SheetRange         string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// SourceType names a dataset source.
type SourceType string

const (
	FileSource   SourceType = "file"
	GCSSource    SourceType = "gcs"
	SheetsSource SourceType = "sheets"
)

func (t SourceType) String() string {
	return string(t)
}

// IsValid reports whether t is a known source type.
func (t SourceType) IsValid() bool {
	switch t {
	case FileSource, GCSSource, SheetsSource:
		return true
	default:
		return false
	}
}
