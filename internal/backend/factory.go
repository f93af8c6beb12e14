// Package backend opens the dataset source selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ccdash/internal/sources/file"
	"ccdash/internal/sources/gcs"
	"ccdash/internal/sources/google"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Open implements Factory.Open.
func (f *DefaultFactory) Open(ctx context.Context, config Config) (*SourceResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileSource:
		return f.openFile(config)
	case GCSSource:
		return f.openGCS(ctx, config)
	case SheetsSource:
		return f.openSheets(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported dataset source: %s", config.Type)
	}
}

func (f *DefaultFactory) openFile(config Config) (*SourceResult, error) {
	r := file.New(config.Path)
	f.logger.Info("Using local dataset file", "path", config.Path)
	return &SourceResult{Source: r}, nil
}

func (f *DefaultFactory) openGCS(ctx context.Context, config Config) (*SourceResult, error) {
	r, err := gcs.New(ctx, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCS source: %w", err)
	}
	f.logger.Info("Using Cloud Storage dataset", "object", r.Describe())
	return &SourceResult{Source: r, Cleanup: r.Close}, nil
}

func (f *DefaultFactory) openSheets(ctx context.Context, config Config) (*SourceResult, error) {
	c, err := google.New(ctx, config.SpreadsheetID, config.SheetRange, google.Credentials{
		JSON: config.ServiceAccountJSON,
		File: config.ServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
	}
	f.logger.Info("Using Google Sheets dataset", "range", c.Describe())
	return &SourceResult{Source: c}, nil
}
