package backend

import (
	"errors"
	"fmt"

	"ccdash/internal/config"
)

// FromAppConfig converts the application config to a source config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	sourceType := SourceType(appConfig.DataBackend)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("invalid dataset source in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:               sourceType,
		Path:               appConfig.DatasetPath,
		SpreadsheetID:      appConfig.GoogleSpreadsheetID,
		SheetRange:         appConfig.GoogleSheetRange,
		ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		ServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate checks the fields the selected source needs.
func (c Config) Validate() error {
	switch c.Type {
	case FileSource:
		if c.Path == "" {
			return errors.New("dataset path is required for the file source")
		}
	case GCSSource:
		if _, _, err := config.SplitGCSPath(c.Path); err != nil {
			return err
		}
	case SheetsSource:
		if c.SpreadsheetID == "" {
			return errors.New("spreadsheet ID is required for the sheets source")
		}
		if c.SheetRange == "" {
			return errors.New("sheet range is required for the sheets source")
		}
		if c.ServiceAccountJSON == "" && c.ServiceAccountFile == "" {
			return errors.New("service account JSON or file is required for the sheets source")
		}
	default:
		return fmt.Errorf("invalid dataset source: %s", c.Type)
	}
	return nil
}

// SourceTypes returns every supported source type.
func SourceTypes() []SourceType {
	return []SourceType{FileSource, GCSSource, SheetsSource}
}
