package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ccdash/internal/sources"
)

// Client reads the dataset from a Google Sheets range whose first row is
// the header.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

var _ sources.RowReader = (*Client)(nil)

// Credentials selects the service account used to call the Sheets API.
type Credentials struct {
	JSON string
	File string
}

// New creates a Sheets client for the given spreadsheet and A1 range.
func New(ctx context.Context, spreadsheetID, readRange string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

// newSheetsService initializes a read-only Sheets service using Service
// Account credentials, inline JSON first, then a credentials file.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(creds.JSON)
	case strings.TrimSpace(creds.File) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", creds.File)
		b, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Describe implements sources.Describer.
func (c *Client) Describe() string {
	return fmt.Sprintf("sheets:%s!%s", c.spreadsheetID, c.readRange)
}

// ReadRows implements sources.RowReader.
func (c *Client) ReadRows(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", sources.ErrNotFound, c.Describe())
		}
		return nil, fmt.Errorf("read sheet values: %w", err)
	}
	return toRows(resp.Values), nil
}
