// Package google reads the transactions table from a Google Sheets range.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"superstore/internal/core"
	"superstore/internal/source"
)

// Config locates the sheet and the service account used to read it.
type Config struct {
	SpreadsheetID   string
	Range           string // e.g. "Orders!A:U"
	CredentialsJSON string
	CredentialsFile string
}

// Client is a read-only Sheets source.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	rng           string
}

var _ source.Reader = (*Client)(nil)

// New creates a Sheets source using service account credentials from cfg,
// falling back to GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.Range) == "" {
		return nil, errors.New("missing sheet range")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: cfg.Range}, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credsJSON := strings.TrimSpace(cfg.CredentialsJSON)
	credsFile := strings.TrimSpace(cfg.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var raw []byte
	switch {
	case credsJSON != "":
		raw = []byte(credsJSON)
	case credsFile != "":
		b, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service", "component", "sheets", "scope", gsheet.SpreadsheetsReadonlyScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Name identifies the sheet range in diagnostics.
func (c *Client) Name() string {
	return fmt.Sprintf("sheets:%s/%s", c.spreadsheetID, c.rng)
}

// ReadTable fetches the configured range. Numbers are requested unformatted
// so currency formatting in the sheet does not leak into parsing.
func (c *Client) ReadTable(ctx context.Context) (source.Table, error) {
	if c.svc == nil {
		return source.Table{}, &core.LoadError{Source: c.Name(), Err: errors.New("sheets service not initialized")}
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return source.Table{}, &core.LoadError{Source: c.Name(), Err: fmt.Errorf("read range: %w", err)}
	}
	t, err := tableFromValues(resp.Values)
	if err != nil {
		return source.Table{}, &core.LoadError{Source: c.Name(), Err: err}
	}
	slog.DebugContext(ctx, "Sheet range read", "component", "sheets", "range", c.rng, "rows", len(t.Rows))
	return t, nil
}

// tableFromValues converts a Sheets values matrix into a Table. The first row
// is the header; fully blank rows are skipped. Lines are sheet row numbers,
// assuming the range starts at row 1.
func tableFromValues(values [][]interface{}) (source.Table, error) {
	if len(values) == 0 {
		return source.Table{}, errors.New("sheet range is empty")
	}
	t := source.Table{Header: toStrings(values[0])}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, i+1)
	}
	return t, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case nil:
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case string:
			out[i] = strings.TrimSpace(x)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(x))
		}
	}
	return out
}

func blank(row []string) bool {
	for _, s := range row {
		if s != "" {
			return false
		}
	}
	return true
}
