// Package google mirrors transactions to a Google Sheets spreadsheet,
// one row per transaction: id, type, amount, category, description,
// date, timestamp.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/backup"
	"fintrack/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ backup.Target = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Optional: GOOGLE_SHEET_NAME (default "Transactions").
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from the environment.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// AppendTransaction mirrors the transaction as one spreadsheet row. If a
// row with the same id already exists it is overwritten in place, so
// replayed upsert events stay idempotent.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	values := []any{
		t.ID,
		string(t.Type),
		t.Amount.Float64(),
		t.Category,
		t.Description,
		t.Date.String(),
		t.Timestamp.UTC().Format(time.RFC3339),
	}

	// Overwrite an existing mirror row when the id is already present.
	if row, err := c.findRow(ctx, t.ID); err == nil && row > 0 {
		rng := fmt.Sprintf("%s!A%d:G%d", c.sheetName, row, row)
		vr := &gsheet.ValueRange{Values: [][]any{values}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update row %d in sheet %s: %w", row, c.sheetName, err)
		}
		return rng, nil
	}

	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// RemoveTransaction clears the mirror row carrying the given id. Unknown
// ids are a no-op.
func (c *Client) RemoveTransaction(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		slog.DebugContext(ctx, "Mirror row not found, nothing to remove", "id", id)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:G%d", c.sheetName, row, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear row %d in sheet %s: %w", row, c.sheetName, err)
	}
	return nil
}

// findRow scans the id column for the given transaction id. Returns the
// 1-based row number, 0 when absent.
func (c *Client) findRow(ctx context.Context, id int64) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column of sheet %s: %w", c.sheetName, err)
	}

	want := strconv.FormatInt(id, 10)
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}
