// Package google exports reconciliation reports to a Google Sheets
// spreadsheet. Authentication uses an OAuth client plus a stored token,
// produced once with cmd/budgetview-oauth.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetview/internal/config"
	"budgetview/internal/report"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewFromConfig builds a Sheets client from the export settings. The OAuth
// client and token may be given inline as JSON or as file paths.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.GoogleSpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	sheetName := strings.TrimSpace(cfg.GoogleSheetName)
	if sheetName == "" {
		sheetName = "Reconciliation"
	}

	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	oauthCfg, err := googleauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// readCredential prefers inline JSON over a file path.
func readCredential(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	if inline != "" {
		return []byte(inline), nil
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return nil, errors.New("no inline JSON and no file configured")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

// ExportReconciliation appends a timestamped snapshot of the reconciliation
// rows below whatever the sheet already holds. Returns the written range.
func (c *Client) ExportReconciliation(ctx context.Context, rows []report.ReconciliationRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", errors.New("nothing to export")
	}

	// Find the next empty row from the current sheet dimensions.
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	values := reconciliationValues(rows, time.Now().UTC())
	dataRange := fmt.Sprintf("%s!A%d:F%d", c.sheetName, nextRow, nextRow+len(values)-1)
	vr := &gsheet.ValueRange{Values: values}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// reconciliationValues lays out one snapshot block: a timestamp marker, a
// header, then one row per reconciliation line. Amounts are written as
// decimal numbers so the sheet can sum them.
func reconciliationValues(rows []report.ReconciliationRow, exportedAt time.Time) [][]any {
	values := make([][]any, 0, len(rows)+2)
	values = append(values,
		[]any{"Exported", exportedAt.Format(time.RFC3339), "", "", "", ""},
		[]any{"Period", "Category", "Budgeted", "Actual", "Difference", "Over budget"},
	)
	for _, row := range rows {
		values = append(values, []any{
			row.Period,
			row.Category,
			centsToDecimal(row.Budgeted.Cents),
			centsToDecimal(row.Actual.Cents),
			centsToDecimal(row.Difference.Cents),
			row.OverBudget,
		})
	}
	return values
}

func centsToDecimal(cents int64) float64 {
	return float64(cents) / 100.0
}
