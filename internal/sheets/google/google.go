package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "bilancio/internal/sheets"
)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID      string
	SheetName          string // transactions, default "Transactions"
	SummarySheetName   string // per-category totals, default "Summary"
	ServiceAccountJSON string
	ServiceAccountFile string
	CurrencySymbol     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	txSheet       string
	summarySheet  string
	currency      string
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := serviceAccountCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	txSheet := strings.TrimSpace(cfg.SheetName)
	if txSheet == "" {
		txSheet = "Transactions"
	}
	summary := strings.TrimSpace(cfg.SummarySheetName)
	if summary == "" {
		summary = "Summary"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		txSheet:       txSheet,
		summarySheet:  summary,
		currency:      cfg.CurrencySymbol,
	}
}

// serviceAccountCredentials reads inline JSON first, then the file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export clears and rewrites the transactions and summary sheets. The two
// sheets are written concurrently; the first failure cancels the other.
func (c *Client) Export(ctx context.Context, view ports.LedgerView) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.replaceSheet(gctx, c.txSheet, "A1:G", transactionRows(view))
	})
	g.Go(func() error {
		return c.replaceSheet(gctx, c.summarySheet, "A1:D", summaryRows(view, c.currency))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Ledger exported to Google Sheets",
		"spreadsheet", c.spreadsheetID,
		"revision", view.Revision,
		"transactions", len(view.Transactions))
	return nil
}

func (c *Client) replaceSheet(ctx context.Context, sheet, cols string, rows [][]any) error {
	rng := fmt.Sprintf("%s!%s", sheet, cols)

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}
