package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"housesplit/internal/core"
	ports "housesplit/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultTabSuffix is appended to the month key to name the exported tab.
const DefaultTabSuffix = "Balances"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabSuffix     string
}

// Ensure interface conformance
var _ ports.SummaryExporter = (*Client)(nil)

// Config holds what is needed to reach one spreadsheet.
type Config struct {
	SpreadsheetID string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	TabSuffix       string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	suffix := cfg.TabSuffix
	if suffix == "" {
		suffix = DefaultTabSuffix
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, tabSuffix: suffix}, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, credentialsJSON []byte) (*gsheet.Service, error) {
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// TabName returns the tab a month is exported to, e.g. "2025-05 Balances".
func (c *Client) TabName(month core.MonthKey) string {
	return fmt.Sprintf("%s %s", month, c.tabSuffix)
}

// ExportMonth replaces the contents of the month's tab with the summary,
// creating the tab first when the spreadsheet does not have it.
func (c *Client) ExportMonth(ctx context.Context, summary core.MonthSummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if _, err := core.ParseMonthKey(string(summary.MonthKey)); err != nil {
		return "", err
	}

	tab := c.TabName(summary.MonthKey)
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	all := fmt.Sprintf("'%s'!A:F", tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", all, err)
	}

	rows := summaryRows(summary)
	rng := fmt.Sprintf("'%s'!A1:F%d", tab, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Exported month summary",
		"month_key", summary.MonthKey,
		"range", rng,
		"settlements", len(summary.Settlements))
	return rng, nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", tab, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "tab", tab)
	return nil
}

// summaryRows lays out a month summary as a balances block followed by a
// settlements block, separated by an empty row.
func summaryRows(s core.MonthSummary) [][]any {
	names := make(map[int64]string, len(s.Participants)+len(s.Balances))
	shares := make(map[int64]core.Percent, len(s.Participants))
	for _, p := range s.Participants {
		names[p.ID] = p.Name
		shares[p.ID] = p.Percent
	}
	for _, b := range s.Balances {
		if b.Name != "" {
			names[b.PersonID] = b.Name
		}
	}
	name := func(id int64) string {
		if n, ok := names[id]; ok {
			return n
		}
		return core.UnknownPayer
	}

	rows := [][]any{
		{"Month", string(s.MonthKey), "Total", s.Total.Float64(), "Shares", string(s.SharesSource)},
		{},
		{"Person", "Share %", "Paid", "Owed", "Net"},
	}
	for _, b := range s.Balances {
		rows = append(rows, []any{name(b.PersonID), shares[b.PersonID].Float64(), b.Paid.Float64(), b.Owed.Float64(), b.Net.Float64()})
	}

	rows = append(rows, []any{}, []any{"From", "To", "Amount", "Key", "Paid"})
	for _, st := range s.Settlements {
		rows = append(rows, []any{name(st.FromID), name(st.ToID), st.Amount.Float64(), st.Key, st.Paid})
	}
	return rows
}
