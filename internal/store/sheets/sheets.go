// Package sheets keeps transactions in a Google Sheets tab, one row per
// transaction with columns A:E = id, date, category, type, amount. Row 1 is
// a header. Deleted rows are cleared rather than removed so row numbers of
// the remaining records never shift.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashbook/internal/cache"
	"cashbook/internal/core"
	"cashbook/internal/store"
)

var _ store.Backend = (*Client)(nil)

// DefaultSheet is the tab name used when none is configured.
const DefaultSheet = "Transactions"

var header = []any{"ID", "Date", "Category", "Type", "Amount"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	rows          cache.Cache[int]
}

// Options configures a client built from service account credentials.
// CredentialsJSON wins over CredentialsFile.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a client authenticated with a service account.
func New(ctx context.Context, opts Options, rows cache.Cache[int]) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, rows), nil
}

// NewWithService wraps an existing service, typically one pointed at a test
// endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, rows cache.Cache[int]) *Client {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = DefaultSheet
	}
	if rows == nil {
		rows = cache.NewLRUCache[int](1024, 10*time.Minute)
	}
	return &Client{svc: svc, spreadsheetID: strings.TrimSpace(spreadsheetID), sheet: sheet, rows: rows}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading service account credentials from file", "path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// WithHTTPClient bypasses the credential options, so the pooled client
	// carries the token source itself.
	hc := newHTTPClientWithPooling()
	hc.Transport = &oauth2.Transport{Source: creds.TokenSource, Base: hc.Transport}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive between
// calls.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// EnsureHeader writes the header row when the tab is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A1:E1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.a1("A1:E1"), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Create appends t under a new ULID.
func (c *Client) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = core.Confirmed(ulid.Make().String())
	if err := c.append(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (c *Client) Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	row, err := c.rowOf(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id.Confirm()
	if err := c.writeRow(ctx, row, t); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (c *Client) Delete(ctx context.Context, id core.ID) error {
	row, err := c.rowOf(ctx, id)
	if err != nil {
		return err
	}
	rng := c.a1(fmt.Sprintf("A%d:E%d", row, row))
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.rows.Delete(id.String())
	return nil
}

// Put writes t keeping its id: the row is overwritten when the id exists and
// appended otherwise. Used to mirror another store.
func (c *Client) Put(ctx context.Context, t core.Transaction) error {
	row, err := c.rowOf(ctx, t.ID)
	if errors.Is(err, store.ErrNotFound) {
		return c.append(ctx, t)
	}
	if err != nil {
		return err
	}
	return c.writeRow(ctx, row, t)
}

// Remove clears the row of id, treating a missing row as already removed.
func (c *Client) Remove(ctx context.Context, id core.ID) error {
	if err := c.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// List reads the whole tab. The sheet has no server-side filter, so the
// range is ignored and the caller's retry rule never triggers on a
// non-empty sheet.
func (c *Client) List(ctx context.Context, _ *store.DateRange) ([]core.Transaction, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A:E")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.sheet, err)
	}
	out := make([]core.Transaction, 0, len(resp.Values))
	for i, row := range resp.Values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "id") {
			continue
		}
		t := core.Transaction{
			ID:       core.Confirmed(cols[0]),
			Date:     core.ParseDateLenient(safeGet(cols, 1)),
			Category: safeGet(cols, 2),
			Type:     core.TransactionType(strings.ToLower(safeGet(cols, 3))),
			Amount:   core.CoerceAmount(safeGet(cols, 4)),
		}
		c.rows.Set(cols[0], i+1)
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) append(ctx context.Context, t core.Transaction) error {
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:E"), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			c.rows.Set(t.ID.String(), row)
		}
	}
	return nil
}

func (c *Client) writeRow(ctx context.Context, row int, t core.Transaction) error {
	rng := c.a1(fmt.Sprintf("A%d:E%d", row, row))
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(t)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// rowOf finds the 1-based row holding id. A cached row is trusted only after
// its id cell is read back.
func (c *Client) rowOf(ctx context.Context, id core.ID) (int, error) {
	key := id.String()
	if row, ok := c.rows.Get(key); ok {
		rng := c.a1(fmt.Sprintf("A%d", row))
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", rng, err)
		}
		if len(resp.Values) > 0 && len(resp.Values[0]) > 0 && fmt.Sprint(resp.Values[0][0]) == key {
			return row, nil
		}
		c.rows.Delete(key)
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.a1("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read ids: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == key {
			c.rows.Set(key, i+1)
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("transaction %s: %w", key, store.ErrNotFound)
}

func (c *Client) a1(rng string) string {
	return quoteSheet(c.sheet) + "!" + rng
}

func rowValues(t core.Transaction) []any {
	return []any{t.ID.String(), t.Date.String(), t.Category, string(t.Type), t.Amount.String()}
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func quoteSheet(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

var rangeRow = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number of an A1 range such as
// "Transactions!A7:E7".
func rowFromRange(rng string) (int, bool) {
	m := rangeRow.FindStringSubmatch(rng)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
