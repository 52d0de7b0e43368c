// Package sheets keeps a lead-tracking spreadsheet in sync with delivered posts.
//
// Every delivered post is appended as one row in columns A through K. Status
// and notes live in columns I and J so they can be edited in place.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"lead_bot/internal/model"
)

// ErrDisabled is returned by Disabled for every operation.
var ErrDisabled = errors.New("google sheets integration is disabled")

const (
	leadRange   = "A:K"
	headerRange = "A1:K1"
)

// Header is the first row of the lead sheet.
var Header = []string{
	"Timestamp", "Title", "Author", "Subreddit", "Score", "Comments",
	"URL", "Permalink", "Status", "Notes", "Matched Keyword",
}

// Values is the subset of the spreadsheet values API used by Client.
type Values interface {
	Append(ctx context.Context, rng string, rows [][]any) error
	Update(ctx context.Context, rng string, rows [][]any) error
	Get(ctx context.Context, rng string) ([][]any, error)
}

// Client writes and reads leads through a Values backend.
type Client struct {
	values Values
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Client over values.
func New(values Values, log *slog.Logger) *Client {
	return &Client{values: values, log: log, now: time.Now}
}

// NewGoogle creates a Client backed by the Google Sheets API using a
// service-account credentials file.
func NewGoogle(ctx context.Context, credentialsFile, spreadsheetID string, log *slog.Logger) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(&googleValues{svc: svc, id: spreadsheetID}, log), nil
}

// AppendLead adds post as a new row with status New.
func (c *Client) AppendLead(ctx context.Context, post model.Post, phrase string) error {
	row := []any{
		c.now().UTC().Format(time.RFC3339),
		post.Title,
		post.Author,
		post.Subreddit,
		post.Score,
		post.Comments,
		post.URL,
		permalink(post.URL),
		string(model.LeadNew),
		"",
		phrase,
	}
	if err := c.values.Append(ctx, leadRange, [][]any{row}); err != nil {
		return fmt.Errorf("append lead: %w", err)
	}
	c.log.Debug("lead appended", "post_id", post.ID, "phrase", phrase)
	return nil
}

// UpdateLeadStatus overwrites the status and notes cells of row.
func (c *Client) UpdateLeadStatus(ctx context.Context, row int, status model.LeadStatus, notes string) error {
	if row < 2 {
		return fmt.Errorf("row %d is the header or out of range", row)
	}
	rng := fmt.Sprintf("I%d:J%d", row, row)
	if err := c.values.Update(ctx, rng, [][]any{{string(status), notes}}); err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return nil
}

// RecentLeads returns up to limit rows following the header.
func (c *Client) RecentLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := c.values.Get(ctx, leadRange)
	if err != nil {
		return nil, fmt.Errorf("get leads: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	rows = rows[1:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	leads := make([]model.Lead, 0, len(rows))
	for i, r := range rows {
		lead := model.Lead{
			Row:       i + 2,
			Timestamp: cell(r, 0),
			Title:     cell(r, 1),
			Author:    cell(r, 2),
			Subreddit: cell(r, 3),
			Score:     intCell(r, 4),
			Comments:  intCell(r, 5),
			URL:       cell(r, 6),
			Permalink: cell(r, 7),
			Status:    model.LeadStatus(cell(r, 8)),
			Notes:     cell(r, 9),
			Keyword:   cell(r, 10),
		}
		if lead.Status == "" {
			lead.Status = model.LeadNew
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// SetupHeader writes the column titles into the first row.
func (c *Client) SetupHeader(ctx context.Context) error {
	row := make([]any, len(Header))
	for i, h := range Header {
		row[i] = h
	}
	if err := c.values.Update(ctx, headerRange, [][]any{row}); err != nil {
		return fmt.Errorf("setup header: %w", err)
	}
	return nil
}

// Disabled stands in for Client when the integration is turned off.
type Disabled struct{}

func (Disabled) AppendLead(context.Context, model.Post, string) error { return ErrDisabled }

func (Disabled) UpdateLeadStatus(context.Context, int, model.LeadStatus, string) error {
	return ErrDisabled
}

func (Disabled) RecentLeads(context.Context, int) ([]model.Lead, error) { return nil, ErrDisabled }

func (Disabled) SetupHeader(context.Context) error { return ErrDisabled }

type googleValues struct {
	svc *gsheets.Service
	id  string
}

func (g *googleValues) Append(ctx context.Context, rng string, rows [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.id, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (g *googleValues) Update(ctx context.Context, rng string, rows [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.id, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (g *googleValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.id, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func permalink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func intCell(row []any, i int) int {
	if i >= len(row) {
		return 0
	}
	switch v := row[i].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
