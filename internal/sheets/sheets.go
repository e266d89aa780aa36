// Package sheets appends confirmed reservations to a Google Sheets ledger that
// front-of-house staff read.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
)

// DefaultRange is the sheet and column span rows are appended to.
const DefaultRange = "Reservations!A:I"

// RowAppender appends one row of scalar values.
type RowAppender interface {
	AppendRow(ctx context.Context, values []any) error
}

// Appender writes rows through the Sheets v4 API.
type Appender struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheetRange    string
}

func NewAppender(ctx context.Context, spreadsheetID, sheetRange string, opts ...option.ClientOption) (*Appender, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if strings.TrimSpace(sheetRange) == "" {
		sheetRange = DefaultRange
	}
	opts = append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}, opts...)
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create google client: %w", err)
	}
	return &Appender{svc: svc, spreadsheetID: spreadsheetID, sheetRange: sheetRange}, nil
}

// valueInputOption lets Sheets parse dates and numbers. Guest-typed text goes
// through escapeCell first so it can never become a formula.
const valueInputOption = "USER_ENTERED"

func (a *Appender) AppendRow(ctx context.Context, values []any) error {
	body := &gsheets.ValueRange{Values: [][]any{values}}
	_, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, a.sheetRange, body).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}
	return nil
}

// ReservationSink turns reservations into ledger rows. Columns: booked at,
// reservation id, name, email, date, time, party size, special requests,
// status.
type ReservationSink struct {
	rows RowAppender
	loc  *time.Location
	now  func() time.Time
}

var _ booking.RecordSink = (*ReservationSink)(nil)

func NewReservationSink(rows RowAppender, loc *time.Location) *ReservationSink {
	if rows == nil {
		panic("sheets: row appender cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationSink{rows: rows, loc: loc, now: time.Now}
}

func (s *ReservationSink) Persist(ctx context.Context, rec booking.ReservationRecord, reservationID string) error {
	at := rec.At.In(s.loc)
	requests := rec.SpecialRequests
	if requests == "" {
		requests = "None"
	}
	return s.rows.AppendRow(ctx, []any{
		s.now().In(s.loc).Format(time.RFC3339),
		reservationID,
		escapeCell(rec.Name),
		escapeCell(rec.Email),
		at.Format("2006-01-02"),
		at.Format("15:04"),
		rec.PartySize,
		escapeCell(requests),
		"confirmed",
	})
}

// escapeCell prefixes text that Sheets would read as a formula with an
// apostrophe, which USER_ENTERED keeps as plain text and hides.
func escapeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
