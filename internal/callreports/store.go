// Package callreports stores the end-of-call reports the voice platform sends
// after each phone conversation.
package callreports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when a report for the call was already stored.
// Webhooks are redelivered, so callers usually treat it as success.
var ErrDuplicate = errors.New("callreports: report already stored")

const uniqueViolation = "23505"

// Report is one finished call.
type Report struct {
	CallID          string
	CustomerNumber  string
	EndedReason     string
	Summary         string
	Transcript      string
	RecordingURL    string
	DurationSeconds float64
	ToolsUsed       []string
	StartedAt       *time.Time
	EndedAt         *time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("callreports: db required")
	}
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, r Report) error {
	if r.CallID == "" {
		return errors.New("callreports: call id required")
	}
	tools := r.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_reports (call_id, customer_number, ended_reason, summary, transcript,
		                          recording_url, duration_seconds, tools_used, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.CallID, r.CustomerNumber, r.EndedReason, r.Summary, r.Transcript,
		r.RecordingURL, r.DurationSeconds, pq.Array(tools), nullTime(r.StartedAt), nullTime(r.EndedAt))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("callreports: insert: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
