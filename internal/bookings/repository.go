// Package bookings keeps a Postgres ledger of confirmed reservations next to
// the calendar events that own them.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no reservation matches.
var ErrNotFound = errors.New("bookings: reservation not found")

// Querier is the subset of pgxpool.Pool the repository needs, so tests can
// use pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reservation is one ledger row.
type Reservation struct {
	ID              uuid.UUID
	ReservationID   string
	GuestName       string
	GuestEmail      string
	StartsAt        time.Time
	PartySize       int
	SpecialRequests string
	IdempotencyKey  string
	Status          string
	CreatedAt       time.Time
}

// Repository provides persistence helpers for reservations.
type Repository struct {
	db Querier
}

func NewRepository(db Querier) *Repository {
	if db == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: db}
}

const insertReservationSQL = `
INSERT INTO reservations (id, reservation_id, guest_name, guest_email, starts_at, party_size, special_requests, idempotency_key, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (reservation_id) DO NOTHING`

// Insert stores a confirmed reservation. Inserting the same calendar event
// twice is a no-op; inserted reports whether a row was written.
func (r *Repository) Insert(ctx context.Context, res Reservation) (bool, error) {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.Status == "" {
		res.Status = "confirmed"
	}
	tag, err := r.db.Exec(ctx, insertReservationSQL,
		res.ID,
		res.ReservationID,
		res.GuestName,
		res.GuestEmail,
		res.StartsAt.UTC(),
		res.PartySize,
		res.SpecialRequests,
		res.IdempotencyKey,
		res.Status,
	)
	if err != nil {
		return false, fmt.Errorf("bookings: insert reservation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const selectReservationColumns = `id, reservation_id, guest_name, guest_email, starts_at, party_size, special_requests, idempotency_key, status, created_at`

// FindByIdempotencyKey returns the newest confirmed row written for a
// reservation key.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectReservationColumns+` FROM reservations
WHERE idempotency_key = $1 AND status = 'confirmed'
ORDER BY created_at DESC LIMIT 1`, key)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: load reservation by key: %w", err)
	}
	return res, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var res Reservation
	if err := row.Scan(
		&res.ID,
		&res.ReservationID,
		&res.GuestName,
		&res.GuestEmail,
		&res.StartsAt,
		&res.PartySize,
		&res.SpecialRequests,
		&res.IdempotencyKey,
		&res.Status,
		&res.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &res, nil
}
