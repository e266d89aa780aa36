package bookings

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

var bookingsTracer = otel.Tracer("restaurant.internal.bookings")

// Sink records finalized reservations in the ledger.
type Sink struct {
	repo   *Repository
	logger *logging.Logger
}

var _ booking.RecordSink = (*Sink)(nil)

func NewSink(repo *Repository, logger *logging.Logger) *Sink {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sink{repo: repo, logger: logger}
}

func (s *Sink) Persist(ctx context.Context, rec booking.ReservationRecord, reservationID string) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.persist")
	defer span.End()
	span.SetAttributes(attribute.String("restaurant.reservation_id", reservationID))

	inserted, err := s.repo.Insert(ctx, Reservation{
		ReservationID:   reservationID,
		GuestName:       rec.Name,
		GuestEmail:      rec.Email,
		StartsAt:        rec.At,
		PartySize:       rec.PartySize,
		SpecialRequests: rec.SpecialRequests,
		IdempotencyKey:  rec.IdempotencyKey(),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !inserted {
		s.logger.Info("reservation already recorded", "reservation_id", reservationID)
		return nil
	}
	s.logger.Info("reservation recorded", "reservation_id", reservationID, "party_size", rec.PartySize)
	return nil
}

// Ledger answers idempotency lookups from the reservations table, so a
// confirmation replayed after the redis key expired still finds its event.
type Ledger struct {
	repo *Repository
}

var _ booking.IdempotencyStore = (*Ledger)(nil)

func NewLedger(repo *Repository) *Ledger {
	if repo == nil {
		panic("bookings: repository required")
	}
	return &Ledger{repo: repo}
}

func (l *Ledger) Lookup(ctx context.Context, key string) (string, bool, error) {
	res, err := l.repo.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return res.ReservationID, true, nil
}

// Remember is a no-op: Sink writes the key along with the row.
func (l *Ledger) Remember(context.Context, string, string) error { return nil }
