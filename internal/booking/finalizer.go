package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

var finalizerTracer = otel.Tracer("restaurant.internal.booking")

// DefaultDuration is how long a table is held for one reservation.
const DefaultDuration = 120 * time.Minute

// ReservationRecord is the confirmed booking handed to external systems.
type ReservationRecord struct {
	Name            string
	Email           string
	At              time.Time
	PartySize       int
	SpecialRequests string
}

// IdempotencyKey identifies the same reservation across repeated
// confirmations of one conversation.
func (r ReservationRecord) IdempotencyKey() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.ToLower(strings.TrimSpace(r.Name)),
		strings.ToLower(strings.TrimSpace(r.Email)),
		r.At.UTC().Format(time.RFC3339),
		fmt.Sprint(r.PartySize),
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// CalendarEvent is an existing entry on the reservations calendar.
type CalendarEvent struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
}

// EventRequest describes the calendar entry created for a reservation.
type EventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Calendar is the source of truth for table availability.
type Calendar interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, req EventRequest) (string, error)
}

// RecordSink keeps a secondary copy of confirmed reservations.
type RecordSink interface {
	Persist(ctx context.Context, rec ReservationRecord, reservationID string) error
}

// IdempotencyStore remembers which reservation a key already produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, reservationID string) error
}

// Notifier tells the guest their booking went through.
type Notifier interface {
	NotifyBooked(ctx context.Context, rec ReservationRecord, reservationID string) error
}

// Finalizer turns a confirmed dialogue into a booking.
type Finalizer interface {
	Finalize(ctx context.Context, rec ReservationRecord) Outcome
}

// OutcomeStatus classifies a finalize attempt.
type OutcomeStatus string

const (
	OutcomeBooked      OutcomeStatus = "booked"
	OutcomeUnavailable OutcomeStatus = "unavailable"
	OutcomeFailed      OutcomeStatus = "failed"
)

// Outcome reports a finalize attempt. RecordGap is set when the calendar
// event exists but the record sink could not store it.
type Outcome struct {
	Status        OutcomeStatus
	ReservationID string
	Replayed      bool
	RecordGap     bool
	Err           error
}

// MultiSink fans a record out to several sinks and joins their errors.
type MultiSink []RecordSink

func (m MultiSink) Persist(ctx context.Context, rec ReservationRecord, reservationID string) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Persist(ctx, rec, reservationID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FinalizerConfig wires the collaborators of CalendarFinalizer.
type FinalizerConfig struct {
	Calendar       Calendar
	Sink           RecordSink
	Idempotency    IdempotencyStore
	Notifier       Notifier
	Duration       time.Duration
	RestaurantName string
	Logger         *logging.Logger
}

// CalendarFinalizer checks the calendar for conflicts, creates the event and
// then copies the record to the sink. The calendar is authoritative: a sink
// failure after the event exists is logged and the booking still succeeds.
type CalendarFinalizer struct {
	calendar    Calendar
	sink        RecordSink
	idempotency IdempotencyStore
	notifier    Notifier
	duration    time.Duration
	restaurant  string
	logger      *logging.Logger
}

// NewCalendarFinalizer builds a finalizer. The calendar is required.
func NewCalendarFinalizer(cfg FinalizerConfig) *CalendarFinalizer {
	if cfg.Calendar == nil {
		panic("booking: calendar cannot be nil")
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.RestaurantName == "" {
		cfg.RestaurantName = "the restaurant"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &CalendarFinalizer{
		calendar:    cfg.Calendar,
		sink:        cfg.Sink,
		idempotency: cfg.Idempotency,
		notifier:    cfg.Notifier,
		duration:    cfg.Duration,
		restaurant:  cfg.RestaurantName,
		logger:      cfg.Logger,
	}
}

// Finalize runs availability, create, persist. It never retries.
func (f *CalendarFinalizer) Finalize(ctx context.Context, rec ReservationRecord) Outcome {
	ctx, span := finalizerTracer.Start(ctx, "booking.finalize")
	defer span.End()
	span.SetAttributes(
		attribute.Int("restaurant.party_size", rec.PartySize),
		attribute.String("restaurant.slot_start", rec.At.Format(time.RFC3339)),
	)

	key := rec.IdempotencyKey()
	if f.idempotency != nil {
		id, found, err := f.idempotency.Lookup(ctx, key)
		if err != nil {
			f.logger.Warn("booking: idempotency lookup failed", "error", err)
		} else if found {
			f.logger.Info("booking: replaying existing reservation", "reservation_id", id)
			span.SetAttributes(attribute.Bool("restaurant.replayed", true))
			return Outcome{Status: OutcomeBooked, ReservationID: id, Replayed: true}
		}
	}

	start := rec.At
	end := start.Add(f.duration)
	events, err := f.calendar.ListEvents(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "availability lookup failed")
		f.logger.Error("booking: availability lookup failed", "error", err)
		return Outcome{Status: OutcomeFailed, Err: fmt.Errorf("booking: list events: %w", err)}
	}
	for _, ev := range events {
		if overlaps(ev, start, end) {
			f.logger.Info("booking: slot unavailable", "slot_start", start, "conflict_id", ev.ID)
			return Outcome{Status: OutcomeUnavailable}
		}
	}

	id, err := f.calendar.CreateEvent(ctx, f.eventFor(rec, end))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create event failed")
		f.logger.Error("booking: create event failed", "error", err)
		return Outcome{Status: OutcomeFailed, Err: fmt.Errorf("booking: create event: %w", err)}
	}
	span.SetAttributes(attribute.String("restaurant.reservation_id", id))

	if f.idempotency != nil {
		if err := f.idempotency.Remember(ctx, key, id); err != nil {
			f.logger.Warn("booking: failed to remember reservation", "error", err, "reservation_id", id)
		}
	}

	outcome := Outcome{Status: OutcomeBooked, ReservationID: id}
	if f.sink != nil {
		if err := f.sink.Persist(ctx, rec, id); err != nil {
			span.RecordError(err)
			f.logger.Error("booking: reservation not recorded, calendar event kept",
				"error", err, "reservation_id", id)
			outcome.RecordGap = true
		}
	}
	if f.notifier != nil {
		if err := f.notifier.NotifyBooked(ctx, rec, id); err != nil {
			f.logger.Warn("booking: confirmation notice failed", "error", err, "reservation_id", id)
		}
	}
	return outcome
}

func (f *CalendarFinalizer) eventFor(rec ReservationRecord, end time.Time) EventRequest {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Guest: %s\n", rec.Name)
	fmt.Fprintf(&desc, "Email: %s\n", rec.Email)
	fmt.Fprintf(&desc, "Party size: %d\n", rec.PartySize)
	if rec.SpecialRequests != "" {
		fmt.Fprintf(&desc, "Special requests: %s\n", rec.SpecialRequests)
	}
	fmt.Fprintf(&desc, "Booked via %s concierge", f.restaurant)
	return EventRequest{
		Summary:     fmt.Sprintf("Reservation: %s (%d)", rec.Name, rec.PartySize),
		Description: desc.String(),
		Start:       rec.At,
		End:         end,
	}
}

func overlaps(ev CalendarEvent, start, end time.Time) bool {
	if ev.End.IsZero() {
		return !ev.Start.Before(start) && ev.Start.Before(end)
	}
	return ev.Start.Before(end) && ev.End.After(start)
}
