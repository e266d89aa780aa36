package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalendar struct {
	events    []CalendarEvent
	listErr   error
	createErr error
	created   []EventRequest
	queried   [][2]time.Time
}

func (c *stubCalendar) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]CalendarEvent, error) {
	c.queried = append(c.queried, [2]time.Time{timeMin, timeMax})
	return c.events, c.listErr
}

func (c *stubCalendar) CreateEvent(_ context.Context, req EventRequest) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.created = append(c.created, req)
	return "evt-0001", nil
}

type stubSink struct {
	err   error
	saved []string
}

func (s *stubSink) Persist(_ context.Context, _ ReservationRecord, id string) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, id)
	return nil
}

type stubNotifier struct {
	err  error
	sent int
}

func (n *stubNotifier) NotifyBooked(context.Context, ReservationRecord, string) error {
	n.sent++
	return n.err
}

var slotStart = time.Date(2026, time.October, 20, 19, 30, 0, 0, time.UTC)

func testRecord() ReservationRecord {
	return ReservationRecord{
		Name:            "Ana",
		Email:           "ana@example.com",
		At:              slotStart,
		PartySize:       4,
		SpecialRequests: "window seat",
	}
}

func TestFinalize_Booked(t *testing.T) {
	cal := &stubCalendar{}
	sink := &stubSink{}
	notifier := &stubNotifier{}
	f := NewCalendarFinalizer(FinalizerConfig{Calendar: cal, Sink: sink, Notifier: notifier, RestaurantName: "Bella Vista"})

	out := f.Finalize(context.Background(), testRecord())
	assert.Equal(t, OutcomeBooked, out.Status)
	assert.Equal(t, "evt-0001", out.ReservationID)
	assert.False(t, out.RecordGap)

	require.Len(t, cal.queried, 1)
	assert.Equal(t, slotStart, cal.queried[0][0])
	assert.Equal(t, slotStart.Add(DefaultDuration), cal.queried[0][1])

	require.Len(t, cal.created, 1)
	ev := cal.created[0]
	assert.Equal(t, "Reservation: Ana (4)", ev.Summary)
	assert.Contains(t, ev.Description, "Special requests: window seat")
	assert.Contains(t, ev.Description, "Bella Vista")
	assert.Equal(t, slotStart.Add(2*time.Hour), ev.End)

	assert.Equal(t, []string{"evt-0001"}, sink.saved)
	assert.Equal(t, 1, notifier.sent)
}

func TestFinalize_Overlap(t *testing.T) {
	tests := []struct {
		name        string
		event       CalendarEvent
		unavailable bool
	}{
		{"overlapping", CalendarEvent{ID: "x", Start: slotStart.Add(-time.Hour), End: slotStart.Add(time.Hour)}, true},
		{"inside", CalendarEvent{ID: "x", Start: slotStart.Add(30 * time.Minute), End: slotStart.Add(time.Hour)}, true},
		{"ends at start", CalendarEvent{ID: "x", Start: slotStart.Add(-2 * time.Hour), End: slotStart}, false},
		{"starts at end", CalendarEvent{ID: "x", Start: slotStart.Add(DefaultDuration), End: slotStart.Add(3 * time.Hour)}, false},
		{"open ended inside", CalendarEvent{ID: "x", Start: slotStart.Add(time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &stubCalendar{events: []CalendarEvent{tt.event}}
			f := NewCalendarFinalizer(FinalizerConfig{Calendar: cal})
			out := f.Finalize(context.Background(), testRecord())
			if tt.unavailable {
				assert.Equal(t, OutcomeUnavailable, out.Status)
				assert.Empty(t, cal.created)
			} else {
				assert.Equal(t, OutcomeBooked, out.Status)
				assert.Len(t, cal.created, 1)
			}
		})
	}
}

func TestFinalize_CalendarFailures(t *testing.T) {
	t.Run("availability lookup", func(t *testing.T) {
		cal := &stubCalendar{listErr: errors.New("quota exceeded")}
		sink := &stubSink{}
		out := NewCalendarFinalizer(FinalizerConfig{Calendar: cal, Sink: sink}).Finalize(context.Background(), testRecord())
		assert.Equal(t, OutcomeFailed, out.Status)
		assert.ErrorContains(t, out.Err, "quota exceeded")
		assert.Empty(t, cal.created)
		assert.Empty(t, sink.saved)
	})

	t.Run("create", func(t *testing.T) {
		cal := &stubCalendar{createErr: errors.New("forbidden")}
		sink := &stubSink{}
		idem := NewMemoryIdempotencyStore()
		out := NewCalendarFinalizer(FinalizerConfig{Calendar: cal, Sink: sink, Idempotency: idem}).Finalize(context.Background(), testRecord())
		assert.Equal(t, OutcomeFailed, out.Status)
		assert.Empty(t, sink.saved)

		_, found, err := idem.Lookup(context.Background(), testRecord().IdempotencyKey())
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestFinalize_SinkFailureStillBooked(t *testing.T) {
	cal := &stubCalendar{}
	notifier := &stubNotifier{}
	f := NewCalendarFinalizer(FinalizerConfig{Calendar: cal, Sink: &stubSink{err: errors.New("sheet locked")}, Notifier: notifier})

	out := f.Finalize(context.Background(), testRecord())
	assert.Equal(t, OutcomeBooked, out.Status)
	assert.True(t, out.RecordGap)
	assert.Equal(t, "evt-0001", out.ReservationID)
	assert.Equal(t, 1, notifier.sent)
}

func TestFinalize_NotifierFailureIgnored(t *testing.T) {
	f := NewCalendarFinalizer(FinalizerConfig{Calendar: &stubCalendar{}, Notifier: &stubNotifier{err: errors.New("smtp down")}})
	out := f.Finalize(context.Background(), testRecord())
	assert.Equal(t, OutcomeBooked, out.Status)
	assert.NoError(t, out.Err)
}

func TestFinalize_ReplaysRepeatedConfirmation(t *testing.T) {
	cal := &stubCalendar{}
	sink := &stubSink{err: errors.New("sheet locked")}
	f := NewCalendarFinalizer(FinalizerConfig{Calendar: cal, Sink: sink, Idempotency: NewMemoryIdempotencyStore()})
	ctx := context.Background()

	first := f.Finalize(ctx, testRecord())
	require.Equal(t, OutcomeBooked, first.Status)

	again := testRecord()
	again.Email = "  ANA@example.com "
	second := f.Finalize(ctx, again)
	assert.Equal(t, OutcomeBooked, second.Status)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ReservationID, second.ReservationID)
	assert.Len(t, cal.created, 1)
	assert.Len(t, cal.queried, 1)
}

func TestIdempotencyKey(t *testing.T) {
	a := testRecord()
	b := testRecord()
	b.Name = " ana "
	assert.Equal(t, a.IdempotencyKey(), b.IdempotencyKey())

	b.PartySize = 5
	assert.NotEqual(t, a.IdempotencyKey(), b.IdempotencyKey())

	c := testRecord()
	c.At = c.At.In(time.FixedZone("CET", 3600))
	assert.Equal(t, a.IdempotencyKey(), c.IdempotencyKey())
}

func TestMultiSink(t *testing.T) {
	errA := errors.New("sheets down")
	errB := errors.New("db down")
	ok := &stubSink{}
	sink := MultiSink{&stubSink{err: errA}, nil, ok, &stubSink{err: errB}}

	err := sink.Persist(context.Background(), testRecord(), "evt-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"evt-1"}, ok.saved)

	assert.NoError(t, MultiSink{ok}.Persist(context.Background(), testRecord(), "evt-2"))
}

func TestNewCalendarFinalizer_RequiresCalendar(t *testing.T) {
	assert.Panics(t, func() { NewCalendarFinalizer(FinalizerConfig{}) })
}
