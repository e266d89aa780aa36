package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
)

type capturingSender struct {
	sent []EmailMessage
	err  error
}

func (c *capturingSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func testReservation() booking.ReservationRecord {
	return booking.ReservationRecord{
		Name:      "Ana",
		Email:     "ana@example.com",
		At:        time.Date(2026, time.October, 20, 19, 30, 0, 0, time.UTC),
		PartySize: 4,
	}
}

func TestConfirmationNotifier_NotifyBooked(t *testing.T) {
	sender := &capturingSender{}
	n := NewConfirmationNotifier(sender, "Trattoria Roma", time.UTC, nil)

	require.NoError(t, n.NotifyBooked(context.Background(), testReservation(), "abcd1234-ef56-7890"))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Ana", msg.ToName)
	assert.Equal(t, "Your reservation at Trattoria Roma on Oct 20", msg.Subject)
	assert.Contains(t, msg.Body, "Date: Tuesday, October 20, 2026")
	assert.Contains(t, msg.Body, "Time: 7:30 PM")
	assert.Contains(t, msg.Body, "Party size: 4")
	assert.Contains(t, msg.Body, "Special requests: None")
	assert.Contains(t, msg.Body, "Confirmation number: ABCD1234")
	assert.Contains(t, msg.HTML, "<strong>Trattoria Roma</strong>")
}

func TestConfirmationEmail_EscapesHTML(t *testing.T) {
	rec := testReservation()
	rec.SpecialRequests = "<b>cake</b>"
	msg := ConfirmationEmail(rec, "evt-1", "Roma", time.UTC)
	assert.Contains(t, msg.Body, "Special requests: <b>cake</b>")
	assert.Contains(t, msg.HTML, "&lt;b&gt;cake&lt;/b&gt;")
}

func TestConfirmationNotifier_Errors(t *testing.T) {
	n := NewConfirmationNotifier(&capturingSender{err: errors.New("smtp down")}, "", nil, nil)
	err := n.NotifyBooked(context.Background(), testReservation(), "evt-1")
	assert.ErrorContains(t, err, "smtp down")

	rec := testReservation()
	rec.Email = ""
	assert.Error(t, n.NotifyBooked(context.Background(), rec, "evt-1"))
}

func TestNewConfirmationNotifier_PanicsWithoutSender(t *testing.T) {
	assert.Panics(t, func() { NewConfirmationNotifier(nil, "", nil, nil) })
}
