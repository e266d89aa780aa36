package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// ConfirmationNotifier emails the guest a summary of their booking.
type ConfirmationNotifier struct {
	sender     EmailSender
	restaurant string
	loc        *time.Location
	logger     *logging.Logger
}

var _ booking.Notifier = (*ConfirmationNotifier)(nil)

// NewConfirmationNotifier panics without a sender. loc controls how the
// reservation time is printed.
func NewConfirmationNotifier(sender EmailSender, restaurant string, loc *time.Location, logger *logging.Logger) *ConfirmationNotifier {
	if sender == nil {
		panic("notify: email sender required")
	}
	if restaurant == "" {
		restaurant = "our restaurant"
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationNotifier{sender: sender, restaurant: restaurant, loc: loc, logger: logger}
}

func (n *ConfirmationNotifier) NotifyBooked(ctx context.Context, rec booking.ReservationRecord, reservationID string) error {
	if strings.TrimSpace(rec.Email) == "" {
		return fmt.Errorf("notify: reservation %s has no email", reservationID)
	}
	msg := ConfirmationEmail(rec, reservationID, n.restaurant, n.loc)
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send confirmation: %w", err)
	}
	n.logger.Info("confirmation email sent", "reservation_id", reservationID)
	return nil
}

// ConfirmationEmail renders the guest-facing confirmation.
func ConfirmationEmail(rec booking.ReservationRecord, reservationID, restaurant string, loc *time.Location) EmailMessage {
	at := rec.At.In(loc)
	day := at.Format("Monday, January 2, 2006")
	clock := at.Format("3:04 PM")
	code := booking.ShortID(reservationID)
	requests := rec.SpecialRequests
	if requests == "" {
		requests = "None"
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", rec.Name)
	fmt.Fprintf(&text, "Your table at %s is confirmed.\n\n", restaurant)
	fmt.Fprintf(&text, "Date: %s\n", day)
	fmt.Fprintf(&text, "Time: %s\n", clock)
	fmt.Fprintf(&text, "Party size: %d\n", rec.PartySize)
	fmt.Fprintf(&text, "Special requests: %s\n", requests)
	fmt.Fprintf(&text, "Confirmation number: %s\n\n", code)
	text.WriteString("We look forward to seeing you!")

	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hi %s,</p>", html.EscapeString(rec.Name))
	fmt.Fprintf(&body, "<p>Your table at <strong>%s</strong> is confirmed.</p><ul>", html.EscapeString(restaurant))
	fmt.Fprintf(&body, "<li>Date: %s</li>", day)
	fmt.Fprintf(&body, "<li>Time: %s</li>", clock)
	fmt.Fprintf(&body, "<li>Party size: %d</li>", rec.PartySize)
	fmt.Fprintf(&body, "<li>Special requests: %s</li>", html.EscapeString(requests))
	fmt.Fprintf(&body, "<li>Confirmation number: %s</li></ul>", code)
	body.WriteString("<p>We look forward to seeing you!</p>")

	return EmailMessage{
		To:      rec.Email,
		ToName:  rec.Name,
		Subject: fmt.Sprintf("Your reservation at %s on %s", restaurant, at.Format("Jan 2")),
		Body:    text.String(),
		HTML:    body.String(),
	}
}
