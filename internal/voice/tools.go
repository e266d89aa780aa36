package voice

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/conversation"
)

const (
	msgMissingDetails   = "I need a few more details to complete your reservation. Please provide your full name, email address, preferred date and time, and the number of people in your party."
	msgPartySizeLimits  = "I'm sorry, we can only accommodate parties of 1 to 8 people. Please let me know if you'd like to adjust your party size."
	msgInvalidEmail     = "I'm sorry, that email address doesn't look right. Could you spell it out for me?"
	msgInvalidDate      = "I'm sorry, I couldn't understand that date. Could you tell me the date again, for example October 20th?"
	msgInfoNotFound     = "I'm sorry, I couldn't find information about that. Could you please be more specific about what you'd like to know?"
	msgToolError        = "I'm sorry, there was an error processing your request. Please try again."
	msgUnknownTool      = "I'm sorry, I don't understand that request. Please try asking about our menu or making a reservation."
	msgReservationRetry = "I'm sorry, I wasn't able to complete that reservation. Could you check the details and try again?"
)

// reservationArgs are the makeReservation parameters. Party size arrives as
// a number or as text depending on the model.
type reservationArgs struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	PartySize       json.RawMessage `json:"partySize"`
	SpecialRequests string          `json:"specialRequests"`
}

type infoArgs struct {
	Query string `json:"query"`
}

// runTool executes one named tool and returns the text the assistant speaks.
func (h *Handler) runTool(ctx context.Context, callID, name string, raw json.RawMessage) string {
	switch name {
	case ToolMakeReservation:
		var args reservationArgs
		if err := decodeArguments(raw, &args); err != nil {
			h.logger.Warn("voice: invalid reservation arguments", "call_id", callID, "error", err)
			return msgToolError
		}
		h.recordTool(ctx, callID, name)
		return h.makeReservation(ctx, callID, args)
	case ToolGetRestaurantInfo:
		var args infoArgs
		if err := decodeArguments(raw, &args); err != nil {
			h.logger.Warn("voice: invalid info arguments", "call_id", callID, "error", err)
			return msgToolError
		}
		h.recordTool(ctx, callID, name)
		return h.restaurantInfo(ctx, args.Query)
	default:
		h.logger.Warn("voice: unknown tool", "call_id", callID, "tool", name)
		return msgUnknownTool
	}
}

func (h *Handler) restaurantInfo(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return msgInfoNotFound
	}
	return h.answerer.Answer(ctx, query, nil)
}

// makeReservation validates a complete set of details and books it by
// confirming a fully populated dialogue, so the voice path shares the web
// finalization and its idempotency.
func (h *Handler) makeReservation(ctx context.Context, callID string, args reservationArgs) string {
	name := strings.TrimSpace(args.Name)
	email := strings.ToLower(strings.TrimSpace(args.Email))
	dateText := strings.TrimSpace(args.Date)
	timeText := strings.TrimSpace(args.Time)
	size, sizeGiven := partySize(args.PartySize)
	if name == "" || email == "" || dateText == "" || timeText == "" || !sizeGiven {
		return msgMissingDetails
	}
	if size < booking.MinPartySize || size > booking.MaxPartySize {
		return msgPartySizeLimits
	}
	if !booking.ValidEmail(email) {
		return msgInvalidEmail
	}
	date, ok := h.parseDate(dateText)
	if !ok {
		return msgInvalidDate
	}
	clock, ok := booking.ParseClock(timeText)
	if !ok {
		return "I'm sorry, I couldn't understand that time. What time would you like to come in, for example 7:30 pm?"
	}
	if !h.norm.Hours.Allows(date.Weekday(), clock) {
		return "I'm sorry, on " + date.Display() + " we're open " + h.norm.Hours[date.Weekday()].String() + ". Could you choose a time within those hours?"
	}
	requests, _ := booking.ExtractSpecialRequests(args.SpecialRequests)

	state := booking.DialogueState{
		Step: booking.StepConfirmation,
		Fields: booking.Fields{
			Name:            name,
			Email:           email,
			Date:            &date,
			Time:            &clock,
			PartySize:       size,
			SpecialRequests: &requests,
		},
		UpdatedAt: h.norm.Current(),
	}
	prior, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("voice: encode reservation state", "call_id", callID, "error", err)
		return msgToolError
	}

	res := h.turns.HandleTurn(ctx, conversation.Turn{
		Utterance:  "yes",
		PriorState: prior,
		Channel:    conversation.ChannelVoice,
	})
	h.saveState(ctx, callID, res.State)
	if res.Reply == "" {
		return msgReservationRetry
	}
	return res.Reply
}

// parseDate accepts ISO dates as well as the spoken forms the normalizer
// understands.
func (h *Handler) parseDate(text string) (booking.CalendarDate, bool) {
	if t, err := time.Parse(time.DateOnly, text); err == nil {
		d := booking.DateOf(t)
		if d.Before(h.norm.Today()) {
			return booking.CalendarDate{}, false
		}
		return d, true
	}
	return h.norm.ParseDate(text)
}

// partySize reads a JSON number or a string such as "4" or "four". ok is
// false when nothing usable was sent; out of range values are returned as is.
func partySize(raw json.RawMessage) (int, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, false
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return int(f), true
	}
	if n, ok := booking.ExtractPartySize(text); ok {
		return n, true
	}
	return 0, false
}
