package booking

import (
	"fmt"
	"strings"
	"time"
)

const (
	msgCancelled   = "No problem, I've cancelled that reservation request. Let me know if there's anything else I can help with!"
	msgWhichField  = "Which detail would you like to change: name, email, date, time, party size or special requests? Or reply \"yes\" to confirm."
	msgBookingFail = "I'm sorry, I couldn't complete your booking just now. Please reply \"yes\" to try again, or give us a call and we'll sort it out."
	msgDateMoved   = "That time has already passed today, so I've moved your reservation to the next day."
)

// CancelledReply is sent whenever a booking in progress is dropped.
func CancelledReply() string { return msgCancelled }

func greeting(step Step) string {
	return "I'd be happy to help you make a reservation! " + prompt(step, Fields{}, nil)
}

// prompt asks for the slot owned by step.
func prompt(step Step, fields Fields, hours *OpeningHours) string {
	switch step {
	case StepName:
		return "May I have your name, please?"
	case StepEmail:
		return "What email address should we send the confirmation to?"
	case StepDate:
		return "What date would you like to book? For example \"March 25\" or \"3/25\"."
	case StepTime:
		msg := "What time would you like to come in? For example \"7:30 pm\"."
		if hours != nil && fields.Date != nil {
			msg += fmt.Sprintf(" On %s we're open %s.", fields.Date.Display(), hours[fields.Date.Weekday()])
		}
		return msg
	case StepDateTime:
		switch {
		case fields.Date != nil:
			return fmt.Sprintf("What time on %s would you like to come in?", fields.Date.Display())
		case fields.Time != nil:
			return fmt.Sprintf("Which date would you like to book for %s?", fields.Time.Display())
		}
		return "What date and time would you like? For example \"March 25 at 7:30 pm\"."
	case StepPartySize:
		return fmt.Sprintf("How many people will be joining? We can seat parties of %d to %d.", MinPartySize, MaxPartySize)
	case StepSpecialRequests:
		return "Any special requests, such as dietary needs or a celebration? Reply \"none\" if not."
	case StepConfirmation:
		return confirmationPrompt(fields)
	}
	return ""
}

func confirmationPrompt(f Fields) string {
	var b strings.Builder
	b.WriteString("Please confirm your reservation:\n")
	fmt.Fprintf(&b, "- Name: %s\n", f.Name)
	fmt.Fprintf(&b, "- Email: %s\n", f.Email)
	if f.Date != nil {
		fmt.Fprintf(&b, "- Date: %s\n", f.Date.Display())
	}
	if f.Time != nil {
		fmt.Fprintf(&b, "- Time: %s\n", f.Time.Display())
	}
	fmt.Fprintf(&b, "- Party size: %d\n", f.PartySize)
	fmt.Fprintf(&b, "- Special requests: %s\n", requestsLabel(f.SpecialRequests))
	b.WriteString("Reply \"yes\" to confirm, tell me which detail to change, or say \"mistake\" to cancel.")
	return b.String()
}

func requestsLabel(s *string) string {
	if s == nil || *s == "" {
		return "None"
	}
	return *s
}

// ack echoes back what was just captured.
func ack(step Step, f Fields) string {
	switch step {
	case StepName:
		return fmt.Sprintf("Nice to meet you, %s!", f.Name)
	case StepEmail:
		return fmt.Sprintf("Thanks, I'll send the confirmation to %s.", f.Email)
	case StepDate:
		if f.Date != nil {
			return fmt.Sprintf("Great, %s it is.", f.Date.Display())
		}
	case StepTime:
		if f.Time != nil {
			return fmt.Sprintf("%s works.", f.Time.Display())
		}
	case StepDateTime:
		if f.Date != nil && f.Time != nil {
			return fmt.Sprintf("Great, %s at %s.", f.Date.Display(), f.Time.Display())
		}
		if f.Date != nil {
			return fmt.Sprintf("Got it, %s.", f.Date.Display())
		}
		if f.Time != nil {
			return fmt.Sprintf("Got it, %s.", f.Time.Display())
		}
	case StepPartySize:
		return fmt.Sprintf("A table for %d.", f.PartySize)
	case StepSpecialRequests:
		if f.SpecialRequests != nil && *f.SpecialRequests != "" {
			return "I've noted your request."
		}
		return "No special requests, noted."
	}
	return ""
}

// retry explains why nothing was captured and asks again.
func retry(step Step, problem string, f Fields, hours OpeningHours) string {
	if problem != "" {
		return problem + " " + prompt(step, f, &hours)
	}
	switch step {
	case StepName:
		return "Sorry, I didn't catch your name. " + prompt(step, f, &hours)
	case StepEmail:
		return "That doesn't look like a valid email address. Please enter something like name@example.com."
	case StepDate:
		return "I couldn't understand that date. Please use a format like \"March 25\" or \"3/25\"."
	case StepTime:
		return "I couldn't understand that time. " + prompt(step, f, &hours)
	case StepDateTime:
		return "I couldn't understand that date and time. " + prompt(step, f, &hours)
	case StepPartySize:
		return "Sorry, I didn't get the number of guests. " + prompt(step, f, &hours)
	}
	return prompt(step, f, &hours)
}

func outsideHoursProblem(day CalendarDate, hours OpeningHours) string {
	return fmt.Sprintf("Sorry, we're not seating at that time on %s. We're open %s.", day.Display(), hours[day.Weekday()])
}

func partySizeProblem(n int) string {
	return fmt.Sprintf("I'm sorry, we can only take reservations for %d to %d people, and %d is outside that range.", MinPartySize, MaxPartySize, n)
}

func bookedReply(rec ReservationRecord, id string) string {
	return fmt.Sprintf(
		"You're all set, %s! Your table for %d is booked for %s at %s. Your confirmation number is %s. We look forward to seeing you!",
		rec.Name, rec.PartySize, rec.At.Format("Monday, January 2"), rec.At.Format("3:04 PM"), ShortID(id))
}

func unavailableReply(at time.Time, next Step) string {
	msg := fmt.Sprintf("I'm sorry, we're already fully booked on %s at %s.", at.Format("Monday, January 2"), at.Format("3:04 PM"))
	if next == StepDateTime {
		return msg + " What other date and time would work for you?"
	}
	return msg + " What other date would work for you?"
}

// ShortID is the part of a booking id read back to guests.
func ShortID(id string) string {
	id = strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
