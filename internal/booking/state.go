package booking

import (
	"encoding/json"
	"strings"
	"time"
)

// Step names the slot the dialogue is waiting for.
type Step string

const (
	StepName            Step = "name"
	StepEmail           Step = "email"
	StepDate            Step = "date"
	StepTime            Step = "time"
	StepDateTime        Step = "datetime"
	StepPartySize       Step = "party_size"
	StepSpecialRequests Step = "special_requests"
	StepConfirmation    Step = "confirmation"
)

// Fields holds the partially collected reservation. Unset fields are zero;
// SpecialRequests is a pointer because an empty string is a valid answer.
type Fields struct {
	Name            string        `json:"name,omitempty"`
	Email           string        `json:"email,omitempty"`
	Date            *CalendarDate `json:"date,omitempty"`
	Time            *ClockTime    `json:"time,omitempty"`
	DateTime        *time.Time    `json:"dateTime,omitempty"`
	PartySize       int           `json:"partySize,omitempty"`
	SpecialRequests *string       `json:"specialRequests,omitempty"`
}

// DialogueState is the booking memory round-tripped by the client between
// turns. It is untrusted input and must go through Flow.Restore.
type DialogueState struct {
	Step      Step      `json:"step"`
	Fields    Fields    `json:"fields"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	// rescheduled is set by Restore when the date rolled forward since the
	// guest last saw it.
	rescheduled bool
}

// Flow is the ordered list of steps a reservation walks through before
// confirmation. Variants differ only in whether date and time are asked
// separately.
type Flow struct {
	steps []Step
}

// SplitFlow asks for the date and the time in separate steps.
func SplitFlow() Flow {
	return Flow{steps: []Step{StepName, StepEmail, StepDate, StepTime, StepPartySize, StepSpecialRequests}}
}

// MergedFlow asks for the date and time together.
func MergedFlow() Flow {
	return Flow{steps: []Step{StepName, StepEmail, StepDateTime, StepPartySize, StepSpecialRequests}}
}

func (f Flow) Steps() []Step {
	out := make([]Step, len(f.steps))
	copy(out, f.steps)
	return out
}

func (f Flow) merged() bool {
	for _, s := range f.steps {
		if s == StepDateTime {
			return true
		}
	}
	return false
}

// scheduleStep is where date/time collection restarts.
func (f Flow) scheduleStep() Step {
	if f.merged() {
		return StepDateTime
	}
	return StepDate
}

func (f Flow) has(step Step) bool {
	if step == StepConfirmation {
		return true
	}
	for _, s := range f.steps {
		if s == step {
			return true
		}
	}
	return false
}

// filled reports whether the slot(s) owned by step are set.
func (fl Fields) filled(step Step) bool {
	switch step {
	case StepName:
		return fl.Name != ""
	case StepEmail:
		return fl.Email != ""
	case StepDate:
		return fl.Date != nil
	case StepTime:
		return fl.Time != nil
	case StepDateTime:
		return fl.Date != nil && fl.Time != nil
	case StepPartySize:
		return fl.PartySize != 0
	case StepSpecialRequests:
		return fl.SpecialRequests != nil
	}
	return false
}

// Next returns the first unfilled step, or confirmation once all are set.
func (f Flow) Next(fields Fields) Step {
	for _, s := range f.steps {
		if !fields.filled(s) {
			return s
		}
	}
	return StepConfirmation
}

// Complete reports whether every slot of the flow is filled.
func (f Flow) Complete(fields Fields) bool {
	return f.Next(fields) == StepConfirmation
}

// NewState starts an empty reservation.
func (f Flow) NewState(now time.Time) *DialogueState {
	return &DialogueState{Step: f.steps[0], UpdatedAt: now}
}

// Restore validates a client supplied state. Unknown steps or an expired
// state yield nil; with a ttl set, a state without updatedAt counts as
// expired; individual fields that fail validation are dropped and
// the step is recomputed from what survives.
func (f Flow) Restore(state *DialogueState, norm Normalizer, ttl time.Duration) *DialogueState {
	if state == nil || !f.has(state.Step) {
		return nil
	}
	now := norm.now()
	if ttl > 0 && (state.UpdatedAt.IsZero() || now.Sub(state.UpdatedAt) > ttl) {
		return nil
	}

	in := state.Fields
	var out Fields
	if name := strings.TrimSpace(in.Name); name != "" && len(name) <= maxNameLength {
		out.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); ValidEmail(email) {
		out.Email = email
	}
	if in.Date != nil {
		if d, ok := NewCalendarDate(in.Date.Year, in.Date.Month, in.Date.Day); ok && !d.Before(norm.Today()) {
			out.Date = &d
		}
	}
	if in.Time != nil && in.Time.valid() {
		ref := norm.Today()
		if out.Date != nil {
			ref = *out.Date
		}
		if norm.Hours.Allows(ref.Weekday(), *in.Time) {
			t := *in.Time
			out.Time = &t
		}
	}
	if in.PartySize >= MinPartySize && in.PartySize <= MaxPartySize {
		out.PartySize = in.PartySize
	}
	if in.SpecialRequests != nil {
		s := strings.TrimSpace(*in.SpecialRequests)
		out.SpecialRequests = &s
	}
	moved := out.syncInstant(norm)

	return &DialogueState{Step: f.Next(out), Fields: out, UpdatedAt: state.UpdatedAt, rescheduled: moved}
}

// syncInstant recomputes DateTime from Date and Time, rolling past instants
// forward. A time that is invalid on the rolled date is cleared. moved
// reports whether Date changed.
func (fl *Fields) syncInstant(norm Normalizer) (moved bool) {
	fl.DateTime = nil
	if fl.Date == nil || fl.Time == nil {
		return false
	}
	d, at, ok := norm.Compose(*fl.Date, *fl.Time)
	moved = ok && d != *fl.Date
	if !ok {
		fl.Time = nil
		return moved
	}
	fl.Date = &d
	fl.DateTime = &at
	return moved
}

// clear unsets the slot(s) owned by step.
func (fl *Fields) clear(step Step) {
	switch step {
	case StepName:
		fl.Name = ""
	case StepEmail:
		fl.Email = ""
	case StepDate:
		fl.Date = nil
	case StepTime:
		fl.Time = nil
	case StepDateTime:
		fl.Date, fl.Time = nil, nil
	case StepPartySize:
		fl.PartySize = 0
	case StepSpecialRequests:
		fl.SpecialRequests = nil
	}
	if fl.Date == nil || fl.Time == nil {
		fl.DateTime = nil
	}
}

// DecodeState parses a raw client state, returning nil for anything that is
// not a JSON object of the expected shape.
func DecodeState(raw json.RawMessage) *DialogueState {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	var state DialogueState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil
	}
	return &state
}
