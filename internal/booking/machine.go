package booking

import (
	"context"
	"regexp"
	"strings"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// Result is the outcome of one dialogue turn. A nil State means the booking
// is over (booked, abandoned or cancelled).
type Result struct {
	Reply   string
	State   *DialogueState
	Outcome *Outcome
}

// Machine advances a reservation one utterance at a time.
type Machine struct {
	flow      Flow
	norm      Normalizer
	finalizer Finalizer
	logger    *logging.Logger
}

// NewMachine wires a machine. The finalizer is required.
func NewMachine(flow Flow, norm Normalizer, finalizer Finalizer, logger *logging.Logger) *Machine {
	if finalizer == nil {
		panic("booking: finalizer cannot be nil")
	}
	if len(flow.steps) == 0 {
		flow = SplitFlow()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{flow: flow, norm: norm, finalizer: finalizer, logger: logger}
}

func (m *Machine) Flow() Flow             { return m.flow }
func (m *Machine) Normalizer() Normalizer { return m.norm }

var (
	affirmRe  = regexp.MustCompile(`(?i)\b(?:yes|confirm\w*)\b`)
	mistakeRe = regexp.MustCompile(`(?i)\bmistake`)
)

var editTargets = []struct {
	step    Step
	matcher *keywordMatcher
}{
	{StepEmail, newKeywordMatcher("email", "e-mail")},
	{StepName, newKeywordMatcher("name")},
	{StepPartySize, newKeywordMatcher("party", "people", "size")},
	{StepSpecialRequests, newKeywordMatcher("special", "request")},
	{StepDate, newKeywordMatcher("date")},
	{StepTime, newKeywordMatcher("time")},
}

// Start opens a new reservation and runs the opening utterance through the
// first step, so "I'm Ana, book a table" captures the name right away.
func (m *Machine) Start(ctx context.Context, utterance string) Result {
	state := m.flow.NewState(m.norm.now())
	first := state.Step
	res := m.Advance(ctx, state, utterance)
	if res.State != nil && res.State.Step == first {
		res.Reply = greeting(first)
	}
	return res
}

// Advance applies one utterance to a restored state.
func (m *Machine) Advance(ctx context.Context, state *DialogueState, utterance string) Result {
	if state == nil {
		return m.Start(ctx, utterance)
	}
	next := *state
	next.Step = m.flow.Next(next.Fields)
	next.UpdatedAt = m.norm.now()

	if next.Step == StepConfirmation {
		return m.confirm(ctx, &next, utterance)
	}

	step := next.Step
	captured, problem := m.capture(step, &next.Fields, utterance)
	if !captured {
		return Result{Reply: retry(step, problem, next.Fields, m.norm.Hours), State: &next}
	}

	next.Step = m.flow.Next(next.Fields)
	reply := ack(step, next.Fields)
	if problem != "" {
		reply = strings.TrimSpace(reply + " " + problem)
	}
	if p := prompt(next.Step, next.Fields, &m.norm.Hours); p != "" {
		reply = strings.TrimSpace(reply + " " + p)
	}
	return Result{Reply: reply, State: &next}
}

// capture runs the extractor for step. problem carries a user-facing reason
// when a value was recognised but rejected, or when capturing one slot
// invalidated another.
func (m *Machine) capture(step Step, f *Fields, utterance string) (bool, string) {
	switch step {
	case StepName:
		name, ok := ExtractName(utterance)
		if ok {
			f.Name = name
		}
		return ok, ""
	case StepEmail:
		email, ok := ExtractEmail(utterance)
		if ok {
			f.Email = email
		}
		return ok, ""
	case StepDate:
		d, ok := m.norm.ParseDate(utterance)
		if !ok {
			return false, ""
		}
		f.Date = &d
		return true, m.revalidateTime(f)
	case StepTime:
		return m.captureTime(f, utterance)
	case StepDateTime:
		return m.captureDateTime(f, utterance)
	case StepPartySize:
		n, ok := ExtractPartySize(utterance)
		if ok {
			f.PartySize = n
			return true, ""
		}
		if raw, found := firstNumber(utterance); found {
			return false, partySizeProblem(raw)
		}
		return false, ""
	case StepSpecialRequests:
		req, ok := ExtractSpecialRequests(utterance)
		if ok {
			f.SpecialRequests = &req
		}
		return ok, ""
	}
	return false, ""
}

func (m *Machine) captureTime(f *Fields, utterance string) (bool, string) {
	day := m.norm.Today()
	if f.Date != nil {
		day = *f.Date
	}
	text := stripDate(utterance)
	c, ok := m.norm.ParseTime(text, &day)
	if !ok {
		if _, parsed := ParseClock(text); parsed {
			return false, outsideHoursProblem(day, m.norm.Hours)
		}
		return false, ""
	}
	f.Time = &c
	f.syncInstant(m.norm)
	if f.Time == nil {
		return false, outsideHoursProblem(*f.Date, m.norm.Hours)
	}
	return true, ""
}

func (m *Machine) captureDateTime(f *Fields, utterance string) (bool, string) {
	captured := false
	var problem string
	if f.Date == nil {
		if d, ok := m.norm.ParseDate(utterance); ok {
			f.Date = &d
			captured = true
			problem = m.revalidateTime(f)
		}
	}
	if f.Time == nil {
		day := m.norm.Today()
		if f.Date != nil {
			day = *f.Date
		}
		rest := stripDate(utterance)
		if c, ok := m.norm.ParseTime(rest, &day); ok {
			f.Time = &c
			captured = true
		} else if _, parsed := ParseClock(rest); parsed {
			problem = outsideHoursProblem(day, m.norm.Hours)
		}
	}
	if f.Date != nil && f.Time != nil {
		f.syncInstant(m.norm)
		if f.Time == nil {
			problem = outsideHoursProblem(*f.Date, m.norm.Hours)
		}
	}
	return captured, problem
}

// revalidateTime drops a previously chosen time that the new date cannot
// host, which happens when the date is edited at confirmation.
func (m *Machine) revalidateTime(f *Fields) string {
	if f.Time == nil {
		f.syncInstant(m.norm)
		return ""
	}
	prev := *f.Time
	f.syncInstant(m.norm)
	if f.Time == nil {
		return "Just so you know, " + prev.Display() + " doesn't work on that day, so I'll need a new time."
	}
	return ""
}

func (m *Machine) confirm(ctx context.Context, state *DialogueState, utterance string) Result {
	switch {
	case affirmRe.MatchString(utterance):
		return m.finalize(ctx, state)
	case mistakeRe.MatchString(utterance):
		return Result{Reply: CancelledReply()}
	}
	for _, target := range editTargets {
		if !target.matcher.Match(utterance) {
			continue
		}
		step := target.step
		if m.flow.merged() && (step == StepDate || step == StepTime) {
			step = StepDateTime
		}
		state.Fields.clear(step)
		state.Step = step
		return Result{Reply: "Sure, let's update that. " + prompt(step, state.Fields, &m.norm.Hours), State: state}
	}
	return Result{Reply: msgWhichField, State: state}
}

func (m *Machine) finalize(ctx context.Context, state *DialogueState) Result {
	moved := state.Fields.syncInstant(m.norm) || state.rescheduled
	state.rescheduled = false
	rec, ok := state.Fields.Record()
	if !ok {
		state.Step = m.flow.Next(state.Fields)
		return Result{
			Reply: "That time has passed or no longer fits our hours. " + prompt(state.Step, state.Fields, &m.norm.Hours),
			State: state,
		}
	}
	// The guest confirmed a different day; they must see the new one first.
	if moved {
		state.Step = StepConfirmation
		return Result{Reply: msgDateMoved + " " + confirmationPrompt(state.Fields), State: state}
	}

	outcome := m.finalizer.Finalize(ctx, rec)
	switch outcome.Status {
	case OutcomeBooked:
		m.logger.Info("booking: reservation confirmed", "reservation_id", outcome.ReservationID, "party_size", rec.PartySize)
		return Result{Reply: bookedReply(rec, outcome.ReservationID), Outcome: &outcome}
	case OutcomeUnavailable:
		step := m.flow.scheduleStep()
		state.Fields.clear(StepDateTime)
		state.Step = step
		return Result{Reply: unavailableReply(rec.At, step), State: state, Outcome: &outcome}
	default:
		state.Step = StepConfirmation
		return Result{Reply: msgBookingFail, State: state, Outcome: &outcome}
	}
}

// Record builds the immutable reservation once every slot is valid.
func (fl Fields) Record() (ReservationRecord, bool) {
	if fl.Name == "" || fl.Email == "" || fl.DateTime == nil || fl.PartySize == 0 || fl.SpecialRequests == nil {
		return ReservationRecord{}, false
	}
	return ReservationRecord{
		Name:            fl.Name,
		Email:           fl.Email,
		At:              *fl.DateTime,
		PartySize:       fl.PartySize,
		SpecialRequests: *fl.SpecialRequests,
	}, true
}
