package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
)

var testNow = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

type stubAnswerer struct {
	reply     string
	questions []string
	history   [][]ChatMessage
	panicMsg  string
}

func (s *stubAnswerer) Answer(_ context.Context, question string, history []ChatMessage) string {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.questions = append(s.questions, question)
	s.history = append(s.history, history)
	return s.reply
}

type stubFinalizer struct {
	outcome booking.Outcome
	calls   int
}

func (s *stubFinalizer) Finalize(context.Context, booking.ReservationRecord) booking.Outcome {
	s.calls++
	return s.outcome
}

func newTestService(t *testing.T, fin booking.Finalizer, answerer Answerer) *Service {
	t.Helper()
	norm := booking.NewNormalizer(time.UTC)
	norm.Now = func() time.Time { return testNow }
	return NewService(ServiceConfig{
		Machine:  booking.NewMachine(booking.SplitFlow(), norm, fin, nil),
		Answerer: answerer,
		Metrics:  metrics.NewChatMetrics(prometheus.NewRegistry()),
	})
}

func encodeState(t *testing.T, state booking.DialogueState) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	return raw
}

func partySizeState(t *testing.T) json.RawMessage {
	d := booking.CalendarDate{Year: 2026, Month: time.October, Day: 20}
	c := booking.ClockTime{Hour: 19, Minute: 30}
	return encodeState(t, booking.DialogueState{
		Step: booking.StepPartySize,
		Fields: booking.Fields{
			Name:  "Ana",
			Email: "ana@example.com",
			Date:  &d,
			Time:  &c,
		},
		UpdatedAt: testNow.Add(-time.Minute),
	})
}

func TestHandleTurn_InformationQuestion(t *testing.T) {
	answerer := &stubAnswerer{reply: "We open at 11:30."}
	svc := newTestService(t, &stubFinalizer{}, answerer)

	history := []ChatMessage{{Role: ChatRoleUser, Content: "hi"}, {Role: ChatRoleAssistant, Content: "Hello!"}}
	res := svc.HandleTurn(context.Background(), Turn{Utterance: "  When do you open?  ", History: history, Channel: ChannelWeb})

	assert.Equal(t, "We open at 11:30.", res.Reply)
	assert.Nil(t, res.State)
	assert.Equal(t, booking.IntentInformation, res.Intent)
	assert.Equal(t, []string{"When do you open?"}, answerer.questions)
	assert.Equal(t, history, answerer.history[0])
}

func TestHandleTurn_BookingStartsDialogue(t *testing.T) {
	answerer := &stubAnswerer{}
	svc := newTestService(t, &stubFinalizer{}, answerer)

	res := svc.HandleTurn(context.Background(), Turn{Utterance: "Can I book a table?"})
	require.NotNil(t, res.State)
	assert.Equal(t, booking.StepName, res.State.Step)
	assert.Equal(t, booking.IntentBooking, res.Intent)
	assert.Empty(t, answerer.questions)
}

func TestHandleTurn_CancelAtPartySize(t *testing.T) {
	svc := newTestService(t, &stubFinalizer{}, &stubAnswerer{})

	res := svc.HandleTurn(context.Background(), Turn{Utterance: "never mind", PriorState: partySizeState(t)})
	assert.Equal(t, booking.CancelledReply(), res.Reply)
	assert.Nil(t, res.State)
	assert.Equal(t, booking.IntentCancel, res.Intent)
}

func TestHandleTurn_InProgressStateKeepsDialogue(t *testing.T) {
	answerer := &stubAnswerer{reply: "should not be used"}
	svc := newTestService(t, &stubFinalizer{}, answerer)

	res := svc.HandleTurn(context.Background(), Turn{Utterance: "we'll be 4", PriorState: partySizeState(t)})
	require.NotNil(t, res.State)
	assert.Equal(t, booking.StepSpecialRequests, res.State.Step)
	assert.Equal(t, 4, res.State.Fields.PartySize)
	assert.Empty(t, answerer.questions)
}

func TestHandleTurn_ConfirmBooks(t *testing.T) {
	fin := &stubFinalizer{outcome: booking.Outcome{Status: booking.OutcomeBooked, ReservationID: "evt12345abc"}}
	svc := newTestService(t, fin, &stubAnswerer{})

	d := booking.CalendarDate{Year: 2026, Month: time.October, Day: 20}
	c := booking.ClockTime{Hour: 19, Minute: 30}
	none := ""
	prior := encodeState(t, booking.DialogueState{
		Step: booking.StepConfirmation,
		Fields: booking.Fields{
			Name: "Ana", Email: "ana@example.com", Date: &d, Time: &c, PartySize: 4, SpecialRequests: &none,
		},
		UpdatedAt: testNow,
	})

	res := svc.HandleTurn(context.Background(), Turn{Utterance: "yes", PriorState: prior})
	assert.Nil(t, res.State)
	assert.Contains(t, res.Reply, "EVT12345")
	assert.Equal(t, 1, fin.calls)
}

func TestHandleTurn_StaleStateIsDiscarded(t *testing.T) {
	answerer := &stubAnswerer{reply: "We have parking."}
	svc := newTestService(t, &stubFinalizer{}, answerer)

	stale := encodeState(t, booking.DialogueState{
		Step:      booking.StepEmail,
		Fields:    booking.Fields{Name: "Ana"},
		UpdatedAt: testNow.Add(-2 * time.Hour),
	})
	res := svc.HandleTurn(context.Background(), Turn{Utterance: "Is there parking?", PriorState: stale})
	assert.Equal(t, "We have parking.", res.Reply)
	assert.Nil(t, res.State)
}

func TestHandleTurn_MalformedStateIgnored(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"name"`, `{"step":"dessert"}`, `{"step":5}`} {
		answerer := &stubAnswerer{reply: "ok"}
		svc := newTestService(t, &stubFinalizer{}, answerer)
		res := svc.HandleTurn(context.Background(), Turn{Utterance: "what's on the menu", PriorState: json.RawMessage(raw)})
		assert.Equal(t, "ok", res.Reply, raw)
		assert.Nil(t, res.State, raw)
	}
}

func TestHandleTurn_EmptyUtteranceKeepsState(t *testing.T) {
	svc := newTestService(t, &stubFinalizer{}, &stubAnswerer{})
	res := svc.HandleTurn(context.Background(), Turn{Utterance: "   ", PriorState: partySizeState(t)})
	assert.Equal(t, msgEmptyUtterance, res.Reply)
	require.NotNil(t, res.State)
	assert.Equal(t, booking.StepPartySize, res.State.Step)
}

func TestHandleTurn_RecoversFromPanics(t *testing.T) {
	svc := newTestService(t, &stubFinalizer{}, &stubAnswerer{panicMsg: "boom"})
	res := svc.HandleTurn(context.Background(), Turn{Utterance: "what's good here?"})
	assert.Equal(t, msgInternalError, res.Reply)
	assert.Nil(t, res.State)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewService(ServiceConfig{Answerer: &stubAnswerer{}}) })
	m := booking.NewMachine(booking.SplitFlow(), booking.NewNormalizer(nil), &stubFinalizer{}, nil)
	assert.Panics(t, func() { NewService(ServiceConfig{Machine: m}) })
}
