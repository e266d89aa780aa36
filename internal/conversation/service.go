package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// DefaultStateTTL is how long an untouched reservation dialogue survives.
const DefaultStateTTL = 30 * time.Minute

// Channel names the transport a turn arrived on.
const (
	ChannelWeb   = "web"
	ChannelVoice = "voice"
)

const msgEmptyUtterance = "Sorry, I didn't catch that. Could you say it again?"

const msgInternalError = "I'm sorry, something went wrong on our side. Please try again."

// Turn is one inbound message. PriorState is whatever the client sent back
// from the previous turn and is not trusted.
type Turn struct {
	Utterance  string
	PriorState json.RawMessage
	History    []ChatMessage
	Channel    string
}

// TurnResult carries the reply and the state to return to the client. A nil
// State ends any reservation in progress.
type TurnResult struct {
	Reply  string
	State  *booking.DialogueState
	Intent booking.Intent
}

type ServiceConfig struct {
	Machine  *booking.Machine
	Answerer Answerer
	StateTTL time.Duration
	Metrics  *metrics.ChatMetrics
	Logger   *logging.Logger
}

// Service routes each turn to cancellation, the reservation dialogue or the
// answerer.
type Service struct {
	machine  *booking.Machine
	answerer Answerer
	ttl      time.Duration
	metrics  *metrics.ChatMetrics
	logger   *logging.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Machine == nil {
		panic("conversation: booking machine cannot be nil")
	}
	if cfg.Answerer == nil {
		panic("conversation: answerer cannot be nil")
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		machine:  cfg.Machine,
		answerer: cfg.Answerer,
		ttl:      cfg.StateTTL,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// HandleTurn never fails: collaborator problems come back as replies.
func (s *Service) HandleTurn(ctx context.Context, turn Turn) (result TurnResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("conversation: turn panicked", "panic", rec, "channel", turn.Channel)
			result = TurnResult{Reply: msgInternalError}
		}
	}()

	utterance := strings.TrimSpace(turn.Utterance)
	decoded := booking.DecodeState(turn.PriorState)
	prior := s.machine.Flow().Restore(decoded, s.machine.Normalizer(), s.ttl)
	if decoded != nil && prior == nil {
		s.logger.Info("conversation: discarded stale or invalid booking state", "channel", turn.Channel)
	}
	if utterance == "" {
		return TurnResult{Reply: msgEmptyUtterance, State: prior}
	}

	intent := booking.Classify(utterance)
	s.metrics.ObserveTurn(intent.String(), turn.Channel)

	switch {
	case intent == booking.IntentCancel:
		if prior != nil {
			s.logger.Info("conversation: reservation cancelled", "step", prior.Step, "channel", turn.Channel)
		}
		return TurnResult{Reply: booking.CancelledReply(), Intent: intent}
	case prior != nil || intent == booking.IntentBooking:
		var res booking.Result
		if prior != nil {
			res = s.machine.Advance(ctx, prior, utterance)
		} else {
			res = s.machine.Start(ctx, utterance)
		}
		if res.Outcome != nil {
			s.metrics.ObserveBooking(string(res.Outcome.Status), res.Outcome.Replayed, res.Outcome.RecordGap)
		}
		return TurnResult{Reply: res.Reply, State: res.State, Intent: intent}
	default:
		return TurnResult{Reply: s.answerer.Answer(ctx, utterance, turn.History), Intent: intent}
	}
}
