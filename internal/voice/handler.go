package voice

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/callreports"
	"github.com/wolfman30/restaurant-concierge/internal/conversation"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

const maxWebhookBytes = 1 << 20

// SecretHeader carries the shared secret configured on the voice assistant.
const SecretHeader = "X-Vapi-Secret"

// TurnHandler runs one dialogue turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn conversation.Turn) conversation.TurnResult
}

// ReportSaver persists end-of-call reports.
type ReportSaver interface {
	Save(ctx context.Context, r callreports.Report) error
}

type Config struct {
	Turns      TurnHandler
	Answerer   conversation.Answerer
	Normalizer booking.Normalizer
	Calls      CallStore
	Reports    ReportSaver
	Metrics    *metrics.ChatMetrics
	Logger     *logging.Logger

	// Secret, when set, must match SecretHeader on every request.
	Secret string
}

// Handler serves the voice assistant webhook.
type Handler struct {
	turns    TurnHandler
	answerer conversation.Answerer
	norm     booking.Normalizer
	calls    CallStore
	reports  ReportSaver
	metrics  *metrics.ChatMetrics
	logger   *logging.Logger
	secret   string
}

type toolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

func NewHandler(cfg Config) *Handler {
	if cfg.Turns == nil {
		panic("voice: turn handler cannot be nil")
	}
	if cfg.Answerer == nil {
		panic("voice: answerer cannot be nil")
	}
	if cfg.Calls == nil {
		panic("voice: call store cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Normalizer.Location == nil {
		cfg.Normalizer = booking.NewNormalizer(nil)
	}
	return &Handler{
		turns:    cfg.Turns,
		answerer: cfg.Answerer,
		norm:     cfg.Normalizer,
		calls:    cfg.Calls,
		reports:  cfg.Reports,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		secret:   strings.TrimSpace(cfg.Secret),
	}
}

// HandleWebhook dispatches one webhook message by type.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn("voice: webhook rejected", "reason", "bad secret", "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	var env Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes)).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}
	if env.Message == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No message in webhook"})
		return
	}

	msg := env.Message
	ctx := r.Context()
	h.metrics.ObserveVoiceEvent(msg.Type)
	h.logger.Debug("voice: webhook received", "type", msg.Type, "call_id", msg.callID())

	switch msg.Type {
	case TypeFunctionCall:
		if msg.FunctionCall == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No function call data"})
			return
		}
		result := h.runTool(ctx, msg.callID(), msg.FunctionCall.Name, msg.FunctionCall.Parameters)
		writeJSON(w, http.StatusOK, map[string]string{"result": result})

	case TypeToolCalls:
		calls := msg.ToolCallList
		if len(calls) == 0 {
			calls = msg.ToolCalls
		}
		results := make([]toolResult, 0, len(calls))
		for _, tc := range calls {
			results = append(results, toolResult{
				ToolCallID: tc.ID,
				Result:     h.runTool(ctx, msg.callID(), tc.Function.Name, tc.Function.Arguments),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})

	case TypeConversationUpdate:
		h.handleConversationUpdate(ctx, w, msg)

	case TypeTranscript:
		h.handleTranscript(ctx, w, msg)

	case TypeStatusUpdate:
		h.logger.Info("voice: call status", "call_id", msg.callID(), "status", msg.Status)
		if msg.Status == "ended" && msg.callID() != "" {
			if err := h.calls.SaveState(ctx, msg.callID(), nil); err != nil {
				h.logger.Warn("voice: clear call state failed", "call_id", msg.callID(), "error", err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case TypeEndOfCallReport:
		h.handleEndOfCall(ctx, w, msg)

	case TypeHang:
		h.logger.Warn("voice: assistant hang reported", "call_id", msg.callID())
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		h.logger.Debug("voice: ignoring webhook", "type", msg.Type)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleConversationUpdate runs the first tool invocation found in any of
// the shapes the platform has used.
func (h *Handler) handleConversationUpdate(ctx context.Context, w http.ResponseWriter, msg *Message) {
	var name string
	var args json.RawMessage
	switch {
	case msg.FunctionCall != nil:
		name, args = msg.FunctionCall.Name, msg.FunctionCall.Parameters
	case msg.FunctionCallAlt != nil:
		name, args = msg.FunctionCallAlt.Name, msg.FunctionCallAlt.Parameters
	case len(msg.ToolCalls) > 0:
		name, args = msg.ToolCalls[0].Function.Name, msg.ToolCalls[0].Function.Arguments
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": h.runTool(ctx, msg.callID(), name, args)})
}

// handleTranscript feeds final caller transcripts through the dialogue, with
// the state kept per call instead of round-tripped by the client.
func (h *Handler) handleTranscript(ctx context.Context, w http.ResponseWriter, msg *Message) {
	callID := msg.callID()
	text := strings.TrimSpace(msg.Transcript)
	if msg.Role != "user" || msg.TranscriptType != "final" || callID == "" || text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	prior, err := h.calls.LoadState(ctx, callID)
	if err != nil {
		h.logger.Warn("voice: load call state failed", "call_id", callID, "error", err)
	}
	res := h.turns.HandleTurn(ctx, conversation.Turn{
		Utterance:  text,
		PriorState: prior,
		Channel:    conversation.ChannelVoice,
	})
	h.saveState(ctx, callID, res.State)
	writeJSON(w, http.StatusOK, map[string]string{"result": res.Reply})
}

func (h *Handler) handleEndOfCall(ctx context.Context, w http.ResponseWriter, msg *Message) {
	callID := msg.callID()
	if callID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No call id in report"})
		return
	}

	report := callreports.Report{
		CallID:          callID,
		EndedReason:     msg.EndedReason,
		Summary:         msg.Summary,
		Transcript:      msg.Transcript,
		RecordingURL:    msg.RecordingURL,
		DurationSeconds: msg.DurationSeconds,
		StartedAt:       msg.StartedAt,
		EndedAt:         msg.EndedAt,
	}
	if report.Summary == "" && msg.Analysis != nil {
		report.Summary = msg.Analysis.Summary
	}
	if msg.Artifact != nil {
		if report.Transcript == "" {
			report.Transcript = msg.Artifact.Transcript
		}
		if report.RecordingURL == "" {
			report.RecordingURL = msg.Artifact.RecordingURL
		}
	}
	if report.DurationSeconds == 0 {
		switch {
		case msg.Call.Duration > 0:
			report.DurationSeconds = msg.Call.Duration
		case msg.StartedAt != nil && msg.EndedAt != nil:
			report.DurationSeconds = msg.EndedAt.Sub(*msg.StartedAt).Seconds()
		}
	}
	switch {
	case msg.Customer != nil:
		report.CustomerNumber = msg.Customer.Number
	case msg.Call.Customer != nil:
		report.CustomerNumber = msg.Call.Customer.Number
	}
	tools, err := h.calls.Tools(ctx, callID)
	if err != nil {
		h.logger.Warn("voice: load tools used failed", "call_id", callID, "error", err)
	}
	report.ToolsUsed = tools

	if h.reports != nil {
		if err := h.reports.Save(ctx, report); err != nil && !errors.Is(err, callreports.ErrDuplicate) {
			h.logger.Error("voice: save call report failed", "call_id", callID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store call report"})
			return
		}
	}
	if err := h.calls.Clear(ctx, callID); err != nil {
		h.logger.Warn("voice: clear call failed", "call_id", callID, "error", err)
	}
	h.logger.Info("voice: call ended",
		"call_id", callID,
		"ended_reason", report.EndedReason,
		"duration", time.Duration(report.DurationSeconds*float64(time.Second)).String(),
		"tools", strings.Join(tools, ","),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) saveState(ctx context.Context, callID string, state *booking.DialogueState) {
	if callID == "" {
		return
	}
	var raw json.RawMessage
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			h.logger.Error("voice: encode call state", "call_id", callID, "error", err)
			return
		}
		raw = data
	}
	if err := h.calls.SaveState(ctx, callID, raw); err != nil {
		h.logger.Warn("voice: save call state failed", "call_id", callID, "error", err)
	}
}

func (h *Handler) recordTool(ctx context.Context, callID, tool string) {
	if callID == "" {
		return
	}
	if err := h.calls.RecordTool(ctx, callID, tool); err != nil {
		h.logger.Warn("voice: record tool failed", "call_id", callID, "tool", tool, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
