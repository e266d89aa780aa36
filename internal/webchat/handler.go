// Package webchat exposes the chat turn over plain HTTP and a WebSocket.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/conversation"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

const maxBodyBytes = 64 << 10

// TurnHandler runs one dialogue turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn conversation.Turn) conversation.TurnResult
}

// Handler serves chat turns. It keeps no per-session state; the client
// round-trips the dialogue state.
type Handler struct {
	turns  TurnHandler
	logger *logging.Logger
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Utterance  string                     `json:"utterance"`
	PriorState json.RawMessage            `json:"priorState,omitempty"`
	History    []conversation.ChatMessage `json:"history,omitempty"`
}

// ChatResponse carries the reply and the state to send with the next turn.
// NewState is null once no reservation is in progress.
type ChatResponse struct {
	Reply    string                 `json:"reply"`
	NewState *booking.DialogueState `json:"newState"`
}

// InboundFrame is what the client sends over the socket.
type InboundFrame struct {
	Type       string                     `json:"type"` // "message", "ping"
	Utterance  string                     `json:"utterance"`
	PriorState json.RawMessage            `json:"priorState,omitempty"`
	History    []conversation.ChatMessage `json:"history,omitempty"`
}

// OutboundFrame is what the server sends over the socket.
type OutboundFrame struct {
	Type      string                 `json:"type"` // "session", "reply", "pong", "error"
	SessionID string                 `json:"sessionId,omitempty"`
	Reply     string                 `json:"reply,omitempty"`
	NewState  *booking.DialogueState `json:"newState,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

func NewHandler(turns TurnHandler, logger *logging.Logger) *Handler {
	if turns == nil {
		panic("webchat: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{turns: turns, logger: logger}
}

// HandleChat answers one turn over HTTP.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		http.Error(w, "utterance is required", http.StatusBadRequest)
		return
	}

	res := h.turns.HandleTurn(r.Context(), conversation.Turn{
		Utterance:  req.Utterance,
		PriorState: req.PriorState,
		History:    req.History,
		Channel:    conversation.ChannelWeb,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatResponse{Reply: res.Reply, NewState: res.State})
}

// HandleWebSocket upgrades to WebSocket and answers each message frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, r.URL.Query().Get("session"))
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, sessionID string) {
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	_ = websocket.JSON.Send(conn, OutboundFrame{Type: "session", SessionID: sessionID})
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch frame.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
			continue
		case "message":
		default:
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Error: "unsupported frame type"})
			continue
		}
		if strings.TrimSpace(frame.Utterance) == "" {
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Error: "utterance is required"})
			continue
		}

		res := h.turns.HandleTurn(ctx, conversation.Turn{
			Utterance:  frame.Utterance,
			PriorState: frame.PriorState,
			History:    frame.History,
			Channel:    conversation.ChannelWeb,
		})
		if err := websocket.JSON.Send(conn, OutboundFrame{Type: "reply", Reply: res.Reply, NewState: res.State}); err != nil {
			h.logger.Warn("webchat: failed to send reply", "session_id", sessionID, "error", err)
			return
		}
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
