package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/conversation"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

type recordingTurns struct {
	mu     sync.Mutex
	turns  []conversation.Turn
	result conversation.TurnResult
}

func (r *recordingTurns) HandleTurn(_ context.Context, turn conversation.Turn) conversation.TurnResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return r.result
}

func TestHandleChat(t *testing.T) {
	turns := &recordingTurns{result: conversation.TurnResult{
		Reply: "May I have your name, please?",
		State: &booking.DialogueState{Step: booking.StepName},
	}}
	h := NewHandler(turns, logging.New("error"))

	body := `{"utterance":"book a table","priorState":{"step":"email"},"history":[{"role":"user","content":"hi"}]}`
	w := httptest.NewRecorder()
	h.HandleChat(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Reply    string          `json:"reply"`
		NewState json.RawMessage `json:"newState"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "May I have your name, please?", resp.Reply)
	assert.Contains(t, string(resp.NewState), `"step":"name"`)

	require.Len(t, turns.turns, 1)
	got := turns.turns[0]
	assert.Equal(t, "book a table", got.Utterance)
	assert.JSONEq(t, `{"step":"email"}`, string(got.PriorState))
	assert.Equal(t, conversation.ChannelWeb, got.Channel)
	assert.Equal(t, []conversation.ChatMessage{{Role: "user", Content: "hi"}}, got.History)
}

func TestHandleChat_NullStateWhenDone(t *testing.T) {
	h := NewHandler(&recordingTurns{result: conversation.TurnResult{Reply: "We open at 11:30."}}, logging.New("error"))
	w := httptest.NewRecorder()
	h.HandleChat(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"utterance":"hours?"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"We open at 11:30.","newState":null}`, w.Body.String())
}

func TestHandleChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"utterance":`},
		{"missing utterance", `{"priorState":null}`},
		{"blank utterance", `{"utterance":"   "}`},
		{"wrong type", `{"utterance":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := &recordingTurns{}
			h := NewHandler(turns, logging.New("error"))
			w := httptest.NewRecorder()
			h.HandleChat(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, turns.turns)
		})
	}
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws" + query
	header := http.Header{"Origin": []string{srv.URL}}
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandleWebSocket(t *testing.T) {
	turns := &recordingTurns{result: conversation.TurnResult{
		Reply: "What email address should we send the confirmation to?",
		State: &booking.DialogueState{Step: booking.StepEmail},
	}}
	h := NewHandler(turns, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialWS(t, srv, "?session=abc")

	var frame OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, OutboundFrame{Type: "session", SessionID: "abc"}, frame)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	frame = OutboundFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "pong", frame.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "utterance": "  "}))
	frame = OutboundFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":       "message",
		"utterance":  "I'm Ana",
		"priorState": map[string]any{"step": "name"},
	}))
	frame = OutboundFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "reply", frame.Type)
	assert.Equal(t, "What email address should we send the confirmation to?", frame.Reply)
	require.NotNil(t, frame.NewState)
	assert.Equal(t, booking.StepEmail, frame.NewState.Step)

	turns.mu.Lock()
	defer turns.mu.Unlock()
	require.Len(t, turns.turns, 1)
	assert.Equal(t, "I'm Ana", turns.turns[0].Utterance)
	assert.JSONEq(t, `{"step":"name"}`, string(turns.turns[0].PriorState))
}

func TestHandleWebSocket_GeneratesSession(t *testing.T) {
	h := NewHandler(&recordingTurns{}, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialWS(t, srv, "")
	var frame OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "session", frame.Type)
	assert.Len(t, frame.SessionID, 32)
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.Len(t, s1, 32)
	assert.NotEqual(t, s1, s2)
}
