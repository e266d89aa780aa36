package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

type stubChat struct {
	chats, sockets int
}

func (s *stubChat) HandleChat(w http.ResponseWriter, _ *http.Request) {
	s.chats++
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"reply":"hi","newState":null}`))
}

func (s *stubChat) HandleWebSocket(w http.ResponseWriter, _ *http.Request) {
	s.sockets++
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type stubVoice struct {
	calls int
}

func (s *stubVoice) HandleWebhook(w http.ResponseWriter, _ *http.Request) {
	s.calls++
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func newTestRouter(t *testing.T, mutate func(*Config)) (http.Handler, *stubChat, *stubVoice) {
	t.Helper()
	chat, voice := &stubChat{}, &stubVoice{}
	cfg := &Config{
		Logger: logging.Default(),
		Chat:   chat,
		Voice:  voice,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg), chat, voice
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterRoutes(t *testing.T) {
	router, chat, voice := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"utterance":"hi"}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, chat.chats)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat/ws", nil))
	assert.Equal(t, 1, chat.sockets)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/vapi", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, voice.calls)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestRouterRejectsWrongMethod(t *testing.T) {
	router, chat, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Zero(t, chat.chats)
}

func TestRouterOptionalHandlers(t *testing.T) {
	router, _, _ := newTestRouter(t, func(cfg *Config) {
		cfg.Voice = nil
		cfg.MetricsHandler = nil
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/vapi", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterRateLimitsChat(t *testing.T) {
	router, chat, _ := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimitPerSecond = 0.001
		cfg.RateLimitBurst = 1
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"utterance":"hi"}`))
		req.RemoteAddr = "198.51.100.4:1000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if i == 1 {
			assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		}
	}
	assert.Equal(t, 1, chat.chats)

	// health is not limited
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.4:1000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _, _ := newTestRouter(t, func(cfg *Config) {
		cfg.CORSAllowedOrigins = []string{"https://bistro.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://bistro.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://bistro.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
