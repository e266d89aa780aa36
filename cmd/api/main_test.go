package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMetricsExposesChatMetrics(t *testing.T) {
	handler, m := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveTurn("booking", "web")
	m.ObserveVoiceEvent("transcript")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `restaurant_chat_turns_total{channel="web",intent="booking"} 1`)
	assert.Contains(t, body, "restaurant_voice_webhook_events_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestSetupMetricsUsesPrivateRegistry(t *testing.T) {
	// Registering twice on the default registry would panic.
	assert.NotPanics(t, func() {
		setupMetrics()
		setupMetrics()
	})
}
