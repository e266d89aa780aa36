package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/restaurant-concierge/internal/http/middleware"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// ChatHandler serves the web chat widget.
type ChatHandler interface {
	HandleChat(w http.ResponseWriter, r *http.Request)
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// VoiceHandler serves the voice assistant webhook.
type VoiceHandler interface {
	HandleWebhook(w http.ResponseWriter, r *http.Request)
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Chat               ChatHandler
	Voice              VoiceHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-IP limit on the chat endpoints; zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Chat != nil {
		r.Route("/api/chat", func(chat chi.Router) {
			if cfg.RateLimitPerSecond > 0 {
				chat.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
			}
			chat.Post("/", cfg.Chat.HandleChat)
			chat.Get("/ws", cfg.Chat.HandleWebSocket)
		})
	}

	if cfg.Voice != nil {
		r.Post("/webhooks/vapi", cfg.Voice.HandleWebhook)
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
