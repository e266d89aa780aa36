package bootstrap

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/callreports"
	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/conversation"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
	"github.com/wolfman30/restaurant-concierge/internal/voice"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// BuildCallStore keeps per-call dialogue state in redis, or in memory for
// single-instance local runs.
func BuildCallStore(cfg *appconfig.Config, redisClient *redis.Client) voice.CallStore {
	if redisClient == nil {
		return voice.NewMemoryCallStore()
	}
	return voice.NewRedisCallStore(redisClient, cfg.CallStateTTL)
}

// BuildVoiceHandler wires the voice webhook. Call reports are only stored
// when a database is configured.
func BuildVoiceHandler(cfg *appconfig.Config, svc *conversation.Service, answerer conversation.Answerer, calls voice.CallStore, db *sql.DB, m *metrics.ChatMetrics, logger *logging.Logger) *voice.Handler {
	var reports voice.ReportSaver
	if db != nil {
		reports = callreports.NewStore(db)
	} else {
		loggerOrDefault(logger).Warn("DATABASE_URL not set; end-of-call reports are not stored")
	}
	return voice.NewHandler(voice.Config{
		Turns:      svc,
		Answerer:   answerer,
		Normalizer: booking.NewNormalizer(cfg.Location()),
		Calls:      calls,
		Reports:    reports,
		Metrics:    m,
		Logger:     logger,
		Secret:     cfg.VoiceWebhookSecret,
	})
}
