package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/internal/bookings"
	"github.com/wolfman30/restaurant-concierge/internal/calendar"
	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/notify"
	"github.com/wolfman30/restaurant-concierge/internal/sheets"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

func googleOptions(cfg *appconfig.Config) []option.ClientOption {
	if file := strings.TrimSpace(cfg.GoogleCredentialsFile); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

// BuildCalendar returns the Google calendar, or an in-memory calendar when
// none is configured so local runs can still book.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) booking.Calendar {
	logger = loggerOrDefault(logger)
	if strings.TrimSpace(cfg.GoogleCalendarID) == "" {
		logger.Warn("GOOGLE_CALENDAR_ID not set; reservations go to an in-memory calendar")
		return calendar.NewMemoryCalendar()
	}
	cal, err := calendar.NewGoogleCalendar(ctx, calendar.GoogleConfig{
		CalendarID: cfg.GoogleCalendarID,
		Location:   cfg.Location(),
		Logger:     logger,
	}, googleOptions(cfg)...)
	if err != nil {
		logger.Error("google calendar unavailable; using in-memory calendar", "error", err)
		return calendar.NewMemoryCalendar()
	}
	return cal
}

// BuildRecordSink fans records out to the spreadsheet and the Postgres
// ledger, whichever are configured. It returns nil when neither is.
func BuildRecordSink(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) booking.RecordSink {
	logger = loggerOrDefault(logger)
	var sinks booking.MultiSink
	if strings.TrimSpace(cfg.GoogleSheetID) != "" {
		app, err := sheets.NewAppender(ctx, cfg.GoogleSheetID, cfg.GoogleSheetRange, googleOptions(cfg)...)
		if err != nil {
			logger.Error("google sheets unavailable", "error", err)
		} else {
			sinks = append(sinks, sheets.NewReservationSink(app, cfg.Location()))
		}
	}
	if pool != nil {
		sinks = append(sinks, bookings.NewSink(bookings.NewRepository(pool), logger))
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// BuildEmailSender selects the confirmation email provider. EMAIL_PROVIDER
// may be sendgrid, ses, log or auto; auto prefers SendGrid when a key is
// set, then SES when a from address is set.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	logger = loggerOrDefault(logger)
	sendgrid := func() notify.EmailSender {
		from := cfg.SendGridFromEmail
		if from == "" {
			from = cfg.EmailFromAddress
		}
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: from,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	sesSender := func() notify.EmailSender {
		if cfg.EmailFromAddress == "" {
			return nil
		}
		if s := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		sender = sendgrid()
	case "ses":
		sender = sesSender()
	case "log", "stub":
	default:
		if sender = sendgrid(); sender == nil {
			sender = sesSender()
		}
	}
	if sender == nil {
		logger.Info("no email provider configured; confirmation emails are logged only")
		return notify.NewStubEmailSender(logger)
	}
	return sender
}

// BuildIdempotencyStore uses redis when available so retries across
// instances see the same keys. With a Postgres pool the ledger backs it up
// once the redis key has expired.
func BuildIdempotencyStore(redisClient *redis.Client, pool *pgxpool.Pool) booking.IdempotencyStore {
	var cache booking.IdempotencyStore
	if redisClient == nil {
		cache = booking.NewMemoryIdempotencyStore()
	} else {
		cache = booking.NewRedisIdempotencyStore(redisClient, booking.DefaultIdempotencyTTL)
	}
	if pool == nil {
		return cache
	}
	return booking.ChainIdempotency{cache, bookings.NewLedger(bookings.NewRepository(pool))}
}

// FinalizerDeps are the already-built collaborators of the finalizer.
type FinalizerDeps struct {
	Calendar    booking.Calendar
	Sink        booking.RecordSink
	Idempotency booking.IdempotencyStore
	Email       notify.EmailSender
}

func BuildFinalizer(cfg *appconfig.Config, deps FinalizerDeps, logger *logging.Logger) *booking.CalendarFinalizer {
	var notifier booking.Notifier
	if deps.Email != nil {
		notifier = notify.NewConfirmationNotifier(deps.Email, cfg.RestaurantName, cfg.Location(), logger)
	}
	return booking.NewCalendarFinalizer(booking.FinalizerConfig{
		Calendar:       deps.Calendar,
		Sink:           deps.Sink,
		Idempotency:    deps.Idempotency,
		Notifier:       notifier,
		Duration:       time.Duration(cfg.ReservationMinutes) * time.Minute,
		RestaurantName: cfg.RestaurantName,
		Logger:         logger,
	})
}
