// Package calendar provides the reservation calendars that decide table
// availability: Google Calendar for deployments and an in-memory calendar for
// local runs.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// GoogleConfig identifies the calendar reservations are written to.
type GoogleConfig struct {
	CalendarID string
	// Location is used for all-day events and the time zone of new events.
	Location *time.Location
	Logger   *logging.Logger
}

// GoogleCalendar implements booking.Calendar on the Calendar v3 API.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	logger     *logging.Logger
}

var _ booking.Calendar = (*GoogleCalendar)(nil)

// NewGoogleCalendar builds a client. Credentials come from opts (for example
// option.WithCredentialsFile); without them application default credentials
// are used.
func NewGoogleCalendar(ctx context.Context, cfg GoogleConfig, opts ...option.ClientOption) (*GoogleCalendar, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	opts = append([]option.ClientOption{option.WithScopes(gcal.CalendarEventsScope)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create google client: %w", err)
	}
	return &GoogleCalendar{
		svc:        svc,
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		logger:     cfg.Logger,
	}, nil
}

// ListEvents returns every non-cancelled event intersecting [timeMin, timeMax).
func (c *GoogleCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]booking.CalendarEvent, error) {
	call := c.svc.Events.List(c.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	var out []booking.CalendarEvent
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item == nil || item.Status == "cancelled" {
				continue
			}
			ev, err := c.convert(item)
			if err != nil {
				c.logger.Warn("calendar: skipping unreadable event", "event_id", item.Id, "error", err)
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	return out, nil
}

// CreateEvent inserts the reservation and returns the new event id.
func (c *GoogleCalendar) CreateEvent(ctx context.Context, req booking.EventRequest) (string, error) {
	ev := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start: &gcal.EventDateTime{
			DateTime: req.Start.In(c.loc).Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: req.End.In(c.loc).Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
	}
	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	if created.Id == "" {
		return "", errors.New("calendar: insert returned no event id")
	}
	c.logger.Info("calendar: reservation event created", "event_id", created.Id)
	return created.Id, nil
}

func (c *GoogleCalendar) convert(item *gcal.Event) (booking.CalendarEvent, error) {
	start, err := c.parseWhen(item.Start)
	if err != nil {
		return booking.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}
	end, err := c.parseWhen(item.End)
	if err != nil {
		return booking.CalendarEvent{}, fmt.Errorf("end: %w", err)
	}
	return booking.CalendarEvent{ID: item.Id, Summary: item.Summary, Start: start, End: end}, nil
}

// parseWhen reads either a timed or an all-day boundary.
func (c *GoogleCalendar) parseWhen(w *gcal.EventDateTime) (time.Time, error) {
	if w == nil {
		return time.Time{}, nil
	}
	if w.DateTime != "" {
		return time.Parse(time.RFC3339, w.DateTime)
	}
	if w.Date != "" {
		return time.ParseInLocation("2006-01-02", w.Date, c.loc)
	}
	return time.Time{}, nil
}
