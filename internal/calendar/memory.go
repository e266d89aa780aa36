package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
)

// MemoryCalendar keeps events in process. Used when no Google calendar is
// configured so the booking flow still works locally.
type MemoryCalendar struct {
	mu     sync.RWMutex
	events []booking.CalendarEvent
}

var _ booking.Calendar = (*MemoryCalendar)(nil)

func NewMemoryCalendar(seed ...booking.CalendarEvent) *MemoryCalendar {
	return &MemoryCalendar{events: append([]booking.CalendarEvent(nil), seed...)}
}

func (c *MemoryCalendar) ListEvents(_ context.Context, timeMin, timeMax time.Time) ([]booking.CalendarEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []booking.CalendarEvent
	for _, ev := range c.events {
		if ev.Start.Before(timeMax) && ev.End.After(timeMin) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (c *MemoryCalendar) CreateEvent(_ context.Context, req booking.EventRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.events = append(c.events, booking.CalendarEvent{
		ID:      id,
		Summary: req.Summary,
		Start:   req.Start,
		End:     req.End,
	})
	return id, nil
}
