package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/metrics"
	"github.com/google/uuid"
)

// EventHandler processes one decoded inbound event.
type EventHandler func(ctx context.Context, ev entities.Event) error

// EventDispatcher hands every accepted event to its own goroutine. Floods
// from a single user are dropped by the rate limiter before that.
type EventDispatcher struct {
	handler EventHandler
	limiter *MessageRateLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewEventDispatcher(handler EventHandler, limiter *MessageRateLimiter, logger *slog.Logger) *EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDispatcher{handler: handler, limiter: limiter, logger: logger}
}

// Dispatch reports whether the event was accepted. Handling outlives the
// caller's context cancellation, so webhook requests can return at once.
// Events arriving after Close are dropped.
func (d *EventDispatcher) Dispatch(ctx context.Context, ev entities.Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if d.limiter != nil && !d.limiter.Allow(ev.UserID) {
		metrics.EventsDroppedTotal.WithLabelValues("rate_limited").Inc()
		d.logger.Debug("event dropped by rate limiter", "event_id", ev.ID, "user_id", ev.UserID)
		return false
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		metrics.EventsDroppedTotal.WithLabelValues("shutting_down").Inc()
		d.logger.Debug("event dropped during shutdown", "event_id", ev.ID, "user_id", ev.UserID)
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		if err := d.handler(ctx, ev); err != nil {
			d.logger.Error("event handling failed", "event_id", ev.ID, "user_id", ev.UserID, "platform", ev.Platform, "error", err)
		}
	}()
	return true
}

// Wait blocks until every dispatched event has been handled.
func (d *EventDispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting events and waits for the accepted ones to finish.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
