package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/metrics"
)

const DefaultTypingInterval = 4 * time.Second

// BusyIndicator keeps the platform's "typing" signal alive while a slow
// operation runs.
type BusyIndicator struct {
	typer    interfaces.TypingNotifier
	interval time.Duration
	logger   *slog.Logger
}

func NewBusyIndicator(typer interfaces.TypingNotifier, interval time.Duration, logger *slog.Logger) *BusyIndicator {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BusyIndicator{typer: typer, interval: interval, logger: logger}
}

// BusyHandle controls one running indicator.
type BusyHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start emits the signal before returning and then once per interval until
// the handle is stopped or ctx ends.
func (b *BusyIndicator) Start(ctx context.Context, chatID string) *BusyHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &BusyHandle{cancel: cancel, done: make(chan struct{})}

	b.emit(ctx, chatID)

	metrics.BusyIndicatorsActive.Inc()
	go func() {
		defer close(h.done)
		defer metrics.BusyIndicatorsActive.Dec()

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			b.emit(ctx, chatID)
		}
	}()
	return h
}

func (b *BusyIndicator) emit(ctx context.Context, chatID string) {
	if ctx.Err() != nil {
		return
	}
	if err := b.typer.SendTyping(ctx, chatID); err != nil && ctx.Err() == nil {
		b.logger.Debug("typing signal failed", "chat_id", chatID, "error", err)
	}
}

// Stop cancels the indicator and waits for its goroutine to exit. Safe to
// call more than once.
func (h *BusyHandle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

func (h *BusyHandle) Done() <-chan struct{} {
	return h.done
}

// RunBusy posts a placeholder, runs fn with the indicator active and, on every
// exit path, stops the indicator and removes the placeholder before returning.
func RunBusy[T any](ctx context.Context, ind *BusyIndicator, t interfaces.Transport, chatID, placeholder string, fn func(context.Context) T) T {
	var ref entities.MessageRef
	if placeholder != "" {
		r, err := t.SendText(ctx, chatID, placeholder, entities.SendOptions{})
		if err != nil {
			ind.logger.Warn("placeholder send failed", "chat_id", chatID, "error", err)
		} else {
			ref = r
		}
	}

	h := ind.Start(ctx, chatID)
	defer func() {
		h.Stop()
		if ref.IsZero() {
			return
		}
		if err := t.DeleteMessage(context.WithoutCancel(ctx), ref); err != nil {
			ind.logger.Debug("placeholder delete failed", "chat_id", chatID, "error", err)
		}
	}()
	return fn(ctx)
}
