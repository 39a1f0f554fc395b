// Package relay delivers committed domain events from the store outbox to
// a publisher. Delivery is at-least-once: an event is marked published only
// after the publisher accepts it.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

type Outbox interface {
	ListPendingEvents(ctx context.Context, limit int) ([]domain.Event, error)
	MarkEventPublished(ctx context.Context, id string, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type Clock interface {
	Now() time.Time
}

type Relay struct {
	Outbox    Outbox
	Publisher Publisher
	Clock     Clock
	BatchSize int
	Interval  time.Duration
	Logger    *slog.Logger
}

func (r Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunOnce publishes one batch. It stops at the first publish failure so
// later events are not delivered ahead of earlier ones.
func (r Relay) RunOnce(ctx context.Context) (int, error) {
	logger := r.logger()
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingEvents(ctx, limit)
	if err != nil {
		logger.Error("outbox list failed",
			"event", "outbox_list_failed",
			"error", err.Error(),
		)
		return 0, err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published := 0
	for _, event := range pending {
		if err := r.Publisher.Publish(ctx, event); err != nil {
			logger.Error("outbox publish failed",
				"event", "outbox_publish_failed",
				"outbox_id", event.ID,
				"kind", event.Kind,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkEventPublished(ctx, event.ID, now); err != nil {
			logger.Error("outbox mark failed",
				"event", "outbox_mark_failed",
				"outbox_id", event.ID,
				"kind", event.Kind,
				"error", err.Error(),
			)
			return published, err
		}
		published++
	}
	return published, nil
}

// Run polls the outbox until ctx is done. Errors are logged and retried on
// the next tick.
func (r Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := r.RunOnce(ctx); err == nil && n > 0 {
			r.logger().Debug("outbox batch published", "count", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
