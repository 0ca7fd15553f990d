package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the redis client the relay uses.
type RedisClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// OutboxRepo is the subset of DB the relay needs, split out so the relay
// loop can be tested with a mock store.
type OutboxRepo interface {
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error
	MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, publishErr error) error
}

// Relay drains the outbox table into Redis streams. One relay per process is
// enough: each tick reads a batch of pending events and publishes them in
// order.
type Relay struct {
	repo     OutboxRepo
	redis    RedisClient
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewRelay(repo OutboxRepo, redisClient RedisClient, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		repo:     repo,
		redis:    redisClient,
		interval: interval,
		batch:    50,
		logger:   slog.Default().With("component", "outbox_relay"),
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if err := r.ProcessOnce(ctx); err != nil {
				r.logger.Error("outbox relay tick failed", "error", err)
			}
		}
	}
}

// ProcessOnce publishes one batch of pending events. A publish failure marks
// that event for retry and continues with the rest of the batch.
func (r *Relay) ProcessOnce(ctx context.Context) error {
	events, err := r.repo.GetPendingOutboxEvents(ctx, r.batch)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := r.publish(ctx, event); err != nil {
			r.logger.Warn("failed to publish outbox event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"error", err)
			if markErr := r.repo.MarkOutboxEventFailed(ctx, event.ID, err); markErr != nil {
				r.logger.Error("failed to mark outbox event failed", "event_id", event.ID.String(), "error", markErr)
			}
			continue
		}
		if err := r.repo.MarkOutboxEventProcessed(ctx, event.ID); err != nil {
			r.logger.Error("failed to mark outbox event processed", "event_id", event.ID.String(), "error", err)
		}
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	return r.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: map[string]interface{}{
			"event_id":       event.ID.String(),
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
			"data":           string(event.Payload),
			"created_at":     event.CreatedAt.Format(time.RFC3339),
		},
	}).Err()
}
