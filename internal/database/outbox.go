package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Outbox event lifecycle. Events are written in the same transaction as the
// movie rows they describe and published to Redis by the relay afterward.
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	OutboxMaxRetryCount = 5
)

type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	TargetStream  string
	Status        string
	RetryCount    int
	ErrorMessage  *string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	NextRetryAt   *time.Time
}

// NewOutboxEvent builds a pending event. Payload must already be valid JSON.
func NewOutboxEvent(aggregateType, aggregateID, eventType, targetStream string, payload json.RawMessage) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		TargetStream:  targetStream,
		Status:        OutboxStatusPending,
	}
}

// InsertOutboxEventTx stores the event inside the caller's transaction so the
// event and the rows it announces commit or roll back together.
func InsertOutboxEventTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type, payload, target_stream, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.AggregateType, event.AggregateID,
		event.EventType, event.Payload, event.TargetStream, event.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// GetPendingOutboxEvents returns events ready for publishing: pending ones
// plus failed ones whose backoff has elapsed, oldest first.
func (db *DB) GetPendingOutboxEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, target_stream,
		       status, retry_count, error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status = $1
		   OR (status = $2 AND retry_count < $3 AND (next_retry_at IS NULL OR next_retry_at <= NOW()))
		ORDER BY created_at ASC
		LIMIT $4`,
		OutboxStatusPending, OutboxStatusFailed, OutboxMaxRetryCount, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.TargetStream,
			&e.Status, &e.RetryCount, &e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// MarkOutboxEventProcessed records a successful publish.
func (db *DB) MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = $1, processed_at = NOW(), error_message = NULL
		WHERE id = $2`,
		OutboxStatusProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return nil
}

// MarkOutboxEventFailed bumps the retry count with exponential backoff and
// moves the event to dead_letter once retries are exhausted.
func (db *DB) MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, publishErr error) error {
	var retryCount int
	err := db.pool.QueryRow(ctx,
		`SELECT retry_count FROM outbox_event WHERE id = $1`, id).Scan(&retryCount)
	if err != nil {
		return fmt.Errorf("failed to read outbox retry count: %w", err)
	}

	retryCount++
	status := OutboxStatusFailed
	if retryCount >= OutboxMaxRetryCount {
		status = OutboxStatusDeadLetter
	}

	backoff := time.Duration(1<<uint(retryCount)) * time.Second
	if backoff > 300*time.Second {
		backoff = 300 * time.Second
	}

	_, err = db.pool.Exec(ctx, `
		UPDATE outbox_event
		SET status = $1, retry_count = $2, error_message = $3, next_retry_at = $4
		WHERE id = $5`,
		status, retryCount, publishErr.Error(), time.Now().Add(backoff), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

// GetOutboxPendingCount returns how many events still await publishing.
func (db *DB) GetOutboxPendingCount(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_event WHERE status IN ($1, $2)`,
		OutboxStatusPending, OutboxStatusFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}

// GetOutboxDeadLetterCount returns how many events exhausted their retries.
func (db *DB) GetOutboxDeadLetterCount(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_event WHERE status = $1`,
		OutboxStatusDeadLetter).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letter events: %w", err)
	}
	return count, nil
}
