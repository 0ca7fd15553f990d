package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) GetPendingOutboxEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *mockOutboxRepo) MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, publishErr error) error {
	return m.Called(ctx, id, publishErr).Error(0)
}

type mockRedisClient struct {
	mock.Mock
}

func (m *mockRedisClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	args := m.Called(ctx, a)
	return args.Get(0).(*redis.StringCmd)
}

func pendingEvent(stream string) *OutboxEvent {
	payload, _ := json.Marshal(map[string]string{"external_id": "1001"})
	event := NewOutboxEvent("movie", "1001", "MOVIE_INGESTED", stream, payload)
	event.CreatedAt = time.Now()
	return event
}

func TestRelayProcessOncePublishes(t *testing.T) {
	repo := &mockOutboxRepo{}
	redisClient := &mockRedisClient{}
	relay := NewRelay(repo, redisClient, time.Second)

	event := pendingEvent("stream:movie_catalog")
	repo.On("GetPendingOutboxEvents", mock.Anything, 50).Return([]*OutboxEvent{event}, nil)
	redisClient.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.Stream == "stream:movie_catalog" &&
			a.Values.(map[string]interface{})["event_type"] == "MOVIE_INGESTED"
	})).Return(redis.NewStringResult("1-0", nil))
	repo.On("MarkOutboxEventProcessed", mock.Anything, event.ID).Return(nil)

	require.NoError(t, relay.ProcessOnce(context.Background()))

	repo.AssertExpectations(t)
	redisClient.AssertExpectations(t)
}

func TestRelayProcessOnceMarksFailure(t *testing.T) {
	repo := &mockOutboxRepo{}
	redisClient := &mockRedisClient{}
	relay := NewRelay(repo, redisClient, time.Second)

	bad := pendingEvent("stream:movie_catalog")
	good := pendingEvent("stream:movie_catalog")
	repo.On("GetPendingOutboxEvents", mock.Anything, 50).Return([]*OutboxEvent{bad, good}, nil)

	publishErr := errors.New("stream unavailable")
	redisClient.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.Values.(map[string]interface{})["event_id"] == bad.ID.String()
	})).Return(redis.NewStringResult("", publishErr))
	redisClient.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.Values.(map[string]interface{})["event_id"] == good.ID.String()
	})).Return(redis.NewStringResult("1-0", nil))

	repo.On("MarkOutboxEventFailed", mock.Anything, bad.ID, publishErr).Return(nil)
	repo.On("MarkOutboxEventProcessed", mock.Anything, good.ID).Return(nil)

	require.NoError(t, relay.ProcessOnce(context.Background()),
		"one bad event must not stop the batch")

	repo.AssertExpectations(t)
	redisClient.AssertExpectations(t)
}

func TestRelayProcessOnceQueryError(t *testing.T) {
	repo := &mockOutboxRepo{}
	redisClient := &mockRedisClient{}
	relay := NewRelay(repo, redisClient, time.Second)

	repo.On("GetPendingOutboxEvents", mock.Anything, 50).Return(nil, errors.New("db down"))

	assert.Error(t, relay.ProcessOnce(context.Background()))
	redisClient.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
}
