package scraper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollUntilChangedObservesChange(t *testing.T) {
	var calls atomic.Int32
	snapshot := func() (string, error) {
		if calls.Add(1) >= 3 {
			return "after", nil
		}
		return "before", nil
	}

	ok := PollUntilChanged(context.Background(), 5*time.Millisecond, time.Second,
		snapshot, func(current string) bool { return current != "before" })

	assert.True(t, ok)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestPollUntilChangedTimesOut(t *testing.T) {
	snapshot := func() (string, error) { return "static", nil }

	start := time.Now()
	ok := PollUntilChanged(context.Background(), 5*time.Millisecond, 50*time.Millisecond,
		snapshot, func(current string) bool { return current != "static" })

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollUntilChangedToleratesSnapshotErrors(t *testing.T) {
	var calls atomic.Int32
	snapshot := func() (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("page detached")
		}
		return "loaded", nil
	}

	ok := PollUntilChanged(context.Background(), 5*time.Millisecond, time.Second,
		snapshot, func(current string) bool { return current == "loaded" })

	assert.True(t, ok)
}

func TestPollUntilChangedHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := PollUntilChanged(ctx, 5*time.Millisecond, time.Second,
		func() (string, error) { return "static", nil },
		func(current string) bool { return false })

	assert.False(t, ok)
}
