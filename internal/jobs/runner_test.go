package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerSerializes(t *testing.T) {
	runner := NewRunner()

	require.NoError(t, runner.Acquire(context.Background()))

	// The slot is held, so a second acquire must block until released.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, runner.Acquire(ctx))

	runner.Release()
	require.NoError(t, runner.Acquire(context.Background()))
	runner.Release()
}

func TestRunnerDo(t *testing.T) {
	runner := NewRunner()

	ran := false
	err := runner.Do(context.Background(), func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// The slot is free again afterward.
	require.NoError(t, runner.Acquire(context.Background()))
	runner.Release()
}

func TestRunnerDoPropagatesCancel(t *testing.T) {
	runner := NewRunner()
	require.NoError(t, runner.Acquire(context.Background()))
	defer runner.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Do(ctx, func() error {
		t.Fatal("must not run while the slot is held")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
