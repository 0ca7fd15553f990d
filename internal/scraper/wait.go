package scraper

import (
	"context"
	"time"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	defaultPollTimeout  = 10 * time.Second
)

// PollUntilChanged waits for an asynchronous, script-driven DOM replacement
// to complete. It re-runs snapshot every interval until changed reports true
// for the current snapshot or the timeout elapses. The page transitions this
// waits on have no navigable URL and no fixed settle time, so comparing
// snapshots is both faster and more reliable than sleeping.
//
// Returns true when a change was observed, false on timeout or context
// cancellation. Snapshot errors are tolerated: the poll simply tries again
// on the next tick.
func PollUntilChanged(ctx context.Context, interval, timeout time.Duration, snapshot func() (string, error), changed func(current string) bool) bool {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		current, err := snapshot()
		if err == nil && changed(current) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
