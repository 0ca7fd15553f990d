package jobs

import "context"

// Runner serializes access to the browser session. The scraper drives one
// Chromium instance, so at most one scrape may be in flight at a time,
// whether it comes from an API request or the background job worker.
type Runner struct {
	slot chan struct{}
}

func NewRunner() *Runner {
	r := &Runner{slot: make(chan struct{}, 1)}
	r.slot <- struct{}{}
	return r
}

// Acquire blocks until the scrape slot is free or the context ends.
func (r *Runner) Acquire(ctx context.Context) error {
	select {
	case <-r.slot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the slot. Must follow a successful Acquire.
func (r *Runner) Release() {
	r.slot <- struct{}{}
}

// Do runs fn while holding the scrape slot.
func (r *Runner) Do(ctx context.Context, fn func() error) error {
	if err := r.Acquire(ctx); err != nil {
		return err
	}
	defer r.Release()
	return fn()
}
