package jobs

import (
	"context"
	"fmt"
	"time"
)

// StartWorker polls for pending jobs until the context ends. One worker per
// process; the runner slot keeps it from overlapping with API scrapes.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("job worker stopping")
			return
		case <-ticker.C:
			m.processNextJob(ctx)
		}
	}
}

func (m *Manager) processNextJob(ctx context.Context) {
	var (
		jobID, kind string
		query       *string
		pages       int
	)
	err := m.db.QueryRow(ctx, `
		SELECT id, kind, query, pages
		FROM scrape_jobs
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT 1`).Scan(&jobID, &kind, &query, &pages)
	if err != nil {
		// No pending jobs.
		return
	}

	m.logger.Info("processing job", "id", jobID, "kind", kind)

	if err := m.updateJobStatus(ctx, jobID, StatusRunning, nil); err != nil {
		m.logger.Error("failed to update job status", "id", jobID, "error", err)
		return
	}

	q := ""
	if query != nil {
		q = *query
	}

	if err := m.runJob(ctx, jobID, kind, q, pages); err != nil {
		m.logger.Error("job failed", "id", jobID, "error", err)
		if updErr := m.updateJobStatus(ctx, jobID, StatusFailed, err); updErr != nil {
			m.logger.Error("failed to mark job failed", "id", jobID, "error", updErr)
		}
		return
	}

	if err := m.updateJobStatus(ctx, jobID, StatusCompleted, nil); err != nil {
		m.logger.Error("failed to mark job completed", "id", jobID, "error", err)
	}
	m.logger.Info("job completed", "id", jobID)
}

// runJob executes one job while holding the scrape slot.
func (m *Manager) runJob(ctx context.Context, jobID, kind, query string, pages int) error {
	return m.runner.Do(ctx, func() error {
		switch kind {
		case KindFullCrawl:
			summary, err := m.scraper.RunFullCrawl(ctx, pages)
			if err != nil {
				return err
			}
			return m.updateJobCounts(ctx, jobID, summary.Inserted, summary.Duplicates)

		case KindTitle:
			result, err := m.scraper.ScrapeByTitle(ctx, query)
			if err != nil {
				return err
			}
			return m.recordSingleResult(ctx, jobID, result.AlreadyExists)

		case KindMovieID:
			result, err := m.scraper.ScrapeByID(ctx, query)
			if err != nil {
				return err
			}
			return m.recordSingleResult(ctx, jobID, result.AlreadyExists)

		default:
			return fmt.Errorf("unknown job kind %q", kind)
		}
	})
}

func (m *Manager) recordSingleResult(ctx context.Context, jobID string, alreadyExists bool) error {
	inserted, duplicates := 1, 0
	if alreadyExists {
		inserted, duplicates = 0, 1
	}
	return m.updateJobCounts(ctx, jobID, inserted, duplicates)
}
