package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/moviedeck/cine-scraper/internal/database"
	"github.com/moviedeck/cine-scraper/internal/scraper"
)

// Job kinds. A full_crawl walks N list pages; a title job scrapes the best
// search match; a movie_id job scrapes one movie directly.
const (
	KindFullCrawl = "full_crawl"
	KindTitle     = "title"
	KindMovieID   = "movie_id"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

type Manager struct {
	db      *database.DB
	scraper *scraper.Service
	runner  *Runner
	logger  *slog.Logger
}

func NewManager(db *database.DB, svc *scraper.Service, runner *Runner, logger *slog.Logger) *Manager {
	return &Manager{
		db:      db,
		scraper: svc,
		runner:  runner,
		logger:  logger.With("component", "job_manager"),
	}
}

// Job is one queued scrape request and its outcome.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Query       string     `json:"query,omitempty"`
	Pages       int        `json:"pages,omitempty"`
	Status      string     `json:"status"`
	Inserted    int        `json:"inserted"`
	Duplicates  int        `json:"duplicates"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateJob queues a scrape job for the background worker.
func (m *Manager) CreateJob(ctx context.Context, kind, query string, pages int) (*Job, error) {
	switch kind {
	case KindFullCrawl:
		if pages <= 0 {
			pages = 1
		}
	case KindTitle, KindMovieID:
		if query == "" {
			return nil, fmt.Errorf("job kind %s requires a query", kind)
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Query:     query,
		Pages:     pages,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	_, err := m.db.Exec(ctx, `
		INSERT INTO scrape_jobs (id, kind, query, pages, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.Kind, job.Query, job.Pages, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "kind", kind, "query", query, "pages", pages)
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{}
	var query, errMsg *string
	err := m.db.QueryRow(ctx, `
		SELECT id, kind, query, pages, status, inserted, duplicates, error,
		       created_at, started_at, completed_at
		FROM scrape_jobs
		WHERE id = $1`, jobID).Scan(
		&job.ID, &job.Kind, &query, &job.Pages, &job.Status,
		&job.Inserted, &job.Duplicates, &errMsg,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if query != nil {
		job.Query = *query
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return job, nil
}

// ListJobs lists recent jobs, newest first.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := m.db.Query(ctx, `
		SELECT id, kind, query, pages, status, inserted, duplicates, error,
		       created_at, started_at, completed_at
		FROM scrape_jobs
		ORDER BY created_at DESC
		LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		var query, errMsg *string
		if err := rows.Scan(
			&job.ID, &job.Kind, &query, &job.Pages, &job.Status,
			&job.Inserted, &job.Duplicates, &errMsg,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
		); err != nil {
			continue
		}
		if query != nil {
			job.Query = *query
		}
		if errMsg != nil {
			job.Error = *errMsg
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats summarizes job history and catalog completeness.
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	SuccessRate   float64 `json:"success_rate"`

	Movies *database.FieldStats `json:"movies,omitempty"`
}

// GetStats aggregates job counters and delegates catalog counts to the store.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := m.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'running' THEN 1 END),
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM scrape_jobs`).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}

	movieStats, err := m.db.GetFieldStats(ctx)
	if err != nil {
		m.logger.Warn("failed to load movie stats", "error", err)
	} else {
		stats.Movies = movieStats
	}
	return stats, nil
}

func (m *Manager) updateJobStatus(ctx context.Context, jobID, status string, jobErr error) error {
	var err error
	switch {
	case status == StatusRunning:
		_, err = m.db.Exec(ctx,
			`UPDATE scrape_jobs SET status = $1, started_at = NOW() WHERE id = $2`,
			status, jobID)
	case status == StatusFailed && jobErr != nil:
		_, err = m.db.Exec(ctx,
			`UPDATE scrape_jobs SET status = $1, completed_at = NOW(), error = $2 WHERE id = $3`,
			status, jobErr.Error(), jobID)
	default:
		_, err = m.db.Exec(ctx,
			`UPDATE scrape_jobs SET status = $1, completed_at = NOW() WHERE id = $2`,
			status, jobID)
	}
	return err
}

func (m *Manager) updateJobCounts(ctx context.Context, jobID string, inserted, duplicates int) error {
	_, err := m.db.Exec(ctx,
		`UPDATE scrape_jobs SET inserted = $1, duplicates = $2 WHERE id = $3`,
		inserted, duplicates, jobID)
	return err
}
