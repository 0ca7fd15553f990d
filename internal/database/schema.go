package database

import (
	"context"
	"fmt"
)

// Schema creation is idempotent: every statement is create-if-absent so a
// restart never fights an existing deployment.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS movies (
		id               BIGSERIAL PRIMARY KEY,
		external_id      VARCHAR(50) NOT NULL UNIQUE,
		title            VARCHAR(500) NOT NULL,
		thumbnail_url    TEXT,
		detail_url       TEXT,
		critic_rating    DECIMAL(3,1),
		audience_rating  DECIMAL(3,1),
		runtime_minutes  INT,
		release_date     DATE,
		genre            VARCHAR(200),
		country          VARCHAR(200),
		director         VARCHAR(500),
		cast_members     TEXT,
		synopsis         TEXT,
		expert_reviews   JSONB,
		related_links    JSONB,
		audience_reviews JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_title ON movies (title)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_release_date ON movies (release_date)`,

	`CREATE TABLE IF NOT EXISTS scrape_jobs (
		id           UUID PRIMARY KEY,
		kind         VARCHAR(20) NOT NULL,
		query        TEXT,
		pages        INT NOT NULL DEFAULT 0,
		status       VARCHAR(20) NOT NULL,
		inserted     INT NOT NULL DEFAULT 0,
		duplicates   INT NOT NULL DEFAULT 0,
		error        TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at   TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_status ON scrape_jobs (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id   VARCHAR(100) NOT NULL,
		event_type     VARCHAR(100) NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  VARCHAR(200) NOT NULL,
		status         VARCHAR(20) NOT NULL,
		retry_count    INT NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_status ON outbox_event (status, next_retry_at)`,
}

// CreateSchema brings the store up to the expected shape.
func (db *DB) CreateSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
