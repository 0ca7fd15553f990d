package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/moviedeck/cine-scraper/internal/models"
)

const insertMovieQuery = `
	INSERT INTO movies (
		external_id, title, thumbnail_url, detail_url,
		critic_rating, audience_rating, runtime_minutes, release_date,
		genre, country, director, cast_members, synopsis,
		expert_reviews, related_links, audience_reviews
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)
	ON CONFLICT (external_id) DO NOTHING`

// InsertIgnore writes the batch, skipping any movie whose external id is
// already stored. Existing rows are never updated. Returns how many rows
// were inserted and how many were skipped as duplicates.
func (db *DB) InsertIgnore(ctx context.Context, movies []*models.Movie) (inserted, duplicates int, err error) {
	if len(movies) == 0 {
		return 0, 0, nil
	}

	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, m := range movies {
			wasInserted, insErr := InsertMovieTx(ctx, tx, m)
			if insErr != nil {
				return insErr
			}
			if wasInserted {
				inserted++
			} else {
				duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, duplicates, nil
}

// InsertMovieTx inserts one movie inside the caller's transaction. Returns
// false without error when the external id already exists.
func InsertMovieTx(ctx context.Context, tx pgx.Tx, m *models.Movie) (bool, error) {
	expertJSON, err := marshalJSONB(m.ExpertReviews)
	if err != nil {
		return false, fmt.Errorf("failed to encode expert reviews for %s: %w", m.ExternalID, err)
	}
	linksJSON, err := marshalJSONB(m.RelatedLinks)
	if err != nil {
		return false, fmt.Errorf("failed to encode related links for %s: %w", m.ExternalID, err)
	}
	audienceJSON, err := marshalJSONB(m.AudienceReviews)
	if err != nil {
		return false, fmt.Errorf("failed to encode audience reviews for %s: %w", m.ExternalID, err)
	}

	tag, err := tx.Exec(ctx, insertMovieQuery,
		m.ExternalID, m.Title, m.ThumbnailURL, m.DetailURL,
		m.CriticRating, m.AudienceRating, m.RuntimeMinutes, m.ReleaseDate,
		m.Genre, m.Country, m.Director, m.Cast, m.Synopsis,
		expertJSON, linksJSON, audienceJSON,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert movie %s: %w", m.ExternalID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// marshalJSONB keeps JSONB columns NULL rather than storing "null" or "[]"
// for absent data.
func marshalJSONB[T any](items []T) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

const selectMovieColumns = `
	external_id, title, thumbnail_url, detail_url,
	critic_rating, audience_rating, runtime_minutes,
	to_char(release_date, 'YYYY-MM-DD'),
	genre, country, director, cast_members, synopsis,
	expert_reviews, related_links, audience_reviews, created_at`

// GetMovieByExternalID fetches one stored movie. Returns pgx.ErrNoRows if
// the id is unknown.
func (db *DB) GetMovieByExternalID(ctx context.Context, externalID string) (*models.Movie, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+selectMovieColumns+` FROM movies WHERE external_id = $1`, externalID)
	return scanMovie(row)
}

// Sort orders accepted by ListMovies. The column list is a whitelist, never
// caller input.
const (
	SortRecent   = "recent"
	SortRating   = "rating"
	SortReleased = "released"
)

// ListMovies returns a page of stored movies in the given order, defaulting
// to most recently scraped.
func (db *DB) ListMovies(ctx context.Context, limit, offset int, sort string) ([]*models.Movie, error) {
	if limit <= 0 {
		limit = 50
	}

	orderBy := "created_at DESC"
	switch sort {
	case SortRating:
		orderBy = "audience_rating DESC NULLS LAST, created_at DESC"
	case SortReleased:
		orderBy = "release_date DESC NULLS LAST, created_at DESC"
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+selectMovieColumns+` FROM movies ORDER BY `+orderBy+` LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	var movies []*models.Movie
	for rows.Next() {
		m, scanErr := scanMovie(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func scanMovie(row pgx.Row) (*models.Movie, error) {
	var (
		m            models.Movie
		expertJSON   []byte
		linksJSON    []byte
		audienceJSON []byte
		scrapedAt    time.Time
	)
	err := row.Scan(
		&m.ExternalID, &m.Title, &m.ThumbnailURL, &m.DetailURL,
		&m.CriticRating, &m.AudienceRating, &m.RuntimeMinutes, &m.ReleaseDate,
		&m.Genre, &m.Country, &m.Director, &m.Cast, &m.Synopsis,
		&expertJSON, &linksJSON, &audienceJSON, &scrapedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan movie: %w", err)
	}
	m.ScrapedAt = scrapedAt

	if len(expertJSON) > 0 {
		if err := json.Unmarshal(expertJSON, &m.ExpertReviews); err != nil {
			return nil, fmt.Errorf("failed to decode expert reviews for %s: %w", m.ExternalID, err)
		}
	}
	if len(linksJSON) > 0 {
		if err := json.Unmarshal(linksJSON, &m.RelatedLinks); err != nil {
			return nil, fmt.Errorf("failed to decode related links for %s: %w", m.ExternalID, err)
		}
	}
	if len(audienceJSON) > 0 {
		if err := json.Unmarshal(audienceJSON, &m.AudienceReviews); err != nil {
			return nil, fmt.Errorf("failed to decode audience reviews for %s: %w", m.ExternalID, err)
		}
	}
	return &m, nil
}

// CountMovies returns the number of stored movies.
func (db *DB) CountMovies(ctx context.Context) (int, error) {
	var count int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return count, nil
}

// FieldStats reports per-field completeness of the stored catalog. Nullable
// columns only count rows where extraction actually produced a value.
type FieldStats struct {
	Total           int `json:"total"`
	WithCritic      int `json:"with_critic_rating"`
	WithAudience    int `json:"with_audience_rating"`
	WithRuntime     int `json:"with_runtime"`
	WithReleaseDate int `json:"with_release_date"`
	WithDirector    int `json:"with_director"`
	WithSynopsis    int `json:"with_synopsis"`
	WithExpertRevs  int `json:"with_expert_reviews"`
	WithAudienceRev int `json:"with_audience_reviews"`
}

// GetFieldStats aggregates completeness counts in a single scan.
func (db *DB) GetFieldStats(ctx context.Context) (*FieldStats, error) {
	var s FieldStats
	err := db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(critic_rating),
			COUNT(audience_rating),
			COUNT(runtime_minutes),
			COUNT(release_date),
			COUNT(director),
			COUNT(synopsis),
			COUNT(expert_reviews),
			COUNT(audience_reviews)
		FROM movies`).Scan(
		&s.Total, &s.WithCritic, &s.WithAudience, &s.WithRuntime,
		&s.WithReleaseDate, &s.WithDirector, &s.WithSynopsis,
		&s.WithExpertRevs, &s.WithAudienceRev,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate movie stats: %w", err)
	}
	return &s, nil
}
