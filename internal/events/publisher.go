// Package events wires the scraping pipeline to the outbox table. Every
// newly stored movie produces a MOVIE_INGESTED event in the same
// transaction as its row, so downstream consumers never see a movie
// announced that was not committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/moviedeck/cine-scraper/internal/database"
	"github.com/moviedeck/cine-scraper/internal/models"
)

const (
	EventTypeMovieIngested = "MOVIE_INGESTED"

	AggregateTypeMovie = "movie"

	// DefaultStream is the Redis stream movie events are relayed onto.
	DefaultStream = "stream:movie_catalog"
)

// MovieIngestedPayload is the JSON body of a MOVIE_INGESTED event.
type MovieIngestedPayload struct {
	ExternalID  string  `json:"external_id"`
	Title       string  `json:"title"`
	DetailURL   string  `json:"detail_url"`
	ReleaseDate *string `json:"release_date,omitempty"`
	Director    *string `json:"director,omitempty"`
	IngestedAt  string  `json:"ingested_at"`
}

// Store persists movie batches and emits outbox events for every newly
// inserted row. It satisfies the sink interface the scraper writes to.
type Store struct {
	db     *database.DB
	stream string
	logger *slog.Logger
}

func NewStore(db *database.DB, stream string) *Store {
	if stream == "" {
		stream = DefaultStream
	}
	return &Store{
		db:     db,
		stream: stream,
		logger: slog.Default().With("component", "event_store"),
	}
}

// InsertIgnore stores the batch with insert-ignore semantics and writes one
// MOVIE_INGESTED outbox event per inserted row, all in one transaction.
// Duplicate rows produce no event.
func (s *Store) InsertIgnore(ctx context.Context, movies []*models.Movie) (inserted, duplicates int, err error) {
	if len(movies) == 0 {
		return 0, 0, nil
	}

	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, m := range movies {
			wasInserted, insErr := database.InsertMovieTx(ctx, tx, m)
			if insErr != nil {
				return insErr
			}
			if !wasInserted {
				duplicates++
				continue
			}
			inserted++

			event, evErr := s.buildIngestedEvent(m)
			if evErr != nil {
				return evErr
			}
			if evErr := database.InsertOutboxEventTx(ctx, tx, event); evErr != nil {
				return evErr
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if inserted > 0 {
		s.logger.Info("movie batch stored",
			"inserted", inserted,
			"duplicates", duplicates,
			"stream", s.stream)
	}
	return inserted, duplicates, nil
}

func (s *Store) buildIngestedEvent(m *models.Movie) (*database.OutboxEvent, error) {
	payload, err := json.Marshal(MovieIngestedPayload{
		ExternalID:  m.ExternalID,
		Title:       m.Title,
		DetailURL:   m.DetailURL,
		ReleaseDate: m.ReleaseDate,
		Director:    m.Director,
		IngestedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload for %s: %w", m.ExternalID, err)
	}
	return database.NewOutboxEvent(
		AggregateTypeMovie, m.ExternalID, EventTypeMovieIngested, s.stream, payload,
	), nil
}
