package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviedeck/cine-scraper/internal/models"
)

// testDB connects to the database named by TEST_DATABASE_DSN. Without it the
// integration tests are skipped, so the suite stays runnable offline.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewFromDSN(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.CreateSchema(ctx))
	t.Cleanup(db.Close)
	return db
}

func testMovie(externalID, title string) *models.Movie {
	m := models.NewMovie(models.Stub{
		ExternalID: externalID,
		Title:      title,
		DetailURL:  "https://cine21.com/movie/info?movie_id=" + externalID,
	})
	rating := 8.5
	date := "2019-05-30"
	m.CriticRating = &rating
	m.ReleaseDate = &date
	m.AudienceReviews = []models.AudienceReview{
		{RatingText: "★★★★★", Body: "통합 테스트용으로 충분히 긴 관람평 본문입니다."},
	}
	return m
}

func TestInsertIgnoreRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id := fmt.Sprintf("it-%d", time.Now().UnixNano())
	movie := testMovie(id, "기생충")

	inserted, duplicates, err := db.InsertIgnore(ctx, []*models.Movie{movie})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, duplicates)

	// A second insert with different data must be ignored, never an update.
	changed := testMovie(id, "다른 제목")
	inserted, duplicates, err = db.InsertIgnore(ctx, []*models.Movie{changed})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, duplicates)

	stored, err := db.GetMovieByExternalID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "기생충", stored.Title, "the original row is kept untouched")
	require.NotNil(t, stored.CriticRating)
	assert.InDelta(t, 8.5, *stored.CriticRating, 0.001)
	require.NotNil(t, stored.ReleaseDate)
	assert.Equal(t, "2019-05-30", *stored.ReleaseDate)
	require.Len(t, stored.AudienceReviews, 1)
	assert.Equal(t, "★★★★★", stored.AudienceReviews[0].RatingText)
}

func TestInsertIgnoreMixedBatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	base := time.Now().UnixNano()
	first := testMovie(fmt.Sprintf("it-%d-a", base), "영화 하나")
	second := testMovie(fmt.Sprintf("it-%d-b", base), "영화 둘")

	inserted, duplicates, err := db.InsertIgnore(ctx, []*models.Movie{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, duplicates)

	third := testMovie(fmt.Sprintf("it-%d-c", base), "영화 셋")
	inserted, duplicates, err = db.InsertIgnore(ctx, []*models.Movie{first, third})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, duplicates)
}

func TestInsertIgnoreEmptyBatch(t *testing.T) {
	db := &DB{}
	inserted, duplicates, err := db.InsertIgnore(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Zero(t, duplicates)
}

func TestGetFieldStats(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	movie := testMovie(fmt.Sprintf("it-%d-stats", time.Now().UnixNano()), "통계 영화")
	_, _, err := db.InsertIgnore(ctx, []*models.Movie{movie})
	require.NoError(t, err)

	stats, err := db.GetFieldStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Total, 1)
	assert.GreaterOrEqual(t, stats.WithCritic, 1)
	assert.GreaterOrEqual(t, stats.WithAudienceRev, 1)
}
