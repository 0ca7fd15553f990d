package parser

import (
	"github.com/moviedeck/cine-scraper/internal/models"
)

// Parser extracts movie data from page HTML snapshots. All methods are
// tolerant: a field that cannot be found is simply left absent.
type Parser interface {
	ParseCards(html string) []models.Stub
	FirstCardID(html string) string
	ParseDetail(html string, movie *models.Movie)
	ParseReviewEntries(html string) []models.AudienceReview
}
