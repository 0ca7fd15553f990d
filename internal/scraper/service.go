package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"
	"github.com/moviedeck/cine-scraper/internal/browser"
	"github.com/moviedeck/cine-scraper/internal/models"
	"github.com/moviedeck/cine-scraper/internal/parser"
	"github.com/moviedeck/cine-scraper/internal/ratelimit"
)

// ErrNotFound reports that a search yielded no usable candidates.
var ErrNotFound = errors.New("no matching movie found")

const searchCandidateCap = 20

// MovieStore is the persistence sink: insert-that-skips-on-conflict keyed on
// the external id, never updating existing rows.
type MovieStore interface {
	InsertIgnore(ctx context.Context, movies []*models.Movie) (inserted, duplicates int, err error)
}

// CrawlSummary reports one batch run.
type CrawlSummary struct {
	PagesVisited int `json:"pages_visited"`
	Collected    int `json:"collected"`
	Enriched     int `json:"enriched"`
	Inserted     int `json:"inserted"`
	Duplicates   int `json:"duplicates"`
}

// ScrapeResult is the outcome of a single-movie scrape.
type ScrapeResult struct {
	Movie         *models.Movie `json:"movie"`
	AlreadyExists bool          `json:"already_exists"`
}

// Service runs the extraction pipeline end to end: list pages to stubs,
// stubs to enriched records, records to the store. One browser session, one
// sequential traversal; stage failures degrade the affected record instead
// of aborting the run.
type Service struct {
	browser     *browser.Browser
	store       MovieStore
	list        *ListCrawler
	detail      *DetailExtractor
	reviews     *ReviewCrawler
	itemLimiter ratelimit.RateLimiter
	pageLimiter ratelimit.RateLimiter
	logger      *slog.Logger
}

func NewService(b *browser.Browser, store MovieStore, itemLimiter, pageLimiter ratelimit.RateLimiter, maxReviewRounds int) *Service {
	return &Service{
		browser:     b,
		store:       store,
		list:        NewListCrawler(b),
		detail:      NewDetailExtractor(b),
		reviews:     NewReviewCrawler(maxReviewRounds),
		itemLimiter: itemLimiter,
		pageLimiter: pageLimiter,
		logger:      slog.Default().With("component", "scrape_service"),
	}
}

// RunFullCrawl walks the rating list for the given number of pages, enriches
// every newly seen stub and commits the batch. Only the initial list load is
// fatal; pagination stalls and per-record failures degrade.
func (s *Service) RunFullCrawl(ctx context.Context, pages int) (*CrawlSummary, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if !s.list.LoadFirstPage(page, ListURL) {
		return nil, fmt.Errorf("initial list page load failed: %s", ListURL)
	}

	if !s.list.SwitchToAudienceSort(ctx, page) {
		s.logger.Warn("audience sort switch failed, continuing on default view")
	}

	summary := &CrawlSummary{}
	seen := make(map[string]bool)
	reviewSrc := NewPageReviewSource(page)
	var stubs []models.Stub

	for pageNum := 1; pageNum <= pages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if pageNum > 1 {
			if !s.list.GotoPage(ctx, page, pageNum) {
				s.logger.Warn("skipping page after failed transition", "page", pageNum)
				continue
			}
			if err := s.pageLimiter.Wait(ctx); err != nil {
				return summary, err
			}
		}

		cards := s.list.CollectCards(page)
		unique := parser.DedupeStubs(cards, seen)
		stubs = append(stubs, unique...)
		summary.PagesVisited++

		s.logger.Info("list page processed",
			"page", pageNum,
			"cards", len(cards),
			"new", len(unique),
			"total", len(stubs))
	}

	summary.Collected = len(stubs)
	if len(stubs) == 0 {
		return summary, nil
	}

	movies := make([]*models.Movie, 0, len(stubs))
	for i, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		movie := s.enrich(ctx, page, reviewSrc, stub)
		movies = append(movies, movie)
		if movie.HasDetail() {
			summary.Enriched++
		}

		if i < len(stubs)-1 {
			if err := s.itemLimiter.Wait(ctx); err != nil {
				return summary, err
			}
		}
	}

	inserted, duplicates, err := s.store.InsertIgnore(ctx, movies)
	if err != nil {
		return summary, fmt.Errorf("failed to persist batch: %w", err)
	}
	summary.Inserted = inserted
	summary.Duplicates = duplicates

	s.logger.Info("full crawl finished",
		"pages", summary.PagesVisited,
		"collected", summary.Collected,
		"enriched", summary.Enriched,
		"inserted", inserted,
		"duplicates", duplicates)
	return summary, nil
}

// ScrapeByTitle searches the site for a title, enriches the first candidate
// and persists it. ErrNotFound when the search yields nothing.
func (s *Service) ScrapeByTitle(ctx context.Context, title string) (*ScrapeResult, error) {
	stubs, err := s.SearchCandidates(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(stubs) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return s.scrapeStub(ctx, stubs[0])
}

// ScrapeByID enriches and persists one movie addressed directly by its site
// id, skipping the search step.
func (s *Service) ScrapeByID(ctx context.Context, externalID string) (*ScrapeResult, error) {
	stub := models.Stub{
		ExternalID: externalID,
		DetailURL:  parser.DetailURL(externalID),
	}
	return s.scrapeStub(ctx, stub)
}

// SearchCandidates runs the site search and returns deduplicated stub
// summaries for the caller to choose from.
func (s *Service) SearchCandidates(ctx context.Context, query string) ([]models.Stub, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if !s.list.LoadFirstPage(page, parser.SearchURL(query)) {
		return nil, fmt.Errorf("search page load failed for %q", query)
	}

	stubs := parser.DedupeStubs(s.list.CollectCards(page), make(map[string]bool))
	if len(stubs) > searchCandidateCap {
		stubs = stubs[:searchCandidateCap]
	}
	return stubs, nil
}

func (s *Service) scrapeStub(ctx context.Context, stub models.Stub) (*ScrapeResult, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	movie := s.enrich(ctx, page, NewPageReviewSource(page), stub)
	if movie.Title == "" && !movie.HasDetail() {
		return nil, fmt.Errorf("%w: movie %s", ErrNotFound, stub.ExternalID)
	}

	_, duplicates, err := s.store.InsertIgnore(ctx, []*models.Movie{movie})
	if err != nil {
		return nil, fmt.Errorf("failed to persist movie %s: %w", movie.ExternalID, err)
	}

	return &ScrapeResult{Movie: movie, AlreadyExists: duplicates > 0}, nil
}

// enrich runs the detail and review stages for one stub. A page-load timeout
// leaves the stub-only record; review collection failures leave the detail
// fields intact. src must belong to page and is reset before collecting so a
// last-page signal from an earlier movie does not leak into this one.
func (s *Service) enrich(ctx context.Context, page playwright.Page, src *PageReviewSource, stub models.Stub) *models.Movie {
	movie, err := s.detail.Extract(page, stub)
	if err != nil {
		s.logger.Warn("detail extraction degraded",
			"external_id", stub.ExternalID,
			"title", stub.Title,
			"error", err)
		return movie
	}

	src.Reset()
	movie.AudienceReviews = s.reviews.Collect(ctx, src)
	return movie
}
