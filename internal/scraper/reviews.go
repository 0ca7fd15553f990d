package scraper

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/moviedeck/cine-scraper/internal/models"
	"github.com/moviedeck/cine-scraper/internal/parser"
)

const (
	// DefaultMaxReviewRounds bounds the nested review pagination.
	DefaultMaxReviewRounds = 20

	reviewSettleDelay = 2 * time.Second
	dialogSettleDelay = 500 * time.Millisecond
)

// ReviewPageSource abstracts the live page for the review paginator so the
// round loop can be exercised without a browser.
type ReviewPageSource interface {
	// Content returns the current page snapshot.
	Content() (string, error)
	// Advance moves to the given round (2-based; round 1 is already
	// loaded). It reports whether a control was found and clicked, and
	// whether the page signalled that the last round was reached.
	Advance(round int) (advanced bool, lastPage bool)
}

// ReviewCrawler pages through the nested audience-review list, deduplicating
// by content fingerprint and aggregating until exhaustion or stagnation.
type ReviewCrawler struct {
	parser      *parser.Cine21Parser
	logger      *slog.Logger
	maxRounds   int
	settleDelay time.Duration
}

func NewReviewCrawler(maxRounds int) *ReviewCrawler {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxReviewRounds
	}
	return &ReviewCrawler{
		parser:      parser.NewCine21Parser(),
		logger:      slog.Default().With("component", "review_crawler"),
		maxRounds:   maxRounds,
		settleDelay: reviewSettleDelay,
	}
}

// Collect parses round 1 from the already-loaded page, then advances round
// by round. It stops at maxRounds, when no control exists for the next
// round, when the page announces the last round, or when a round past the
// first contributes nothing new (the stagnation rule: monotonically fresh
// content is assumed per round, which a source that repeats a page
// non-adjacently would violate).
func (c *ReviewCrawler) Collect(ctx context.Context, src ReviewPageSource) []models.AudienceReview {
	seen := make(map[string]bool)
	var collected []models.AudienceReview

	for round := 1; round <= c.maxRounds; round++ {
		if round > 1 {
			advanced, lastPage := src.Advance(round)
			if lastPage {
				c.logger.Debug("last review round announced", "round", round)
				break
			}
			if !advanced {
				c.logger.Debug("no control for review round", "round", round)
				break
			}

			// No mutation-polling in this sub-loop; a fixed settle delay
			// is enough for the small review widget.
			select {
			case <-ctx.Done():
				return collected
			case <-time.After(c.settleDelay):
			}
		}

		html, err := src.Content()
		if err != nil {
			c.logger.Warn("failed to snapshot review round", "round", round, "error", err)
			break
		}

		newCount := 0
		for _, entry := range c.parser.ParseReviewEntries(html) {
			key := parser.ReviewKey(entry.Body)
			if seen[key] {
				continue
			}
			seen[key] = true
			collected = append(collected, entry)
			newCount++
		}

		c.logger.Debug("review round collected", "round", round, "new", newCount, "total", len(collected))

		if round > 1 && newCount == 0 {
			break
		}
	}

	return collected
}

// PageReviewSource adapts a live playwright page to ReviewPageSource.
// Native confirmation dialogs raised by the pagination controls are accepted
// automatically; a dialog mentioning the last page flips lastPage. One source
// per page: the dialog listener is registered exactly once and the source is
// reused across movies, with Reset clearing the signal between collections.
type PageReviewSource struct {
	page        playwright.Page
	logger      *slog.Logger
	sawLastPage atomic.Bool
}

// NewPageReviewSource wires dialog auto-accept onto the page and returns the
// adapter. Call it once per page; every call adds another listener.
func NewPageReviewSource(page playwright.Page) *PageReviewSource {
	src := &PageReviewSource{
		page:   page,
		logger: slog.Default().With("component", "review_crawler"),
	}
	page.OnDialog(func(dialog playwright.Dialog) {
		if strings.Contains(dialog.Message(), "마지막") {
			src.sawLastPage.Store(true)
		}
		if err := dialog.Accept(); err != nil {
			src.logger.Warn("failed to accept dialog", "error", err)
		}
	})
	return src
}

// Reset clears the last-page signal left by a previous collection on the
// same page.
func (s *PageReviewSource) Reset() {
	s.sawLastPage.Store(false)
}

func (s *PageReviewSource) Content() (string, error) {
	return s.page.Content()
}

func (s *PageReviewSource) Advance(round int) (bool, bool) {
	clicked := s.clickRoundNumber(round) || s.clickNextControl()
	if !clicked {
		return false, false
	}

	// Give a native confirm dialog time to fire and be accepted.
	time.Sleep(dialogSettleDelay)
	return true, s.sawLastPage.Load()
}

// clickRoundNumber clicks an element whose visible text exactly equals the
// round number.
func (s *PageReviewSource) clickRoundNumber(round int) bool {
	buttons := s.page.GetByText(strconv.Itoa(round), playwright.PageGetByTextOptions{
		Exact: playwright.Bool(true),
	})
	count, err := buttons.Count()
	if err != nil || count == 0 {
		return false
	}

	for i := 0; i < count; i++ {
		button := buttons.Nth(i)
		visible, err := button.IsVisible()
		if err != nil || !visible {
			continue
		}
		if _, err := button.Evaluate(`el => { el.scrollIntoView({block: 'center'}); el.click(); }`, nil); err != nil {
			continue
		}
		return true
	}
	return false
}

// clickNextControl falls back to a generic "next" control.
func (s *PageReviewSource) clickNextControl() bool {
	next := s.page.Locator(`text=다음`).Or(s.page.Locator(`text=next`))
	count, err := next.Count()
	if err != nil || count == 0 {
		return false
	}

	for i := 0; i < count; i++ {
		button := next.Nth(i)
		visible, err := button.IsVisible()
		if err != nil || !visible {
			continue
		}
		if _, err := button.Evaluate(`el => el.click()`, nil); err != nil {
			continue
		}
		return true
	}
	return false
}
