package scraper

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"
	"github.com/moviedeck/cine-scraper/internal/browser"
	"github.com/moviedeck/cine-scraper/internal/models"
	"github.com/moviedeck/cine-scraper/internal/parser"
)

// ErrPageLoadTimeout reports that a detail page never produced a body
// element. The record for that stub stays unenriched; the pipeline moves on.
var ErrPageLoadTimeout = errors.New("page load timeout")

// Positional lookups into the detail page's content tree. The site renders
// these blocks without usable class names, so each one is pinned by a
// structural path. When the site layout drifts, fix the constant, not the
// extraction logic.
const (
	synopsisPath   = "xpath=/html/body/div[4]/main/div/div/div/div/section[1]/div/div"
	expertListPath = "xpath=/html/body/div[4]/main/div/div/div/div/section[4]/ul/li"

	// Paths relative to one expert-review list entry.
	expertNamePath   = "xpath=div[1]/p"
	expertRatingPath = "xpath=div[1]/div/p"
	expertBodyPath   = "xpath=div[2]"
)

// relatedLinkPaths are the two fixed slots of the related-articles section,
// each optional.
var relatedLinkPaths = [2]string{
	"xpath=/html/body/div[4]/main/div/div/div/div/section[5]/ul/li[1]/a",
	"xpath=/html/body/div[4]/main/div/div/div/div/section[5]/ul/li[2]/a",
}

const (
	expertReviewCap     = 5
	expertBodyMaxRunes  = 500
	positionalTimeoutMs = 2000
)

// DetailExtractor navigates to one movie's detail page and fills the record
// schema. Missing fields are never errors: each one is tried through its
// selector chain and left absent when nothing matches.
type DetailExtractor struct {
	browser *browser.Browser
	parser  *parser.Cine21Parser
	logger  *slog.Logger
}

func NewDetailExtractor(b *browser.Browser) *DetailExtractor {
	return &DetailExtractor{
		browser: b,
		parser:  parser.NewCine21Parser(),
		logger:  slog.Default().With("component", "detail_extractor"),
	}
}

// Extract enriches a stub into a full record. It returns ErrPageLoadTimeout
// (with the stub-only record) when the page never loads; every other
// extraction failure degrades to an absent field.
func (e *DetailExtractor) Extract(page playwright.Page, stub models.Stub) (*models.Movie, error) {
	movie := models.NewMovie(stub)

	detailURL := stub.DetailURL
	if detailURL == "" {
		detailURL = parser.DetailURL(stub.ExternalID)
	}

	if !e.browser.SafeGoto(page, detailURL) {
		e.logger.Warn("detail page load failed", "external_id", stub.ExternalID, "title", stub.Title)
		return movie, fmt.Errorf("movie %s: %w", stub.ExternalID, ErrPageLoadTimeout)
	}

	// Positional lookups first; the semantic pass below only fills fields
	// that are still absent.
	e.extractSynopsis(page, movie)
	e.extractExpertReviews(page, movie)
	e.extractRelatedLinks(page, movie)

	if html, err := page.Content(); err == nil {
		e.parser.ParseDetail(html, movie)
	} else {
		e.logger.Warn("failed to snapshot detail page", "external_id", stub.ExternalID, "error", err)
	}

	return movie, nil
}

func (e *DetailExtractor) extractSynopsis(page playwright.Page, movie *models.Movie) {
	text, ok := e.textAt(page.Locator(synopsisPath))
	if !ok {
		// Absent here is routine; ParseDetail tries the semantic selectors.
		return
	}
	movie.Synopsis = &text
}

func (e *DetailExtractor) extractExpertReviews(page playwright.Page, movie *models.Movie) {
	items := page.Locator(expertListPath)
	count, err := items.Count()
	if err != nil || count == 0 {
		return
	}

	for i := 0; i < count && len(movie.ExpertReviews) < expertReviewCap; i++ {
		item := items.Nth(i)

		name, ok := e.textAt(item.Locator(expertNamePath))
		if !ok {
			// One broken entry does not terminate the list.
			continue
		}
		rating, _ := e.textAt(item.Locator(expertRatingPath))
		body, _ := e.textAt(item.Locator(expertBodyPath))

		movie.ExpertReviews = append(movie.ExpertReviews, models.ExpertReview{
			Author:     name,
			RatingText: rating,
			Body:       truncateRunes(body, expertBodyMaxRunes),
		})
	}

	if len(movie.ExpertReviews) > 0 {
		e.logger.Debug("expert reviews extracted", "external_id", movie.ExternalID, "count", len(movie.ExpertReviews))
	}
}

func (e *DetailExtractor) extractRelatedLinks(page playwright.Page, movie *models.Movie) {
	for _, path := range relatedLinkPaths {
		link := page.Locator(path)
		if count, err := link.Count(); err != nil || count == 0 {
			continue
		}
		label, ok := e.textAt(link)
		if !ok {
			continue
		}
		href, err := link.GetAttribute("href", playwright.LocatorGetAttributeOptions{
			Timeout: playwright.Float(positionalTimeoutMs),
		})
		if err != nil || href == "" {
			continue
		}
		movie.RelatedLinks = append(movie.RelatedLinks, models.RelatedLink{
			Label: label,
			Href:  parser.ResolveURL(href),
		})
	}
}

// textAt reads the cleaned text of a positional locator, reporting false
// when the element is missing or empty.
func (e *DetailExtractor) textAt(loc playwright.Locator) (string, bool) {
	count, err := loc.Count()
	if err != nil || count == 0 {
		return "", false
	}
	text, err := loc.First().TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(positionalTimeoutMs),
	})
	if err != nil {
		return "", false
	}
	cleaned := parser.CleanText(text)
	return cleaned, cleaned != ""
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
