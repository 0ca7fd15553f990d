package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/moviedeck/cine-scraper/internal/browser"
	"github.com/moviedeck/cine-scraper/internal/models"
	"github.com/moviedeck/cine-scraper/internal/parser"
)

const (
	// ListURL is the rating-sorted movie list whose pagination is AJAX-driven.
	ListURL = parser.BaseURL + "/movie/point"

	listContainerSelector = "#point_list_holder"
	listCardSelector      = "#point_list_holder div.list_with_upthumb_item"
	sortSelectSelector    = "#point_list_order"
	paginationSelector    = ".pagination_wrap .page a"

	// audienceSortValue switches the list to the audience-sorted view.
	audienceSortValue = "nz_dt"
)

// ListCrawler drives the AJAX-paginated list view and extracts card stubs
// from whatever DOM is currently loaded.
type ListCrawler struct {
	browser      *browser.Browser
	parser       *parser.Cine21Parser
	logger       *slog.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewListCrawler(b *browser.Browser) *ListCrawler {
	return &ListCrawler{
		browser:      b,
		parser:       parser.NewCine21Parser(),
		logger:       slog.Default().With("component", "list_crawler"),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
}

// LoadFirstPage navigates to the list URL. Success means the body element
// showed up within the page-load timeout.
func (c *ListCrawler) LoadFirstPage(page playwright.Page, listURL string) bool {
	return c.browser.SafeGoto(page, listURL)
}

// SwitchToAudienceSort selects the audience-sorted view once before
// pagination begins: set the sort select's value and dispatch a synthetic
// change event, then wait for the list container to mutate. Failure is
// non-fatal; the caller proceeds on the default-sorted view.
func (c *ListCrawler) SwitchToAudienceSort(ctx context.Context, page playwright.Page) bool {
	sel := page.Locator(sortSelectSelector)
	if count, err := sel.Count(); err != nil || count == 0 {
		c.logger.Warn("sort select not found, staying on default view")
		return false
	}

	oldHTML, _ := c.containerHTML(page)
	oldFirstID := c.firstCardID(page)

	if _, err := sel.SelectOption(playwright.SelectOptionValues{
		Values: &[]string{audienceSortValue},
	}); err != nil {
		c.logger.Warn("failed to select audience sort", "error", err)
		return false
	}
	if _, err := sel.Evaluate(`el => el.dispatchEvent(new Event('change', { bubbles: true }))`, nil); err != nil {
		c.logger.Warn("failed to dispatch change event", "error", err)
		return false
	}

	if !c.waitListUpdated(ctx, page, oldHTML, oldFirstID) {
		c.logger.Warn("audience sort switch timed out")
		return false
	}
	return true
}

// GotoPage performs one AJAX page transition: snapshot the container, invoke
// the page's own pagination function (falling back to clicking the numbered
// pagination control), then poll until the container content or the first
// card changes. On timeout it returns false but leaves the current DOM for
// the caller to use.
func (c *ListCrawler) GotoPage(ctx context.Context, page playwright.Page, pageNum int) bool {
	oldHTML, err := c.containerHTML(page)
	if err != nil {
		c.logger.Warn("list container missing before pagination", "page", pageNum, "error", err)
	}
	oldFirstID := c.firstCardID(page)

	if _, err := page.Evaluate(`n => fetch_point_list(n)`, pageNum); err != nil {
		c.logger.Debug("pagination function call failed, falling back to button", "page", pageNum, "error", err)
		if !c.clickPageButton(page, pageNum) {
			c.logger.Warn("no pagination control for page", "page", pageNum)
			return false
		}
	}

	if !c.waitListUpdated(ctx, page, oldHTML, oldFirstID) {
		c.logger.Warn("pagination stalled, proceeding with current DOM", "page", pageNum)
		return false
	}
	return true
}

// clickPageButton finds the pagination control whose visible label equals
// the target page number and dispatches a click on it.
func (c *ListCrawler) clickPageButton(page playwright.Page, pageNum int) bool {
	buttons := page.Locator(paginationSelector)
	count, err := buttons.Count()
	if err != nil {
		return false
	}

	label := strconv.Itoa(pageNum)
	for i := 0; i < count; i++ {
		button := buttons.Nth(i)
		text, err := button.TextContent()
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != label {
			continue
		}
		if _, err := button.Evaluate(`el => el.click()`, nil); err != nil {
			c.logger.Warn("pagination button click failed", "page", pageNum, "error", err)
			return false
		}
		return true
	}
	return false
}

// waitListUpdated polls until the container's inner HTML differs from the
// snapshot or the first card's id changes, whichever happens first.
func (c *ListCrawler) waitListUpdated(ctx context.Context, page playwright.Page, oldHTML, oldFirstID string) bool {
	snapshot := func() (string, error) {
		return c.containerHTML(page)
	}
	changed := func(current string) bool {
		if current != oldHTML {
			return true
		}
		return c.firstCardID(page) != oldFirstID
	}
	return PollUntilChanged(ctx, c.pollInterval, c.pollTimeout, snapshot, changed)
}

// CollectCards parses the currently loaded list DOM into stubs. A short wait
// for card elements tolerates the tail of a slow transition; its timeout is
// not fatal because whatever cards are present still get collected.
func (c *ListCrawler) CollectCards(page playwright.Page) []models.Stub {
	if _, err := page.WaitForSelector(listCardSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(c.pollTimeout.Milliseconds())),
	}); err != nil {
		c.logger.Warn("card wait timed out, collecting whatever is present")
	}

	html, err := page.Content()
	if err != nil {
		c.logger.Warn("failed to read page content", "error", err)
		return nil
	}

	stubs := c.parser.ParseCards(html)
	c.logger.Info("collected cards", "count", len(stubs))
	return stubs
}

func (c *ListCrawler) containerHTML(page playwright.Page) (string, error) {
	html, err := page.Locator(listContainerSelector).InnerHTML(playwright.LocatorInnerHTMLOptions{
		Timeout: playwright.Float(1000),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read list container: %w", err)
	}
	return html, nil
}

func (c *ListCrawler) firstCardID(page playwright.Page) string {
	html, err := page.Content()
	if err != nil {
		return ""
	}
	return c.parser.FirstCardID(html)
}
