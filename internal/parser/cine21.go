package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/moviedeck/cine-scraper/internal/models"
)

const BaseURL = "https://cine21.com"

// Each extraction is an ordered list of selector attempts, tried until one
// yields a non-empty result. Site redesigns are absorbed by editing the
// chain, not the logic.
type selectorChain []string

var (
	listContainerSelectors = selectorChain{"#point_list_holder", ".list_with_leftthumb"}
	cardSelectors          = selectorChain{"div.list_with_upthumb_item", "div.list_with_leftthumb_item"}

	titleSelectors = selectorChain{
		"section.sect_movie_detail h1",
		"div.movie_detail h1",
		"main h1.movie_title",
	}
	posterSelectors = selectorChain{
		"div.poster img",
		".movie_poster img",
		".poster_wrap img",
	}
	starBoxSelectors = selectorChain{
		"div.movie_detail_star_box_wrap",
		".star_box",
	}
	criticStarSelectors = selectorChain{
		"div.star_cine21.flex_between_pc_block_mo",
		"div.star_cine21",
		".star_expert",
	}
	audienceStarSelectors = selectorChain{
		"div.star_netizen.flex_between_pc_block_mo",
		"div.star_netizen",
		".star_audience",
	}
	ratingNumSelectors = selectorChain{"p.num", ".rating_num"}

	infoListSelectors  = selectorChain{"ul.info_list", ".movie_info"}
	infoLabelSelectors = selectorChain{"p.title", ".info_title"}

	synopsisSelectors = selectorChain{".synopsis", ".movie_synopsis", ".story"}
)

// Labels of the detail page's definition list. Site contract: one literal
// label per field.
const (
	labelRelease  = "개봉"
	labelRuntime  = "시간"
	labelGenre    = "장르"
	labelCountry  = "국가"
	labelDirector = "감독"
	labelCast     = "출연"
)

// NoRatingMarker is recorded for audience reviews that carry no star line.
const NoRatingMarker = "별점없음"

// reviewDedupPrefix is the number of leading characters (runes) of a review
// body that identify it across pagination rounds.
const reviewDedupPrefix = 100

var (
	decimalPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	runtimePattern = regexp.MustCompile(`(\d{1,3})\s*분`)
	movieIDPattern = regexp.MustCompile(`/movie/info/(\d+)`)

	// Release date formats tried in order. Anything else is absent.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`),
		regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
		regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
		regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`),
	}

	whitespacePattern = regexp.MustCompile(`\s+`)
)

type Cine21Parser struct {
	logger *slog.Logger
}

func NewCine21Parser() *Cine21Parser {
	return &Cine21Parser{
		logger: slog.Default().With("component", "parser"),
	}
}

// CleanText trims, collapses runs of whitespace and strips the non-breaking
// and zero-width spaces the site pads its markup with.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "​", "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func firstMatch(doc *goquery.Selection, chain selectorChain) *goquery.Selection {
	for _, sel := range chain {
		if found := doc.Find(sel); found.Length() > 0 {
			return found.First()
		}
	}
	return nil
}

// ResolveURL makes a site-relative href absolute.
func ResolveURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	base, _ := url.Parse(BaseURL)
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ExtractMovieID pulls the numeric site id out of a detail URL, either from
// the movie_id query parameter or from a /movie/info/<id> path.
func ExtractMovieID(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if u, err := url.Parse(rawURL); err == nil {
		if id := u.Query().Get("movie_id"); id != "" {
			return id
		}
	}
	if m := movieIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// DetailURL builds the canonical detail page URL for a movie id.
func DetailURL(externalID string) string {
	return fmt.Sprintf("%s/movie/info?movie_id=%s", BaseURL, externalID)
}

// SearchURL builds the list/search URL for a free-text query.
func SearchURL(query string) string {
	return fmt.Sprintf("%s/search/movie?query=%s", BaseURL, url.QueryEscape(strings.TrimSpace(query)))
}

// ParseCards extracts card stubs from the list container of a page snapshot.
// Cards lacking a title or an extractable movie id are skipped with a
// warning.
func (p *Cine21Parser) ParseCards(html string) []models.Stub {
	return p.parseCards(html, false)
}

// quiet suppresses the per-card skip warnings for callers that re-parse the
// same snapshot repeatedly, like the mutation poll.
func (p *Cine21Parser) parseCards(html string, quiet bool) []models.Stub {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	container := firstMatch(doc.Selection, listContainerSelectors)
	if container == nil {
		return nil
	}

	var cards *goquery.Selection
	for _, sel := range cardSelectors {
		if found := container.Find(sel); found.Length() > 0 {
			cards = found
			break
		}
	}
	if cards == nil {
		return nil
	}

	var stubs []models.Stub
	cards.Each(func(i int, card *goquery.Selection) {
		title := CleanText(card.Find("p.title").First().Text())
		if title == "" {
			if !quiet {
				p.logger.Warn("card skipped: no title", "index", i)
			}
			return
		}

		detailURL := ""
		externalID := ""
		if link := card.Find(`a[href*="/movie/info/"]`).First(); link.Length() > 0 {
			if href, ok := link.Attr("href"); ok {
				detailURL = ResolveURL(href)
				externalID = ExtractMovieID(detailURL)
			}
		}
		if externalID == "" {
			if !quiet {
				p.logger.Warn("card skipped: no movie id", "index", i, "title", title)
			}
			return
		}

		stub := models.Stub{
			ExternalID: externalID,
			Title:      title,
			DetailURL:  detailURL,
		}
		if thumb := extractImageURL(card.Find("div.img_wrap img").First()); thumb != "" {
			stub.ThumbnailURL = &thumb
		}
		stubs = append(stubs, stub)
	})

	return stubs
}

// FirstCardID returns the movie id of the first card in the list container,
// or "" when none is present. Used as a mutation-poll fingerprint.
func (p *Cine21Parser) FirstCardID(html string) string {
	stubs := p.parseCards(html, true)
	if len(stubs) == 0 {
		return ""
	}
	return stubs[0].ExternalID
}

// extractImageURL reads src (or lazy data-src), rejecting the site's
// "noimg" placeholder.
func extractImageURL(img *goquery.Selection) string {
	if img == nil || img.Length() == 0 {
		return ""
	}
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if src == "" || strings.Contains(strings.ToLower(src), "noimg") {
		return ""
	}
	return ResolveURL(src)
}

// ParseDetail fills the semantic (class-addressed) fields of a movie from a
// detail page snapshot: title, poster, ratings, the info list and the
// synopsis fallback. Positional lookups live in the scraper layer.
func (p *Cine21Parser) ParseDetail(html string, movie *models.Movie) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	if movie.Title == "" {
		movie.Title = p.parseTitle(doc)
	}
	if movie.ThumbnailURL == nil {
		if poster := firstMatch(doc.Selection, posterSelectors); poster != nil {
			if src := extractImageURL(poster); src != "" {
				movie.ThumbnailURL = &src
			}
		}
	}

	critic, audience := p.parseStarBox(doc)
	if critic != nil {
		movie.CriticRating = critic
	}
	if audience != nil {
		movie.AudienceRating = audience
	}

	p.parseInfoList(doc, movie)

	if movie.Synopsis == nil {
		if sel := firstMatch(doc.Selection, synopsisSelectors); sel != nil {
			if text := CleanText(sel.Text()); text != "" {
				movie.Synopsis = &text
			}
		}
	}
}

func (p *Cine21Parser) parseTitle(doc *goquery.Document) string {
	if sel := firstMatch(doc.Selection, titleSelectors); sel != nil {
		if title := CleanText(sel.Text()); title != "" {
			return title
		}
	}
	// Last resort: the page <title>, cut at its first delimiter.
	text := doc.Find("title").First().Text()
	if idx := strings.Index(text, "<"); idx >= 0 {
		text = text[:idx]
	}
	return CleanText(text)
}

// parseStarBox reads the expert and audience scores out of the star box.
// Either sub-region may be missing; a region without a decimal in its text
// yields no rating.
func (p *Cine21Parser) parseStarBox(doc *goquery.Document) (critic, audience *float64) {
	starBox := firstMatch(doc.Selection, starBoxSelectors)
	if starBox == nil {
		return nil, nil
	}
	critic = parseRegionRating(starBox, criticStarSelectors)
	audience = parseRegionRating(starBox, audienceStarSelectors)
	return critic, audience
}

func parseRegionRating(starBox *goquery.Selection, regionChain selectorChain) *float64 {
	region := firstMatch(starBox, regionChain)
	if region == nil {
		return nil
	}
	num := firstMatch(region, ratingNumSelectors)
	if num == nil {
		return nil
	}
	return ParseRating(num.Text())
}

// ParseRating extracts the first decimal number from star-box text like
// "8.5점". Text without digits yields nil.
func ParseRating(text string) *float64 {
	m := decimalPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInfoList walks the detail page's definition list and assigns each
// entry to the field its label names. Unknown labels are ignored.
func (p *Cine21Parser) parseInfoList(doc *goquery.Document, movie *models.Movie) {
	infoList := firstMatch(doc.Selection, infoListSelectors)
	if infoList == nil {
		return
	}

	infoList.Find("li").Each(func(_ int, li *goquery.Selection) {
		labelElem := firstMatch(li, infoLabelSelectors)
		if labelElem == nil {
			return
		}
		label := CleanText(labelElem.Text())
		content := CleanText(strings.Replace(li.Text(), labelElem.Text(), "", 1))
		if content == "" {
			return
		}

		switch label {
		case labelRelease:
			if date, ok := NormalizeReleaseDate(content); ok {
				movie.ReleaseDate = &date
			}
		case labelRuntime:
			if m := runtimePattern.FindStringSubmatch(content); m != nil {
				if minutes, err := strconv.Atoi(m[1]); err == nil {
					movie.RuntimeMinutes = &minutes
				}
			}
		case labelGenre:
			movie.Genre = &content
		case labelCountry:
			movie.Country = &content
		case labelDirector:
			movie.Director = &content
		case labelCast:
			movie.Cast = &content
		}
	})
}

// NormalizeReleaseDate converts a release-date string in any of the four
// site formats to canonical YYYY-MM-DD. Unrecognized input reports ok=false
// and never a partial string.
func NormalizeReleaseDate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		month, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		day, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		return fmt.Sprintf("%s-%02d-%02d", m[1], month, day), true
	}
	return "", false
}

// ParseReviewEntries extracts audience review candidates from the current
// page snapshot. The review section is found by heading keyword, falling
// back to the last section on the page. Entries are raw: deduplication is
// the paginator's job.
func (p *Cine21Parser) ParseReviewEntries(html string) []models.AudienceReview {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	section := findReviewSection(doc)
	if section == nil {
		return nil
	}

	var reviews []models.AudienceReview
	section.Find("li").Each(func(_ int, li *goquery.Selection) {
		// Text nodes are rejoined with newlines so line heuristics hold
		// even when the served markup is minified.
		text := strings.TrimSpace(textLines(li))
		if len([]rune(text)) < 10 {
			return
		}

		rating := NoRatingMarker
		for _, line := range strings.Split(text, "\n") {
			if strings.Contains(line, "★") {
				rating = strings.TrimSpace(line)
				break
			}
		}

		// Body: the longest nested div text beyond a noise threshold,
		// else the whole entry text.
		body := ""
		li.Find("div").Each(func(_ int, div *goquery.Selection) {
			t := CleanText(div.Text())
			if len([]rune(t)) > len([]rune(body)) && len([]rune(t)) > 15 {
				body = t
			}
		})
		if body == "" {
			body = CleanText(text)
		}
		if len([]rune(body)) < 15 {
			return
		}

		reviews = append(reviews, models.AudienceReview{
			RatingText: rating,
			Body:       truncateRunes(body, 500),
		})
	})

	return reviews
}

// textLines renders an element as one text-node per line.
func textLines(sel *goquery.Selection) string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				if t := strings.TrimSpace(child.Text()); t != "" {
					lines = append(lines, t)
				}
				return
			}
			walk(child)
		})
	}
	walk(sel)
	return strings.Join(lines, "\n")
}

func findReviewSection(doc *goquery.Document) *goquery.Selection {
	var section *goquery.Selection
	doc.Find("section").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		heading := s.Find("h2, h3, h4").First()
		if heading.Length() == 0 {
			return true
		}
		text := heading.Text()
		if strings.Contains(text, "관객") || strings.Contains(text, "네티즌") {
			section = s
			return false
		}
		return true
	})
	if section != nil {
		return section
	}
	sections := doc.Find("section")
	if sections.Length() == 0 {
		return nil
	}
	return sections.Last()
}

// ReviewKey is the dedup fingerprint of a review body: its first 100 runes.
func ReviewKey(body string) string {
	return truncateRunes(body, reviewDedupPrefix)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// DedupeStubs drops stubs whose external id was already seen, preserving
// first-seen order. The seen set carries across pages of one run.
func DedupeStubs(stubs []models.Stub, seen map[string]bool) []models.Stub {
	var unique []models.Stub
	for _, stub := range stubs {
		if seen[stub.ExternalID] {
			continue
		}
		seen[stub.ExternalID] = true
		unique = append(unique, stub)
	}
	return unique
}
