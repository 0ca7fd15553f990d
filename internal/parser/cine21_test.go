package parser

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviedeck/cine-scraper/internal/models"
)

const listPageHTML = `
<html><body>
<div id="point_list_holder">
	<div class="list_with_upthumb_item">
		<div class="img_wrap"><img src="/upload/poster/1001.jpg"></div>
		<p class="title">기생충</p>
		<a href="/movie/info/1001">상세보기</a>
	</div>
	<div class="list_with_upthumb_item">
		<div class="img_wrap"><img src="https://cdn.cine21.com/noimg_default.png"></div>
		<p class="title">올드보이</p>
		<a href="/movie/info/1002">상세보기</a>
	</div>
	<div class="list_with_upthumb_item">
		<div class="img_wrap"><img data-src="/upload/poster/1003.jpg"></div>
		<p class="title">부산행</p>
		<a href="/movie/info/1003">상세보기</a>
	</div>
	<div class="list_with_upthumb_item">
		<div class="img_wrap"><img src="/upload/poster/x.jpg"></div>
		<p class="title"></p>
		<a href="/movie/info/1004">상세보기</a>
	</div>
	<div class="list_with_upthumb_item">
		<p class="title">링크 없는 영화</p>
	</div>
</div>
</body></html>`

func TestParseCards(t *testing.T) {
	p := NewCine21Parser()
	stubs := p.ParseCards(listPageHTML)

	require.Len(t, stubs, 3, "cards without a title or a detail link are skipped")

	assert.Equal(t, "1001", stubs[0].ExternalID)
	assert.Equal(t, "기생충", stubs[0].Title)
	assert.Equal(t, "https://cine21.com/movie/info/1001", stubs[0].DetailURL)
	require.NotNil(t, stubs[0].ThumbnailURL)
	assert.Equal(t, "https://cine21.com/upload/poster/1001.jpg", *stubs[0].ThumbnailURL)

	assert.Nil(t, stubs[1].ThumbnailURL, "noimg placeholder is rejected")

	require.NotNil(t, stubs[2].ThumbnailURL, "lazy data-src is honored")
	assert.Equal(t, "https://cine21.com/upload/poster/1003.jpg", *stubs[2].ThumbnailURL)
}

func TestParseCardsNoContainer(t *testing.T) {
	p := NewCine21Parser()
	assert.Empty(t, p.ParseCards(`<html><body><div class="other"></div></body></html>`))
}

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestParseCardsWarnsOnSkippedCards(t *testing.T) {
	h := &recordingHandler{}
	p := NewCine21Parser()
	p.logger = slog.New(h)

	stubs := p.ParseCards(listPageHTML)

	require.Len(t, stubs, 3)
	require.Len(t, h.records, 2, "one warning per skipped card")
	assert.Equal(t, slog.LevelWarn, h.records[0].Level)
	assert.Contains(t, h.records[0].Message, "no title")
	assert.Contains(t, h.records[1].Message, "no movie id")
}

func TestFirstCardIDStaysQuiet(t *testing.T) {
	h := &recordingHandler{}
	p := NewCine21Parser()
	p.logger = slog.New(h)

	assert.Equal(t, "1001", p.FirstCardID(listPageHTML))
	assert.Empty(t, h.records, "the poll fingerprint does not repeat skip warnings")
}

func TestFirstCardID(t *testing.T) {
	p := NewCine21Parser()
	assert.Equal(t, "1001", p.FirstCardID(listPageHTML))
	assert.Equal(t, "", p.FirstCardID(`<div id="point_list_holder"></div>`))
}

func TestExtractMovieID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"query parameter", "https://cine21.com/movie/info?movie_id=1234", "1234"},
		{"path form", "https://cine21.com/movie/info/5678", "5678"},
		{"relative path", "/movie/info/42", "42"},
		{"no id", "https://cine21.com/movie/point", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractMovieID(tt.url))
		})
	}
}

func TestNormalizeReleaseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"dotted", "2019.05.30", "2019-05-30", true},
		{"dashed", "2019-05-30", "2019-05-30", true},
		{"slashed", "2019/5/30", "2019-05-30", true},
		{"korean", "2019년 5월 30일", "2019-05-30", true},
		{"korean no space", "2019년5월30일", "2019-05-30", true},
		{"single digit padded", "2021.1.3", "2021-01-03", true},
		{"already canonical is idempotent", "2021-01-03", "2021-01-03", true},
		{"embedded in text", "개봉 2019.05.30 (재개봉)", "2019-05-30", true},
		{"unrecognized", "개봉 미정", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeReleaseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
	}{
		{"with suffix", "8.5점", ptrFloat(8.5)},
		{"integer", "9점", ptrFloat(9)},
		{"bare decimal", "7.25", ptrFloat(7.25)},
		{"no digits", "별점 없음", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRating(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, *got, 0.001)
		})
	}
}

const detailPageHTML = `
<html><head><title>기생충</title></head><body>
<section class="sect_movie_detail">
	<h1>기생충</h1>
	<div class="movie_detail_star_box_wrap">
		<div class="star_cine21">
			<span>전문가 별점</span>
			<p class="num">8.5점</p>
		</div>
		<div class="star_netizen">
			<span>네티즌 별점</span>
			<p class="num">9.1점</p>
		</div>
	</div>
	<ul class="info_list">
		<li><p class="title">개봉</p>2019.05.30</li>
		<li><p class="title">시간</p>131분</li>
		<li><p class="title">장르</p>드라마</li>
		<li><p class="title">국가</p>한국</li>
		<li><p class="title">감독</p>봉준호</li>
		<li><p class="title">출연</p>송강호, 이선균, 조여정</li>
		<li><p class="title">등급</p>15세 관람가</li>
	</ul>
	<div class="synopsis">전원 백수로 살아가는 기택네 가족에게 찾아온 기묘한 인연의 이야기.</div>
</section>
</body></html>`

func TestParseDetail(t *testing.T) {
	p := NewCine21Parser()
	movie := models.NewMovie(models.Stub{ExternalID: "1001"})

	p.ParseDetail(detailPageHTML, movie)

	assert.Equal(t, "기생충", movie.Title)
	require.NotNil(t, movie.CriticRating)
	assert.InDelta(t, 8.5, *movie.CriticRating, 0.001)
	require.NotNil(t, movie.AudienceRating)
	assert.InDelta(t, 9.1, *movie.AudienceRating, 0.001)
	require.NotNil(t, movie.ReleaseDate)
	assert.Equal(t, "2019-05-30", *movie.ReleaseDate)
	require.NotNil(t, movie.RuntimeMinutes)
	assert.Equal(t, 131, *movie.RuntimeMinutes)
	require.NotNil(t, movie.Genre)
	assert.Equal(t, "드라마", *movie.Genre)
	require.NotNil(t, movie.Country)
	assert.Equal(t, "한국", *movie.Country)
	require.NotNil(t, movie.Director)
	assert.Equal(t, "봉준호", *movie.Director)
	require.NotNil(t, movie.Cast)
	assert.Equal(t, "송강호, 이선균, 조여정", *movie.Cast)
	require.NotNil(t, movie.Synopsis)
	assert.Contains(t, *movie.Synopsis, "기택네 가족")
	assert.True(t, movie.HasDetail())
}

func TestParseDetailWithoutStarBox(t *testing.T) {
	html := `
<html><body>
<section class="sect_movie_detail">
	<h1>무명 영화</h1>
	<ul class="info_list">
		<li><p class="title">감독</p>아무개</li>
	</ul>
</section>
</body></html>`

	p := NewCine21Parser()
	movie := models.NewMovie(models.Stub{ExternalID: "9"})
	p.ParseDetail(html, movie)

	assert.Nil(t, movie.CriticRating, "missing star box leaves ratings absent")
	assert.Nil(t, movie.AudienceRating)
	require.NotNil(t, movie.Director)
	assert.Equal(t, "아무개", *movie.Director)
}

func TestParseDetailTitleFallback(t *testing.T) {
	html := `<html><head><title>  헤어질 결심  </title></head><body><div>no headings here</div></body></html>`

	p := NewCine21Parser()
	movie := models.NewMovie(models.Stub{ExternalID: "7"})
	p.ParseDetail(html, movie)

	assert.Equal(t, "헤어질 결심", movie.Title)
}

func TestParseDetailKeepsExistingFields(t *testing.T) {
	p := NewCine21Parser()
	synopsis := "positional synopsis already extracted"
	movie := models.NewMovie(models.Stub{ExternalID: "1001", Title: "이미 있는 제목"})
	movie.Synopsis = &synopsis

	p.ParseDetail(detailPageHTML, movie)

	assert.Equal(t, "이미 있는 제목", movie.Title, "present fields are never overwritten")
	assert.Equal(t, synopsis, *movie.Synopsis)
}

const reviewSectionHTML = `
<html><body>
<section><h2>줄거리</h2><p>본문</p></section>
<section>
	<h3>관객 리뷰</h3>
	<ul>
		<li>
			<div class="star">★★★★★</div>
			<div class="comment">정말 재미있게 본 영화입니다. 배우들의 연기가 훌륭하고 연출도 뛰어납니다.</div>
		</li>
		<li>
			<div class="comment">별점은 없지만 충분히 길게 쓴 감상평이라서 수집 대상이 됩니다.</div>
		</li>
		<li>
			<div class="comment">짧음</div>
		</li>
		<li>좋아요</li>
	</ul>
</section>
</body></html>`

func TestParseReviewEntries(t *testing.T) {
	p := NewCine21Parser()
	reviews := p.ParseReviewEntries(reviewSectionHTML)

	require.Len(t, reviews, 2, "entries below the length thresholds are dropped")

	assert.Equal(t, "★★★★★", reviews[0].RatingText)
	assert.Contains(t, reviews[0].Body, "정말 재미있게 본 영화입니다")

	assert.Equal(t, NoRatingMarker, reviews[1].RatingText)
	assert.Contains(t, reviews[1].Body, "별점은 없지만")
}

func TestParseReviewEntriesFallsBackToLastSection(t *testing.T) {
	html := `
<html><body>
<section><h2>줄거리</h2><p>본문</p></section>
<section>
	<ul>
		<li><div>마지막 섹션에서 수집되는 충분히 긴 관람평 내용입니다.</div></li>
	</ul>
</section>
</body></html>`

	p := NewCine21Parser()
	reviews := p.ParseReviewEntries(html)
	require.Len(t, reviews, 1)
	assert.Contains(t, reviews[0].Body, "마지막 섹션")
}

func TestParseReviewEntriesMinifiedMarkup(t *testing.T) {
	html := `<html><body><section><h3>관객</h3><ul><li><p class="star">★★★★☆ 8</p><div class="comment">한 줄로 붙어서 내려온 마크업에서도 수집되는 관람평 본문입니다.</div></li></ul></section></body></html>`

	p := NewCine21Parser()
	reviews := p.ParseReviewEntries(html)

	require.Len(t, reviews, 1)
	assert.Equal(t, "★★★★☆ 8", reviews[0].RatingText, "the star line stays separate even without newlines in the markup")
	assert.Contains(t, reviews[0].Body, "한 줄로 붙어서")
	assert.NotContains(t, reviews[0].RatingText, "관람평")
}

func TestParseReviewEntriesBodyCap(t *testing.T) {
	long := strings.Repeat("가", 600)
	html := `<html><body><section><h3>관객</h3><ul><li><div>` + long + `</div></li></ul></section></body></html>`

	p := NewCine21Parser()
	reviews := p.ParseReviewEntries(html)
	require.Len(t, reviews, 1)
	assert.Equal(t, 500, len([]rune(reviews[0].Body)))
}

func TestReviewKey(t *testing.T) {
	short := strings.Repeat("a", 80)
	exactly := strings.Repeat("b", 100)
	long := strings.Repeat("c", 100) + "tail one"
	longOther := strings.Repeat("c", 100) + "tail two"

	assert.Equal(t, short, ReviewKey(short))
	assert.Equal(t, exactly, ReviewKey(exactly))
	assert.Equal(t, ReviewKey(long), ReviewKey(longOther),
		"bodies sharing their first 100 characters collapse to one key")
	assert.Len(t, []rune(ReviewKey(long)), 100)

	korean := strings.Repeat("하", 150)
	assert.Len(t, []rune(ReviewKey(korean)), 100, "the prefix is counted in runes")
}

func TestDedupeStubs(t *testing.T) {
	seen := make(map[string]bool)

	first := DedupeStubs([]models.Stub{
		{ExternalID: "1", Title: "a"},
		{ExternalID: "2", Title: "b"},
		{ExternalID: "1", Title: "a again"},
	}, seen)
	require.Len(t, first, 2)
	assert.Equal(t, "1", first[0].ExternalID)
	assert.Equal(t, "2", first[1].ExternalID)

	// The seen set carries across pages of one run.
	second := DedupeStubs([]models.Stub{
		{ExternalID: "2", Title: "b"},
		{ExternalID: "3", Title: "c"},
	}, seen)
	require.Len(t, second, 1)
	assert.Equal(t, "3", second[0].ExternalID)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "기생충 2019", CleanText("  기생충\n\t 2019  "))
	assert.Equal(t, "a b", CleanText("a  b"))
	assert.Equal(t, "ab", CleanText("a​b"))
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://cine21.com/search/movie?query=%EA%B8%B0%EC%83%9D%EC%B6%A9", SearchURL(" 기생충 "))
}

func ptrFloat(v float64) *float64 {
	return &v
}
