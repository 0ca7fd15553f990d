package models

import (
	"time"
)

// Stub is the minimal identifying record produced by list-page parsing.
// ExternalID is the site-assigned movie id and the dedup key for a run.
type Stub struct {
	ExternalID   string  `json:"external_id"`
	Title        string  `json:"title"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	DetailURL    string  `json:"detail_url"`
}

// ExpertReview is one entry of the expert review list on a detail page.
type ExpertReview struct {
	Author     string `json:"author"`
	RatingText string `json:"rating_text"`
	Body       string `json:"body"`
}

// AudienceReview is one entry collected by the review paginator.
type AudienceReview struct {
	RatingText string `json:"rating_text"`
	Body       string `json:"body"`
}

// RelatedLink is a related-article link from a detail page.
type RelatedLink struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Movie is the enriched record for one Stub. Every field beyond the stub
// is optional: the site does not guarantee any of them is present, so nil
// means absent, not failed.
type Movie struct {
	Stub

	CriticRating   *float64 `json:"critic_rating,omitempty"`
	AudienceRating *float64 `json:"audience_rating,omitempty"`
	RuntimeMinutes *int     `json:"runtime_minutes,omitempty"`
	ReleaseDate    *string  `json:"release_date,omitempty"` // YYYY-MM-DD
	Genre          *string  `json:"genre,omitempty"`
	Country        *string  `json:"country,omitempty"`
	Director       *string  `json:"director,omitempty"`
	Cast           *string  `json:"cast,omitempty"`
	Synopsis       *string  `json:"synopsis,omitempty"`

	ExpertReviews   []ExpertReview   `json:"expert_reviews,omitempty"`
	RelatedLinks    []RelatedLink    `json:"related_links,omitempty"`
	AudienceReviews []AudienceReview `json:"audience_reviews,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// NewMovie creates an empty record for a stub. Fields are filled in
// progressively by the pipeline stages.
func NewMovie(stub Stub) *Movie {
	return &Movie{
		Stub:      stub,
		ScrapedAt: time.Now(),
	}
}

// HasDetail reports whether any detail-stage field was extracted, which is
// how the batch run counts a detail visit as successful.
func (m *Movie) HasDetail() bool {
	return m.CriticRating != nil ||
		m.AudienceRating != nil ||
		m.RuntimeMinutes != nil ||
		m.ReleaseDate != nil ||
		m.Genre != nil ||
		m.Country != nil ||
		m.Director != nil ||
		m.Cast != nil
}
