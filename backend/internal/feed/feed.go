// Package feed merges personalized, popularity-ranked, and recency-ranked
// topic queries into the two feed response shapes.
package feed

import "time"

// Category is one of the three feed sources
type Category string

const (
	CategoryRecommend Category = "recommend"
	CategoryHottest   Category = "hottest"
	CategoryNewest    Category = "newest"
)

// Valid reports whether c names a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryRecommend, CategoryHottest, CategoryNewest:
		return true
	}
	return false
}

// resourceType is the wire type tag for items of this category,
// e.g. "recommendTopics".
func (c Category) resourceType() string {
	return string(c) + "Topics"
}

// Page is a 1-based page window
type Page struct {
	Number int
	Size   int
}

// LastUpdated carries the optional per-category lower-bound timestamps
type LastUpdated struct {
	Recommend *time.Time
	Hottest   *time.Time
	Newest    *time.Time
}

// Request is one feed query
type Request struct {
	UserID      string
	More        bool
	Type        Category // required when More is true
	Page        Page
	LastUpdated LastUpdated
}

// ItemAttributes is the attribute block of one feed item: the topic's own
// attributes plus the enrichment fields.
type ItemAttributes struct {
	TopicID            string    `json:"topicId"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Classes            []string  `json:"classes"`
	ImgURL             string    `json:"imgUrl,omitempty"`
	SubscriptionsCount int64     `json:"subscriptionsCount"`
	PublishedAt        time.Time `json:"publishedAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	UpdatesCount       int64     `json:"updatesCount"`
	IsNew              bool      `json:"isNew"`
}

// Item is one entry in a feed response. Never persisted; recomputed per
// request.
type Item struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes ItemAttributes `json:"attributes"`
}

// Meta is the summary-mode response metadata
type Meta struct {
	TotalRecommendUpdates int64 `json:"totalRecommendUpdates"`
}

// Summary is the fixed fan-out response across all three categories
type Summary struct {
	Data []Item `json:"data"`
	Meta Meta   `json:"meta"`
}
