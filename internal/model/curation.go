package model

import "time"

// FeedItem is one entry flattened out of a syndication feed. It lives for a
// single run and is identified only by Link.
type FeedItem struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Link          string `json:"link"`
	SourceFeedURL string `json:"source_feed_url"`
}

// Format is the editorial format of a post.
type Format string

const (
	FormatNews      Format = "news"
	FormatReview    Format = "review"
	FormatArticle   Format = "article"
	FormatInterview Format = "interview"
)

// Valid reports whether f is one of the allowed formats.
func (f Format) Valid() bool {
	switch f {
	case FormatNews, FormatReview, FormatArticle, FormatInterview:
		return true
	}
	return false
}

// DefaultTags are applied when the classifier returns no usable tags.
var DefaultTags = []string{"Underground"}

// Classification is the normalized result of classifying one feed item.
type Classification struct {
	Skip   bool     `json:"skip"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Tags   []string `json:"tags"`
	Format Format   `json:"format"`
}

// QueueEntry is an approved item waiting for promotion. Entries are written
// once and never updated.
type QueueEntry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Link       string    `json:"link"`
	SourceHost string    `json:"source"`
	Format     Format    `json:"format"`
	Tags       []string  `json:"tags"`
	AIJSON     string    `json:"aiJson"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Block is a rich-text paragraph of a post body.
type Block struct {
	Type     string `json:"_type"`
	Key      string `json:"_key,omitempty"`
	Style    string `json:"style,omitempty"`
	Children []Span `json:"children"`
}

// Span is a run of plain text inside a Block.
type Span struct {
	Type string `json:"_type"`
	Text string `json:"text"`
}

// Slug mirrors the slug object shape used by the document store.
type Slug struct {
	Type    string `json:"_type"`
	Current string `json:"current"`
}

// PostDocument is a draft post produced from exactly one queue entry.
type PostDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        Slug      `json:"slug"`
	Format      Format    `json:"format"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"publishedAt"`
	Excerpt     string    `json:"excerpt"`
	Body        []Block   `json:"body"`
	// Link is the source link; the dedup gate matches on it.
	Link string `json:"link"`
}

// NewsItem is a short news card produced from exactly one queue entry.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Channel     string    `json:"channel"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags"`
}
