package publish

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"curator/internal/model"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DraftPrefix marks post ids that are unpublished drafts.
	DraftPrefix = "drafts."

	MaxSlugLen    = 96
	ExcerptLen    = 160
	Ellipsis      = "..."
	DefaultTitle  = "Novo Post da Fila"
	DefaultSlug   = "novo-post"
	sourceBlockID = "source"
	bodyBlockID   = "content"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a title into a lowercase, URL-safe slug of at most MaxSlugLen
// bytes. Accents are folded ("Distorção" -> "distorcao").
func Slug(title string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(fold, title)
	if err != nil {
		s = title
	}
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = strings.TrimRight(s[:MaxSlugLen], "-")
	}
	if s == "" {
		return DefaultSlug
	}
	return s
}

// Excerpt returns the first ExcerptLen characters of body, with Ellipsis
// appended when the body was cut.
func Excerpt(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	r := []rune(body)
	if len(r) <= ExcerptLen {
		return body
	}
	return strings.TrimSpace(string(r[:ExcerptLen])) + Ellipsis
}

func textBlock(key, text string) model.Block {
	return model.Block{
		Type:     "block",
		Key:      key,
		Style:    "normal",
		Children: []model.Span{{Type: "span", Text: text}},
	}
}

// Provenance is the closing line citing the original source.
func Provenance(host, link string) string {
	if strings.TrimSpace(host) == "" {
		return "Fonte: " + link
	}
	return "Fonte: " + host + " (" + link + ")"
}

// BuildPost materializes a queue entry as a draft post with the given id.
func BuildPost(e model.QueueEntry, id string, now time.Time) model.PostDocument {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = DefaultTitle
	}
	format := e.Format
	if !format.Valid() {
		format = model.FormatNews
	}
	tags := e.Tags
	if len(tags) == 0 {
		tags = model.DefaultTags
	}
	return model.PostDocument{
		ID:          id,
		Title:       title,
		Slug:        model.Slug{Type: "slug", Current: Slug(title)},
		Format:      format,
		Tags:        append([]string(nil), tags...),
		PublishedAt: now.UTC(),
		Excerpt:     Excerpt(e.Body),
		Body: []model.Block{
			textBlock(bodyBlockID, e.Body),
			textBlock(sourceBlockID, Provenance(e.SourceHost, e.Link)),
		},
		Link: e.Link,
	}
}
