package publish

import (
	"fmt"
	"strings"
	"time"

	"curator/internal/model"
)

const (
	// NewsPrefix namespaces news item ids.
	NewsPrefix = "news."

	DefaultNewsTitle = "Sem Título"
	// DefaultChannel is the music/scene channel of the news cards.
	DefaultChannel = "distorcao"
)

// Target is the document kind a queue entry is promoted into.
type Target string

const (
	TargetPost Target = "post"
	TargetNews Target = "news"
)

// ParseTarget accepts "post" or "news"; empty means post.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TargetPost:
		return TargetPost, nil
	case TargetNews:
		return TargetNews, nil
	default:
		return "", fmt.Errorf("unknown promotion target %q (want post or news)", s)
	}
}

// BuildNewsItem materializes a queue entry as a news card with the given id.
// Tags are copied as-is; news cards carry no default tag.
func BuildNewsItem(e model.QueueEntry, id string, now time.Time) model.NewsItem {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = DefaultNewsTitle
	}
	tags := append([]string{}, e.Tags...)
	return model.NewsItem{
		ID:          id,
		Title:       title,
		Channel:     DefaultChannel,
		Description: e.Body,
		Link:        e.Link,
		Source:      e.SourceHost,
		Date:        now.UTC(),
		Tags:        tags,
	}
}

// IsDraft reports whether a post id lives in the drafts namespace.
func IsDraft(id string) bool {
	return strings.HasPrefix(id, DraftPrefix)
}
