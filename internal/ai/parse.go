package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"curator/internal/model"
)

// wireResult accepts any JSON type per field so a sloppy answer still decodes.
type wireResult struct {
	Skip   json.RawMessage `json:"skip"`
	Title  json.RawMessage `json:"title"`
	Body   json.RawMessage `json:"body"`
	Tags   json.RawMessage `json:"tags"`
	Format json.RawMessage `json:"format"`
}

// Parse decodes a backend answer. Only a missing or non-object JSON document
// is an error; field-level problems are left for Normalize.
func Parse(raw string) (model.Classification, error) {
	text := stripFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(text, "{") {
		return model.Classification{}, fmt.Errorf("ai: response is not a JSON object")
	}
	var w wireResult
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return model.Classification{}, fmt.Errorf("ai: decode response: %w", err)
	}
	return model.Classification{
		Skip:   asBool(w.Skip),
		Title:  asString(w.Title),
		Body:   asString(w.Body),
		Tags:   asStrings(w.Tags),
		Format: model.Format(strings.ToLower(asString(w.Format))),
	}, nil
}

// Normalize applies the safe defaults to an approved result: unknown format
// becomes news, empty tags become DefaultTags, and empty text falls back to
// the feed item.
func Normalize(c model.Classification, item model.FeedItem) model.Classification {
	c.Title = strings.TrimSpace(c.Title)
	c.Body = strings.TrimSpace(c.Body)
	if c.Title == "" {
		c.Title = strings.TrimSpace(item.Title)
	}
	if c.Body == "" {
		c.Body = strings.TrimSpace(item.Summary)
	}
	c.Format = model.Format(strings.ToLower(strings.TrimSpace(string(c.Format))))
	if !c.Format.Valid() {
		c.Format = model.FormatNews
	}
	tags := make([]string, 0, len(c.Tags))
	seen := map[string]struct{}{}
	for _, t := range c.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(t)]; ok {
			continue
		}
		seen[strings.ToLower(t)] = struct{}{}
		tags = append(tags, t)
	}
	if len(tags) == 0 {
		tags = append(tags, model.DefaultTags...)
	}
	c.Tags = tags
	return c
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func asBool(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}

func asString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func asStrings(raw json.RawMessage) []string {
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.Split(s, ",")
	}
	return nil
}
