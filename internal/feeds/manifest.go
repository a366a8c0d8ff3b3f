package feeds

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is one configured feed endpoint.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type manifest struct {
	Feeds []Source `yaml:"feeds"`
}

//go:embed feeds.yaml
var defaultManifest []byte

// ParseManifest decodes a YAML feed manifest. Blank and repeated URLs are dropped.
func ParseManifest(b []byte) ([]Source, error) {
	var m manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse feed manifest: %w", err)
	}
	seen := map[string]struct{}{}
	out := make([]Source, 0, len(m.Feeds))
	for _, s := range m.Feeds {
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			continue
		}
		if _, ok := seen[s.URL]; ok {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// DefaultURLs returns the feed URLs shipped with the binary.
func DefaultURLs() []string {
	srcs, err := ParseManifest(defaultManifest)
	if err != nil {
		panic(err)
	}
	urls := make([]string, len(srcs))
	for i, s := range srcs {
		urls[i] = s.URL
	}
	return urls
}

// Resolve returns configured URLs when present, otherwise the defaults.
func Resolve(configured []string) []string {
	out := make([]string, 0, len(configured))
	seen := map[string]struct{}{}
	for _, u := range configured {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if len(out) == 0 {
		return DefaultURLs()
	}
	return out
}
