package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"` // key namespace, e.g. "curator"
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // redis | sanity
}

// SanityConfig holds the HTTP document API settings.
type SanityConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	Dataset    string `mapstructure:"dataset"`
	Token      string `mapstructure:"token"`
	APIVersion string `mapstructure:"api_version"`
	BaseURL    string `mapstructure:"base_url"` // optional override
}

// OpenAIConfig configures the classification backend.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"` // optional
	Temperature float32 `mapstructure:"temperature"`
	Timeout     string  `mapstructure:"timeout"`      // duration string, e.g. "60s"
	MinInterval string  `mapstructure:"min_interval"` // pause between calls, e.g. "1s"
}

// FeedsConfig controls the feed aggregator.
type FeedsConfig struct {
	URLs         []string `mapstructure:"urls"` // overrides the embedded manifest
	ItemsPerFeed int      `mapstructure:"items_per_feed"`
	UserAgent    string   `mapstructure:"user_agent"`
	Timeout      string   `mapstructure:"timeout"`
}

// PipelineConfig controls a curation run.
type PipelineConfig struct {
	// PromoteLimit is nil when unset; 0 is a valid ingest-only setting.
	PromoteLimit *int   `mapstructure:"promote_limit"`
	PromoteAs    string `mapstructure:"promote_as"` // post | news
	Workers      int    `mapstructure:"workers"`
	IOTimeout    string `mapstructure:"io_timeout"`
	Interval     string `mapstructure:"interval"` // serve mode only
}

// DefaultPromoteLimit applies when promote_limit is not configured.
const DefaultPromoteLimit = 3

// Promotions returns the per-run promotion quota.
func (p PipelineConfig) Promotions() int {
	if p.PromoteLimit == nil {
		return DefaultPromoteLimit
	}
	return *p.PromoteLimit
}

// CloudflareConfig enables optional page scraping for items without a snippet.
type CloudflareConfig struct {
	AccountID string `mapstructure:"account_id"`
	APIToken  string `mapstructure:"api_token"`
}

// MetricsConfig controls the Prometheus endpoint in serve mode.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the top-level configuration structure.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Sanity     SanityConfig     `mapstructure:"sanity"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Feeds      FeedsConfig      `mapstructure:"feeds"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// MaxWorkers bounds concurrent feed workers.
const MaxWorkers = 4

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "curator"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = "redis"
	}
	if c.Sanity.Dataset == "" {
		c.Sanity.Dataset = "production"
	}
	if c.Sanity.APIVersion == "" {
		c.Sanity.APIVersion = "2024-03-01"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.Timeout == "" {
		c.OpenAI.Timeout = "60s"
	}
	if c.OpenAI.MinInterval == "" {
		c.OpenAI.MinInterval = "1s"
	}
	if c.Feeds.ItemsPerFeed == 0 {
		c.Feeds.ItemsPerFeed = 2
	}
	if c.Feeds.UserAgent == "" {
		c.Feeds.UserAgent = "Mozilla/5.0 (compatible; curator/1.0; +https://mixtape252.com)"
	}
	if c.Feeds.Timeout == "" {
		c.Feeds.Timeout = "20s"
	}
	if c.Pipeline.PromoteLimit == nil {
		n := DefaultPromoteLimit
		c.Pipeline.PromoteLimit = &n
	}
	c.Pipeline.PromoteAs = strings.ToLower(strings.TrimSpace(c.Pipeline.PromoteAs))
	if c.Pipeline.PromoteAs == "" {
		c.Pipeline.PromoteAs = "post"
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.IOTimeout == "" {
		c.Pipeline.IOTimeout = "30s"
	}
	if c.Pipeline.Interval == "" {
		c.Pipeline.Interval = "6h"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// Validate reports missing credentials and malformed settings. A failure here
// is the only condition that stops the program before any pipeline work.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		errs = append(errs, errors.New("openai.api_key is required"))
	}
	if strings.TrimSpace(c.OpenAI.Model) == "" {
		errs = append(errs, errors.New("openai.model is required"))
	}
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]string{
		"openai.timeout":      c.OpenAI.Timeout,
		"openai.min_interval": c.OpenAI.MinInterval,
		"feeds.timeout":       c.Feeds.Timeout,
		"pipeline.io_timeout": c.Pipeline.IOTimeout,
		"pipeline.interval":   c.Pipeline.Interval,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
	}
	if c.Feeds.ItemsPerFeed < 0 {
		errs = append(errs, errors.New("feeds.items_per_feed must be positive"))
	}
	if c.Pipeline.Promotions() < 0 {
		errs = append(errs, errors.New("pipeline.promote_limit must not be negative"))
	}
	if c.Pipeline.PromoteAs != "post" && c.Pipeline.PromoteAs != "news" {
		errs = append(errs, fmt.Errorf("pipeline.promote_as must be post or news, got %q", c.Pipeline.PromoteAs))
	}
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > MaxWorkers {
		errs = append(errs, fmt.Errorf("pipeline.workers must be between 1 and %d", MaxWorkers))
	}
	return errors.Join(errs...)
}

// ValidateStore checks only the document store settings, for commands that
// never call the classifier.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr is required")
		}
	case "sanity":
		var errs []error
		if strings.TrimSpace(c.Sanity.ProjectID) == "" && strings.TrimSpace(c.Sanity.BaseURL) == "" {
			errs = append(errs, errors.New("sanity.project_id is required"))
		}
		if strings.TrimSpace(c.Sanity.Token) == "" {
			errs = append(errs, errors.New("sanity.token is required"))
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("store.driver must be redis or sanity, got %q", c.Store.Driver)
	}
	return nil
}

// Duration parses a duration string that Validate has already checked.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
