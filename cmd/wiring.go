package cmd

import (
	"context"
	"time"

	"curator/internal/ai"
	"curator/internal/config"
	"curator/internal/curation"
	"curator/internal/dedup"
	"curator/internal/docstore"
	"curator/internal/feeds"
	"curator/internal/pipeline"
	"curator/internal/publish"
	"curator/internal/redisclient"
	"curator/internal/scrape"
)

// openStore connects the configured document store. The returned func
// releases it.
func openStore(cfg config.Config) (docstore.Store, func()) {
	if cfg.Store.Driver == "sanity" {
		s := docstore.NewSanityStore(docstore.SanityConfig{
			ProjectID:  cfg.Sanity.ProjectID,
			Dataset:    cfg.Sanity.Dataset,
			Token:      cfg.Sanity.Token,
			APIVersion: cfg.Sanity.APIVersion,
			BaseURL:    cfg.Sanity.BaseURL,
			Timeout:    config.Duration(cfg.Pipeline.IOTimeout),
		})
		return s, func() {}
	}
	rdb := redisclient.New(cfg.Redis)
	return docstore.NewRedisStore(rdb, cfg.Redis.Prefix), func() { _ = rdb.Close() }
}

func newAggregator(cfg config.Config) *feeds.Aggregator {
	return feeds.NewAggregator(feeds.Resolve(cfg.Feeds.URLs), feeds.Options{
		ItemsPerFeed: cfg.Feeds.ItemsPerFeed,
		UserAgent:    cfg.Feeds.UserAgent,
		Timeout:      config.Duration(cfg.Feeds.Timeout),
	})
}

// newOrchestrator wires every pipeline stage against store.
func newOrchestrator(cfg config.Config, store docstore.Store) (*pipeline.Orchestrator, error) {
	classifier, err := ai.NewOpenAI(ai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		BaseURL:     cfg.OpenAI.BaseURL,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     config.Duration(cfg.OpenAI.Timeout),
		MinInterval: config.Duration(cfg.OpenAI.MinInterval),
	})
	if err != nil {
		return nil, err
	}
	target, err := publish.ParseTarget(cfg.Pipeline.PromoteAs)
	if err != nil {
		return nil, err
	}
	queue := curation.NewQueue(store)
	deps := pipeline.Deps{
		Feeds:      newAggregator(cfg),
		Gate:       dedup.NewGate(store),
		Classifier: classifier,
		Queue:      queue,
		Promoter:   publish.NewPromoter(queue, store, publish.WithTarget(target)),
	}
	if cfg.Cloudflare.AccountID != "" && cfg.Cloudflare.APIToken != "" {
		deps.Enricher = scrape.NewCloudflare(cfg.Cloudflare.AccountID, cfg.Cloudflare.APIToken, "", config.Duration(cfg.Pipeline.IOTimeout))
	}
	return pipeline.New(deps, pipeline.Options{
		PromoteLimit: cfg.Pipeline.Promotions(),
		Workers:      cfg.Pipeline.Workers,
		IOTimeout:    config.Duration(cfg.Pipeline.IOTimeout),
	}), nil
}

func ioTimeout(cfg config.Config) time.Duration {
	d := config.Duration(cfg.Pipeline.IOTimeout)
	if d <= 0 {
		d = 30 * time.Second
	}
	return d
}

// ioContext bounds a single command-level store call.
func ioContext(cfg config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ioTimeout(cfg))
}
