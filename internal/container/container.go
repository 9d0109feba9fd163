// Package container wires the application dependencies. It centralizes
// creation order so every component receives its collaborators through
// constructors, and it is the only place that knows how to turn
// configuration into live clients.
package container

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"kassabot/internal/config"
	"kassabot/internal/extract"
	"kassabot/internal/invoice"
	"kassabot/internal/invoicecache"
	"kassabot/internal/ledger"
	"kassabot/internal/logging"
	"kassabot/internal/matcher"
	"kassabot/internal/pipeline"
	"kassabot/internal/session"
	"kassabot/internal/store"
)

// Container holds the wired application. Immutable after creation; access is
// through getters only.
type Container struct {
	logger    logging.Logger
	config    *config.Config
	buckets   *store.BucketConfig
	cache     *invoicecache.Cache
	cleaner   *invoice.Cleaner
	matcher   *matcher.Matcher
	ledger    ledger.Client
	extractor extract.Extractor
	sessions  *session.Store
	processor *pipeline.Processor
}

// Option overrides a dependency before wiring completes, used by tests and
// by commands that substitute a collaborator.
type Option func(*Container)

// WithExtractor replaces the extraction client.
func WithExtractor(e extract.Extractor) Option {
	return func(c *Container) { c.extractor = e }
}

// WithLedger replaces the ledger client.
func WithLedger(l ledger.Client) Option {
	return func(c *Container) { c.ledger = l }
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

	bucketStore := store.NewBucketStore(bucketPath(cfg))
	buckets, err := bucketStore.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load bucket config: %w", err)
	}

	c := &Container{
		logger:   logger,
		config:   cfg,
		buckets:  buckets,
		cache:    invoicecache.New(cachePath(cfg), logger),
		cleaner:  invoice.NewCleaner(logger),
		matcher:  matcher.New(cfg.Matching.Threshold),
		sessions: session.NewStore(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.ledger == nil {
		if cfg.Ledger.APIKey == "" {
			return nil, fmt.Errorf("ledger api key is not set")
		}
		c.ledger = ledger.NewSplitwiseClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey,
			time.Duration(cfg.Ledger.TimeoutSeconds)*time.Second, logger)
	}

	if c.extractor == nil {
		extractor, err := extract.NewGeminiExtractor(ctx, cfg.Extract.APIKey, cfg.Extract.Model,
			time.Duration(cfg.Extract.TimeoutSeconds)*time.Second, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor: %w", err)
		}
		c.extractor = extractor
	}

	c.processor = pipeline.New(c.cache, c.extractor, c.cleaner, c.matcher, c.ledger, c.buckets, logger)
	return c, nil
}

func bucketPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Data.BucketsFile) {
		return cfg.Data.BucketsFile
	}
	return filepath.Join(cfg.Data.Directory, cfg.Data.BucketsFile)
}

func cachePath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Data.CacheFile) {
		return cfg.Data.CacheFile
	}
	return filepath.Join(cfg.Data.Directory, cfg.Data.CacheFile)
}

// Logger returns the application logger.
func (c *Container) Logger() logging.Logger { return c.logger }

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config { return c.config }

// Buckets returns the bucket configuration.
func (c *Container) Buckets() *store.BucketConfig { return c.buckets }

// Ledger returns the ledger client.
func (c *Container) Ledger() ledger.Client { return c.ledger }

// Sessions returns the conversation session store.
func (c *Container) Sessions() *session.Store { return c.sessions }

// Processor returns the receipt pipeline.
func (c *Container) Processor() *pipeline.Processor { return c.processor }

// Close releases clients that hold connections.
func (c *Container) Close() error {
	if closer, ok := c.extractor.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
