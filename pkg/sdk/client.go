package brokerdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/brokerdex/internal/config"
	"github.com/kailas-cloud/brokerdex/internal/db"
	dbRedis "github.com/kailas-cloud/brokerdex/internal/db/redis"
	"github.com/kailas-cloud/brokerdex/internal/factory"
	callbackuc "github.com/kailas-cloud/brokerdex/internal/usecase/callback"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/brokerdex/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the brokerdex SDK entry point.
type Client struct {
	store    db.Store
	idx      *index.Service
	callback *callbackuc.Service
	search   *searchuc.Service
	obs      *observer
}

// New creates a Client and waits for the backend to answer.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.configFile != "" {
		if err := mergeConfigFile(cfg, opts); err != nil {
			return nil, err
		}
	}

	store := cfg.store
	if store == nil {
		var err error
		if store, err = createStore(cfg); err != nil {
			return nil, err
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("brokerdex: backend not ready: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// mergeConfigFile loads the file section, then reapplies opts on top of it.
func mergeConfigFile(cfg *clientConfig, opts []Option) error {
	s, err := config.LoadSection(cfg.configFile)
	if err != nil {
		return fmt.Errorf("brokerdex: %w", err)
	}
	cfg.section = s
	if cfg.driver == "" {
		cfg.driver = config.DriverElasticsearch
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	return nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case config.DriverElasticsearch:
		s, err := factory.ElasticStore(cfg.section)
		if err != nil {
			return nil, fmt.Errorf("brokerdex: create elasticsearch store: %w", err)
		}
		return s, nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("brokerdex: create redis store: %w", err)
		}
		return s, nil
	case "":
		return nil, errors.New("brokerdex: backend required (use WithElasticsearch or WithRedis)")
	default:
		return nil, fmt.Errorf("brokerdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	if err := cfg.section.Validate(); err != nil {
		return nil, fmt.Errorf("brokerdex: %w", err)
	}
	idx, err := factory.Index(store, cfg.section, nil)
	if err != nil {
		return nil, fmt.Errorf("brokerdex: %w", err)
	}
	return &Client{
		store:    store,
		idx:      idx,
		callback: callbackuc.New(idx, nil),
		search:   searchuc.New(idx),
		obs:      obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Index returns the exported index name.
func (c *Client) Index() string { return c.idx.Name() }

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Handle processes a run-engine document. Only "start" documents are
// exported; it returns the number added to the index.
func (c *Client) Handle(ctx context.Context, name string, doc map[string]any) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("handle", start, err) }()
	return c.callback.Handle(ctx, name, doc)
}

// Reset deletes and recreates the index with the run mapping.
func (c *Client) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reset", start, err) }()
	return c.idx.Reset(ctx)
}

// Rebuild exports every document of it, resetting the index first when
// purge is set. The error is a *BulkError when some documents were not stored.
func (c *Client) Rebuild(ctx context.Context, it Iterator, purge bool) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rebuild", start, err) }()
	return c.callback.Rebuild(ctx, it, purge)
}

// Refresh makes recent writes visible to search.
func (c *Client) Refresh(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("refresh", start, err) }()
	return c.idx.Refresh(ctx)
}

// Search runs a query string search. An empty query matches everything.
func (c *Client) Search(ctx context.Context, query string, size int) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()
	return c.search.Search(ctx, db.SearchRequest{Query: query, Size: size})
}

// UIDs returns the run uids matching query.
func (c *Client) UIDs(ctx context.Context, query string) (uids []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("uids", start, err) }()
	return c.search.UIDs(ctx, db.SearchRequest{Query: query})
}

// Count returns the number of exported documents.
func (c *Client) Count(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, err) }()
	return c.idx.Count(ctx)
}
