// Package secureflow is the top-level entry point for embedding the
// scan orchestration engine. A Client wires configuration, backends,
// the result cache, plugins and metrics into one handle.
//
// Example:
//
//	client, err := secureflow.New(secureflow.WithConfigPath(".secureflow.yml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	results, err := client.ScanRepository(ctx, ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if client.FailsBuild(results) {
//	    os.Exit(1)
//	}
package secureflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/secureflow/secureflow/cache"
	"github.com/secureflow/secureflow/config"
	"github.com/secureflow/secureflow/engine"
	"github.com/secureflow/secureflow/metrics"
	"github.com/secureflow/secureflow/plugin"
	"github.com/secureflow/secureflow/scan"
	"github.com/secureflow/secureflow/serve"
)

// Client is the embedder-facing handle over one configured engine.
type Client struct {
	cfg    *config.Config
	store  cache.Store
	engine *engine.Engine
}

type clientOptions struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	engineOpts []engine.Option
}

// Option configures a Client.
type Option func(*clientOptions)

// WithConfigPath loads configuration from an explicit file instead of
// searching the default locations.
func WithConfigPath(path string) Option {
	return func(o *clientOptions) { o.configPath = path }
}

// WithConfig supplies an already-built configuration, skipping file and
// environment loading.
func WithConfig(cfg *config.Config) Option {
	return func(o *clientOptions) { o.cfg = cfg }
}

// WithLogger replaces the default JSON logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithEngineOptions forwards options to the underlying engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *clientOptions) { o.engineOpts = append(o.engineOpts, opts...) }
}

// New creates a Client from the resolved configuration, opening the
// configured cache store and installing the process logger.
func New(opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(cfg.LogLevel),
		}))
	}
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	engineOpts := append([]engine.Option{engine.WithStore(store)}, o.engineOpts...)
	return &Client{
		cfg:    cfg,
		store:  store,
		engine: engine.New(cfg, engineOpts...),
	}, nil
}

func openStore(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisStore(cache.RedisOptions{
			URL: cfg.Cache.RedisURL,
			TTL: cfg.CacheTTL(),
		})
	default:
		return cache.NewFileStore(cfg.Cache.Dir, cfg.CacheTTL())
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config returns the client's resolved configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// RegisterPlugin adds a plugin to the client's registry. Plugins
// registered before InitializePlugins take part in scan runs.
func (c *Client) RegisterPlugin(p plugin.Plugin) error {
	return c.engine.Registry().Register(p)
}

// InitializePlugins initializes every registered plugin with its
// configuration section and returns the number that came up. Plugins
// whose initialization fails are skipped.
func (c *Client) InitializePlugins(ctx context.Context) int {
	return c.engine.Registry().InitializeAll(ctx, c.cfg.Plugins)
}

// ScanRepository scans the target across all enabled categories and
// dispatches the aggregate to report and integration plugins.
func (c *Client) ScanRepository(ctx context.Context, target string) (scan.Aggregate, error) {
	agg, err := c.engine.RunAll(ctx, target)
	if err != nil {
		return nil, err
	}
	c.engine.Registry().WriteReports(ctx, agg)
	c.engine.Registry().Publish(ctx, agg)
	return agg, nil
}

// ScanCategory scans the target with the configured backend for one
// category.
func (c *Client) ScanCategory(ctx context.Context, target string, category scan.Category) (*scan.Result, error) {
	return c.engine.RunCategory(ctx, target, category)
}

// RunPluginScanners executes the initialized scanner plugins against
// the target, all of them or just the named ones.
func (c *Client) RunPluginScanners(ctx context.Context, target string, names ...string) []*scan.Result {
	return c.engine.RunPlugins(ctx, target, names...)
}

// FailsBuild reports whether the aggregate should gate a CI build under
// the configured fail_on flags.
func (c *Client) FailsBuild(agg scan.Aggregate) bool {
	return c.cfg.FailsBuild(agg)
}

// Metrics returns a snapshot of the process-lifetime scan statistics.
func (c *Client) Metrics() metrics.Snapshot {
	return c.engine.Metrics().Snapshot()
}

// Handler returns the operational HTTP surface (health and metrics).
func (c *Client) Handler() http.Handler {
	return serve.Handler(c.cfg, c.store, c.engine.Metrics())
}

// InvalidateCache drops every cached scan result.
func (c *Client) InvalidateCache(ctx context.Context) error {
	return c.engine.InvalidateCache(ctx)
}

// Close tears down plugins and the cache store.
func (c *Client) Close(ctx context.Context) error {
	if err := c.engine.Close(ctx); err != nil {
		return fmt.Errorf("failed to close engine: %w", err)
	}
	return nil
}
