// Package engine orchestrates security scans: it resolves the
// configured backend per category, fans categories out concurrently,
// memoizes results through the cache and folds everything into
// process-lifetime metrics. One engine serves one process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/secureflow/secureflow/backend"
	"github.com/secureflow/secureflow/cache"
	"github.com/secureflow/secureflow/config"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/metrics"
	"github.com/secureflow/secureflow/plugin"
	"github.com/secureflow/secureflow/scan"
)

var (
	// ErrUnknownCategory is returned when a scan is requested for a
	// category the configuration does not cover.
	ErrUnknownCategory = errors.New("engine: unknown scan category")

	// ErrNoBackend is returned when the configured tool name does not
	// match any registered backend for the category.
	ErrNoBackend = errors.New("engine: no backend registered for configured tool")
)

// dockerfileNames gate the container category for repository targets.
var dockerfileNames = []string{"Dockerfile", "Containerfile", "dockerfile"}

// Engine coordinates backends, cache, plugins and metrics for scan runs.
type Engine struct {
	cfg       *config.Config
	backends  map[scan.Category]map[string]backend.Backend
	registry  *plugin.Registry
	store     cache.Store
	collector *metrics.Collector
	tracer    trace.Tracer
	threshold finding.Severity
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches a result cache. Without a store every scan
// executes its backend.
func WithStore(s cache.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRegistry replaces the engine's plugin registry.
func WithRegistry(r *plugin.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithCollector replaces the engine's metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithBackends replaces the built-in backend set.
func WithBackends(backends ...backend.Backend) Option {
	return func(e *Engine) {
		e.backends = indexBackends(backends)
	}
}

// New creates an engine for the given configuration.
func New(cfg *config.Config, opts ...Option) *Engine {
	threshold, err := finding.ParseSeverity(cfg.Scanning.SeverityThreshold)
	if err != nil {
		threshold = finding.SeverityInfo
	}

	e := &Engine{
		cfg: cfg,
		backends: indexBackends(backend.Defaults(backend.Options{
			Timeout:      cfg.ScanTimeout(),
			ExcludePaths: cfg.Scanning.ExcludePaths,
		})),
		registry:  plugin.NewRegistry(),
		collector: metrics.NewCollector(),
		tracer:    otel.Tracer("secureflow/engine"),
		threshold: threshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func indexBackends(backends []backend.Backend) map[scan.Category]map[string]backend.Backend {
	index := make(map[scan.Category]map[string]backend.Backend)
	for _, b := range backends {
		if index[b.Category()] == nil {
			index[b.Category()] = make(map[string]backend.Backend)
		}
		index[b.Category()][b.Name()] = b
	}
	return index
}

// Registry returns the engine's plugin registry.
func (e *Engine) Registry() *plugin.Registry {
	return e.registry
}

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() *metrics.Collector {
	return e.collector
}

// backendFor resolves the configured backend for a category. Both
// failure modes are configuration errors, not scan failures.
func (e *Engine) backendFor(category scan.Category) (backend.Backend, error) {
	tool, err := e.cfg.ToolFor(category)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	b, ok := e.backends[category][tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoBackend, category, tool)
	}
	return b, nil
}

// RunCategory scans the target with the configured backend for one
// category. The returned error is reserved for configuration problems;
// backend failures come back as a failed Result.
func (e *Engine) RunCategory(ctx context.Context, target string, category scan.Category) (*scan.Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RunCategory", trace.WithAttributes(
		attribute.String("scan.category", category.String()),
		attribute.String("scan.target", target),
	))
	defer span.End()

	b, err := e.backendFor(category)
	if err != nil {
		return nil, err
	}

	if !b.Supports(target) {
		slog.Debug("backend does not support target, skipping",
			"backend", b.Name(), "category", category, "target", target)
		return scan.NewEmpty(b.Name(), target, category, 0), nil
	}

	if cached := e.cacheGet(ctx, target, category, b.Name()); cached != nil {
		span.SetAttributes(attribute.Bool("scan.cache_hit", true))
		return cached, nil
	}

	res := b.Execute(ctx, target)
	e.applyThreshold(res)

	if !res.Failed() {
		e.cachePut(ctx, target, category, b.Name(), res)
	}
	return res, nil
}

// RunAll scans the target across every enabled category concurrently.
// Each per-category failure is isolated into its result; the aggregate
// always covers every attempted category. All results share one run ID
// and the aggregate is folded into the metrics exactly once.
func (e *Engine) RunAll(ctx context.Context, target string) (scan.Aggregate, error) {
	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "engine.RunAll", trace.WithAttributes(
		attribute.String("scan.target", target),
		attribute.String("scan.run_id", runID),
	))
	defer span.End()

	categories := e.categoriesFor(target)
	slog.Info("starting scan run", "run_id", runID, "target", target, "categories", len(categories))

	limit := e.cfg.Scanning.MaxConcurrentScans
	if limit <= 0 {
		limit = len(categories)
	}
	sem := make(chan struct{}, limit)

	var (
		mu  sync.Mutex
		agg = make(scan.Aggregate, len(categories))
		wg  sync.WaitGroup
	)
	start := time.Now()
	for _, category := range categories {
		wg.Add(1)
		go func(category scan.Category) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := e.RunCategory(ctx, target, category)
			if err != nil {
				// Misconfiguration of one category must not sink the
				// run; surface it as a failed result.
				slog.Error("category misconfigured", "category", category, "error", err)
				res = scan.NewFailed(string(category), target, category, 0, err)
			}
			res.Metadata[scan.MetaRunID] = runID

			mu.Lock()
			agg[category] = res
			mu.Unlock()
		}(category)
	}
	wg.Wait()

	e.collector.Record(agg)

	span.SetAttributes(
		attribute.Int("scan.total_vulnerabilities", agg.TotalVulnerabilities()),
		attribute.Bool("scan.has_high_severity", agg.HasHighSeverity()),
	)
	slog.Info("scan run complete",
		"run_id", runID,
		"duration", time.Since(start),
		"total_vulnerabilities", agg.TotalVulnerabilities(),
		"has_high_severity", agg.HasHighSeverity())
	return agg, nil
}

// RunPlugins executes the initialized scanner plugins applicable to the
// target, all of them or just the named ones. Plugins fan out
// concurrently; a failing plugin is logged and dropped from the output
// without affecting its siblings. Plugin results are folded into the
// metrics but kept out of the category aggregate.
func (e *Engine) RunPlugins(ctx context.Context, target string, names ...string) []*scan.Result {
	ctx, span := e.tracer.Start(ctx, "engine.RunPlugins", trace.WithAttributes(
		attribute.String("scan.target", target),
	))
	defer span.End()

	scanners := e.registry.Scanners(target, names...)

	var (
		mu      sync.Mutex
		results []*scan.Result
		wg      sync.WaitGroup
	)
	for _, s := range scanners {
		wg.Add(1)
		go func(s plugin.Scanner) {
			defer wg.Done()
			res, err := s.Scan(ctx, target)
			if err != nil {
				slog.Warn("plugin scan failed", "plugin", s.Name(), "target", target, "error", err)
				return
			}
			if res == nil {
				return
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Tool < results[j].Tool })
	for _, r := range results {
		e.collector.RecordResult(r)
	}
	return results
}

// categoriesFor narrows the enabled categories to those applicable to
// the target. Container scanning of a repository requires a Dockerfile;
// non-path targets are assumed to be image references.
func (e *Engine) categoriesFor(target string) []scan.Category {
	var out []scan.Category
	for _, category := range e.cfg.EnabledCategories() {
		if category == scan.CategoryContainer && !containerApplicable(target) {
			slog.Debug("no dockerfile present, skipping container scan", "target", target)
			continue
		}
		out = append(out, category)
	}
	return out
}

func containerApplicable(target string) bool {
	info, err := os.Stat(target)
	if err != nil {
		// Not a filesystem path, treat as an image reference.
		return true
	}
	if !info.IsDir() {
		return false
	}
	for _, name := range dockerfileNames {
		if _, err := os.Stat(filepath.Join(target, name)); err == nil {
			return true
		}
	}
	return false
}

// applyThreshold drops findings below the configured minimum severity.
func (e *Engine) applyThreshold(r *scan.Result) {
	if len(r.Vulnerabilities) == 0 {
		return
	}
	kept := r.Vulnerabilities[:0]
	for _, v := range r.Vulnerabilities {
		if v.Severity.AtLeast(e.threshold) {
			kept = append(kept, v)
		}
	}
	r.Vulnerabilities = kept
}

func (e *Engine) cacheGet(ctx context.Context, target string, category scan.Category, tool string) *scan.Result {
	if e.store == nil || !e.cfg.Cache.Enabled {
		return nil
	}
	res, err := e.store.Get(ctx, category, target, tool)
	if err != nil {
		if !cache.IsMiss(err) {
			slog.Warn("cache read failed", "category", category, "tool", tool, "error", err)
		}
		return nil
	}
	slog.Debug("cache hit", "category", category, "tool", tool, "target", target)
	return res
}

func (e *Engine) cachePut(ctx context.Context, target string, category scan.Category, tool string, res *scan.Result) {
	if e.store == nil || !e.cfg.Cache.Enabled {
		return
	}
	if err := e.store.Put(ctx, category, target, tool, res); err != nil {
		slog.Warn("cache write failed", "category", category, "tool", tool, "error", err)
	}
}

// InvalidateCache drops every cached scan result.
func (e *Engine) InvalidateCache(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.InvalidateAll(ctx)
}

// Close tears down plugins and the cache store.
func (e *Engine) Close(ctx context.Context) error {
	e.registry.CleanupAll(ctx)
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
