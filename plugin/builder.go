package plugin

import (
	"context"

	"github.com/secureflow/secureflow/scan"
)

// ScanFunc is the behavior of a function-built scanner plugin.
type ScanFunc func(ctx context.Context, target string) (*scan.Result, error)

// ReportFunc is the behavior of a function-built report sink.
type ReportFunc func(ctx context.Context, agg scan.Aggregate) error

// PublishFunc is the behavior of a function-built integration sink.
type PublishFunc func(ctx context.Context, agg scan.Aggregate) error

// InitFunc customizes a function-built plugin's initialization.
type InitFunc func(ctx context.Context, config map[string]any) error

// CleanupFunc customizes a function-built plugin's teardown.
type CleanupFunc func(ctx context.Context) error

// BuilderOption customizes a function-built plugin.
type BuilderOption func(*funcPlugin)

// WithInitialize sets the initialization hook.
func WithInitialize(fn InitFunc) BuilderOption {
	return func(p *funcPlugin) { p.init = fn }
}

// WithCleanup sets the teardown hook.
func WithCleanup(fn CleanupFunc) BuilderOption {
	return func(p *funcPlugin) { p.cleanup = fn }
}

// WithSuffixes restricts a function-built scanner to targets carrying
// one of the file suffixes. Only scanner plugins consult it.
func WithSuffixes(suffixes ...string) BuilderOption {
	return func(p *funcPlugin) { p.suffixes = suffixes }
}

// funcPlugin carries the lifecycle half shared by all function-built
// plugins.
type funcPlugin struct {
	name        string
	version     string
	description string
	suffixes    []string
	init        InitFunc
	cleanup     CleanupFunc
}

func (p *funcPlugin) Name() string { return p.name }

func (p *funcPlugin) Version() string { return p.version }

func (p *funcPlugin) Description() string { return p.description }

func (p *funcPlugin) Initialize(ctx context.Context, config map[string]any) error {
	if p.init == nil {
		return nil
	}
	return p.init(ctx, config)
}

func (p *funcPlugin) Cleanup(ctx context.Context) error {
	if p.cleanup == nil {
		return nil
	}
	return p.cleanup(ctx)
}

type funcScanner struct {
	funcPlugin
	scan ScanFunc
}

func (p *funcScanner) Scan(ctx context.Context, target string) (*scan.Result, error) {
	return p.scan(ctx, target)
}

func (p *funcScanner) Supports(target string) bool {
	return scan.MatchesSuffixes(target, p.suffixes)
}

type funcReportSink struct {
	funcPlugin
	report ReportFunc
}

func (p *funcReportSink) WriteReport(ctx context.Context, agg scan.Aggregate) error {
	return p.report(ctx, agg)
}

type funcIntegration struct {
	funcPlugin
	publish PublishFunc
}

func (p *funcIntegration) Publish(ctx context.Context, agg scan.Aggregate) error {
	return p.publish(ctx, agg)
}

// NewScanner builds a scanner plugin from a function.
func NewScanner(name, version, description string, fn ScanFunc, opts ...BuilderOption) Scanner {
	p := &funcScanner{
		funcPlugin: funcPlugin{name: name, version: version, description: description},
		scan:       fn,
	}
	for _, opt := range opts {
		opt(&p.funcPlugin)
	}
	return p
}

// NewReportSink builds a report sink plugin from a function.
func NewReportSink(name, version, description string, fn ReportFunc, opts ...BuilderOption) ReportSink {
	p := &funcReportSink{
		funcPlugin: funcPlugin{name: name, version: version, description: description},
		report:     fn,
	}
	for _, opt := range opts {
		opt(&p.funcPlugin)
	}
	return p
}

// NewIntegration builds an integration sink plugin from a function.
func NewIntegration(name, version, description string, fn PublishFunc, opts ...BuilderOption) IntegrationSink {
	p := &funcIntegration{
		funcPlugin: funcPlugin{name: name, version: version, description: description},
		publish:    fn,
	}
	for _, opt := range opts {
		opt(&p.funcPlugin)
	}
	return p
}
