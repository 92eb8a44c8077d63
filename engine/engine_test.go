package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureflow/secureflow/backend"
	"github.com/secureflow/secureflow/cache"
	"github.com/secureflow/secureflow/config"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/plugin"
	"github.com/secureflow/secureflow/scan"
)

// fakeBackend is a scriptable in-memory backend.
type fakeBackend struct {
	name        string
	category    scan.Category
	unsupported bool
	fail        bool
	severities  []finding.Severity
	executions  atomic.Int32
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Category() scan.Category { return f.category }

func (f *fakeBackend) Supports(string) bool { return !f.unsupported }

func (f *fakeBackend) Execute(_ context.Context, target string) *scan.Result {
	f.executions.Add(1)
	if f.fail {
		return scan.NewFailed(f.name, target, f.category, time.Millisecond, errors.New("tool crashed"))
	}
	if len(f.severities) == 0 {
		return scan.NewEmpty(f.name, target, f.category, time.Millisecond)
	}
	var vulns []finding.Vulnerability
	for i, s := range f.severities {
		vulns = append(vulns, finding.Vulnerability{
			ID:       f.name + "-" + s.String() + "-" + string(rune('a'+i)),
			Title:    "finding",
			Severity: s,
			Tool:     f.name,
		})
	}
	return scan.New(f.name, target, f.category, vulns, time.Millisecond)
}

// fakeSet covers every builtin category under the default tool names.
func fakeSet() map[scan.Category]*fakeBackend {
	return map[scan.Category]*fakeBackend{
		scan.CategorySAST:      {name: "semgrep", category: scan.CategorySAST, severities: []finding.Severity{finding.SeverityHigh}},
		scan.CategorySCA:       {name: "safety", category: scan.CategorySCA},
		scan.CategorySecrets:   {name: "gitleaks", category: scan.CategorySecrets, severities: []finding.Severity{finding.SeverityHigh}},
		scan.CategoryIaC:       {name: "checkov", category: scan.CategoryIaC, severities: []finding.Severity{finding.SeverityMedium}},
		scan.CategoryContainer: {name: "trivy", category: scan.CategoryContainer},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, fakes map[scan.Category]*fakeBackend, opts ...Option) *Engine {
	t.Helper()
	backends := make([]backend.Backend, 0, len(fakes))
	for _, f := range fakes {
		backends = append(backends, f)
	}
	opts = append([]Option{WithBackends(backends...)}, opts...)
	return New(cfg, opts...)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Scanning.SeverityThreshold = "info"
	return cfg
}

func TestRunCategory_UnknownCategory(t *testing.T) {
	e := newTestEngine(t, testConfig(), fakeSet())

	_, err := e.RunCategory(context.Background(), "/repo", scan.CategoryCustom)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRunCategory_UnregisteredTool(t *testing.T) {
	cfg := testConfig()
	cfg.Scanning.SASTTool = "ghost-analyzer"
	e := newTestEngine(t, cfg, fakeSet())

	_, err := e.RunCategory(context.Background(), "/repo", scan.CategorySAST)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestRunCategory_UnsupportedTargetIsEmptyResult(t *testing.T) {
	fakes := fakeSet()
	fakes[scan.CategorySAST].unsupported = true
	e := newTestEngine(t, testConfig(), fakes)

	res, err := e.RunCategory(context.Background(), "/repo", scan.CategorySAST)
	require.NoError(t, err)

	assert.False(t, res.Failed())
	assert.Empty(t, res.Vulnerabilities)
	assert.Equal(t, int32(0), fakes[scan.CategorySAST].executions.Load())
}

func TestRunCategory_BackendFailureIsResultNotError(t *testing.T) {
	fakes := fakeSet()
	fakes[scan.CategorySCA].fail = true
	e := newTestEngine(t, testConfig(), fakes)

	res, err := e.RunCategory(context.Background(), "/repo", scan.CategorySCA)
	require.NoError(t, err)

	assert.True(t, res.Failed())
	assert.Empty(t, res.Vulnerabilities)
	assert.Contains(t, res.Error(), "tool crashed")
}

func TestRunCategory_SeverityThreshold(t *testing.T) {
	fakes := fakeSet()
	fakes[scan.CategorySAST].severities = []finding.Severity{
		finding.SeverityCritical, finding.SeverityMedium, finding.SeverityLow, finding.SeverityInfo,
	}
	cfg := testConfig()
	cfg.Scanning.SeverityThreshold = "medium"
	e := newTestEngine(t, cfg, fakes)

	res, err := e.RunCategory(context.Background(), "/repo", scan.CategorySAST)
	require.NoError(t, err)

	require.Len(t, res.Vulnerabilities, 2)
	for _, v := range res.Vulnerabilities {
		assert.True(t, v.Severity.AtLeast(finding.SeverityMedium))
	}
}

func TestRunCategory_CacheShortCircuitsSecondRun(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	fakes := fakeSet()
	cfg := testConfig()
	cfg.Cache.Enabled = true
	e := newTestEngine(t, cfg, fakes, WithStore(store))
	ctx := context.Background()

	first, err := e.RunCategory(ctx, "/repo", scan.CategorySAST)
	require.NoError(t, err)
	second, err := e.RunCategory(ctx, "/repo", scan.CategorySAST)
	require.NoError(t, err)

	assert.Equal(t, int32(1), fakes[scan.CategorySAST].executions.Load())
	require.Len(t, second.Vulnerabilities, len(first.Vulnerabilities))
	assert.Equal(t, first.Vulnerabilities[0].ID, second.Vulnerabilities[0].ID)
}

func TestRunCategory_FailedResultsAreNotCached(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	fakes := fakeSet()
	fakes[scan.CategorySCA].fail = true
	cfg := testConfig()
	cfg.Cache.Enabled = true
	e := newTestEngine(t, cfg, fakes, WithStore(store))
	ctx := context.Background()

	_, err = e.RunCategory(ctx, "/repo", scan.CategorySCA)
	require.NoError(t, err)
	_, err = e.RunCategory(ctx, "/repo", scan.CategorySCA)
	require.NoError(t, err)

	assert.Equal(t, int32(2), fakes[scan.CategorySCA].executions.Load())
}

func TestRunAll_FailureIsolationAndRunID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM alpine\n"), 0o644))

	fakes := fakeSet()
	fakes[scan.CategoryIaC].fail = true
	e := newTestEngine(t, testConfig(), fakes)

	agg, err := e.RunAll(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, agg, 5)

	assert.True(t, agg[scan.CategoryIaC].Failed())
	assert.False(t, agg[scan.CategorySAST].Failed())
	require.Len(t, agg[scan.CategorySAST].Vulnerabilities, 1)

	runID := agg[scan.CategorySAST].Metadata[scan.MetaRunID]
	require.NotEmpty(t, runID)
	for _, res := range agg {
		assert.Equal(t, runID, res.Metadata[scan.MetaRunID])
	}
}

func TestRunAll_SkipsContainerWithoutDockerfile(t *testing.T) {
	fakes := fakeSet()
	e := newTestEngine(t, testConfig(), fakes)

	agg, err := e.RunAll(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Len(t, agg, 4)
	assert.NotContains(t, agg, scan.CategoryContainer)
	assert.Equal(t, int32(0), fakes[scan.CategoryContainer].executions.Load())
}

func TestRunAll_MisconfiguredCategoryIsIsolated(t *testing.T) {
	cfg := testConfig()
	cfg.Scanning.SecretsTool = "ghost"
	e := newTestEngine(t, cfg, fakeSet())

	agg, err := e.RunAll(context.Background(), t.TempDir())
	require.NoError(t, err)

	require.Contains(t, agg, scan.CategorySecrets)
	assert.True(t, agg[scan.CategorySecrets].Failed())
	assert.False(t, agg[scan.CategorySAST].Failed())
}

func TestRunAll_RecordsMetricsOnce(t *testing.T) {
	e := newTestEngine(t, testConfig(), fakeSet())

	_, err := e.RunAll(context.Background(), t.TempDir())
	require.NoError(t, err)

	s := e.Metrics().Snapshot()
	assert.Equal(t, 4, s.ScansPerformed)
	assert.Equal(t, 3, s.VulnerabilitiesFound)
}

type pluginScanner struct {
	name string
	err  error
}

func (p *pluginScanner) Name() string        { return p.name }
func (p *pluginScanner) Version() string     { return "1.0.0" }
func (p *pluginScanner) Description() string { return "custom checks" }
func (p *pluginScanner) Cleanup(context.Context) error { return nil }

func (p *pluginScanner) Initialize(context.Context, map[string]any) error { return nil }

func (p *pluginScanner) Scan(_ context.Context, target string) (*scan.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return scan.New(p.name, target, scan.CategoryCustom, []finding.Vulnerability{
		{ID: "custom-1", Title: "custom", Severity: finding.SeverityLow, Tool: p.name},
	}, time.Millisecond), nil
}

func TestRunPlugins(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&pluginScanner{name: "policy-checks"}))
	reg.InitializeAll(context.Background(), nil)

	e := newTestEngine(t, testConfig(), fakeSet(), WithRegistry(reg))

	results := e.RunPlugins(context.Background(), "/repo")
	require.Len(t, results, 1)
	assert.Equal(t, scan.CategoryCustom, results[0].Category)

	s := e.Metrics().Snapshot()
	assert.Equal(t, 1, s.ScansPerformed)
	assert.Equal(t, 1, s.ByTool["policy-checks"])
}

func TestRunPlugins_FailureIsolation(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&pluginScanner{name: "a"}))
	require.NoError(t, reg.Register(&pluginScanner{name: "b", err: errors.New("crashed")}))
	require.NoError(t, reg.Register(&pluginScanner{name: "c"}))
	reg.InitializeAll(context.Background(), nil)

	e := newTestEngine(t, testConfig(), fakeSet(), WithRegistry(reg))

	results := e.RunPlugins(context.Background(), "/repo")
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Tool)
	assert.Equal(t, "c", results[1].Tool)
}

func TestRunPlugins_SelectsByName(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(&pluginScanner{name: "a"}))
	require.NoError(t, reg.Register(&pluginScanner{name: "b"}))
	reg.InitializeAll(context.Background(), nil)

	e := newTestEngine(t, testConfig(), fakeSet(), WithRegistry(reg))

	results := e.RunPlugins(context.Background(), "/repo", "b")
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Tool)
}

func TestInvalidateCache(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	fakes := fakeSet()
	cfg := testConfig()
	cfg.Cache.Enabled = true
	e := newTestEngine(t, cfg, fakes, WithStore(store))
	ctx := context.Background()

	_, err = e.RunCategory(ctx, "/repo", scan.CategorySAST)
	require.NoError(t, err)
	require.NoError(t, e.InvalidateCache(ctx))

	_, err = e.RunCategory(ctx, "/repo", scan.CategorySAST)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fakes[scan.CategorySAST].executions.Load())
}
