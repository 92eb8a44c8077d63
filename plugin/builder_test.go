package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureflow/secureflow/scan"
)

func TestNewScanner_RegistersAsScanner(t *testing.T) {
	p := NewScanner("todo-hunter", "1.0.0", "flags TODO markers",
		func(_ context.Context, target string) (*scan.Result, error) {
			return scan.NewEmpty("todo-hunter", target, scan.CategoryCustom, time.Millisecond), nil
		})

	r := NewRegistry()
	require.NoError(t, r.Register(p))
	r.InitializeAll(context.Background(), nil)

	scanners := r.Scanners("/repo")
	require.Len(t, scanners, 1)

	res, err := scanners[0].Scan(context.Background(), "/repo")
	require.NoError(t, err)
	assert.Equal(t, "todo-hunter", res.Tool)
}

func TestBuilder_LifecycleHooks(t *testing.T) {
	var gotConfig map[string]any
	cleaned := false

	p := NewReportSink("json-report", "1.0.0", "writes a JSON report",
		func(context.Context, scan.Aggregate) error { return nil },
		WithInitialize(func(_ context.Context, config map[string]any) error {
			gotConfig = config
			return nil
		}),
		WithCleanup(func(context.Context) error {
			cleaned = true
			return nil
		}),
	)

	require.NoError(t, p.Initialize(context.Background(), map[string]any{"path": "out.json"}))
	assert.Equal(t, "out.json", gotConfig["path"])

	require.NoError(t, p.Cleanup(context.Background()))
	assert.True(t, cleaned)
}

func TestNewScanner_WithSuffixes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte("resource {}\n"), 0o644))

	p := NewScanner("tf-lint", "1.0.0", "checks terraform files",
		func(_ context.Context, target string) (*scan.Result, error) {
			return scan.NewEmpty("tf-lint", target, scan.CategoryCustom, time.Millisecond), nil
		},
		WithSuffixes(".tf"),
	)

	r := NewRegistry()
	require.NoError(t, r.Register(p))
	r.InitializeAll(context.Background(), nil)

	assert.Len(t, r.Scanners(dir), 1)
	assert.Empty(t, r.Scanners(t.TempDir()))
}

func TestNewIntegration_Role(t *testing.T) {
	p := NewIntegration("webhook", "1.0.0", "posts results",
		func(context.Context, scan.Aggregate) error { return nil })

	role, ok := classify(p)
	require.True(t, ok)
	assert.Equal(t, RoleIntegration, role)
}
