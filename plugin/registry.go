package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/secureflow/secureflow/scan"
)

var (
	// ErrInvalidRole is returned when a plugin implements zero or
	// several capability interfaces.
	ErrInvalidRole = errors.New("plugin: must implement exactly one capability interface")

	// ErrNotFound is returned when no plugin is registered under a name.
	ErrNotFound = errors.New("plugin: not found")
)

// entry pairs a plugin with its registration-time state.
type entry struct {
	plugin      Plugin
	role        Role
	initialized bool
}

// Registry hosts plugins for the lifetime of a process. All methods are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*entry
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*entry),
	}
}

// Register adds a plugin under its name, classifying its role from the
// capability interface it implements. Registering a second plugin with
// the same name replaces the first with a warning.
func (r *Registry) Register(p Plugin) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("plugin: cannot register unnamed plugin")
	}

	role, ok := classify(p)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidRole, p.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name()]; exists {
		slog.Warn("plugin already registered, replacing", "plugin", p.Name())
	}
	r.plugins[p.Name()] = &entry{plugin: p, role: role}

	slog.Debug("plugin registered", "plugin", p.Name(), "version", p.Version(), "role", role)
	return nil
}

// Get returns a registered plugin by name.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.plugin, nil
}

// Names returns all registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Unregister removes a plugin from the registry without calling its
// Cleanup.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.plugins, name)
	return nil
}

// InitializeAll initializes every registered plugin with its section of
// configs and returns the number that came up. A plugin whose
// Initialize fails is logged, kept registered, and left out of
// capability dispatch until re-initialized.
func (r *Registry) InitializeAll(ctx context.Context, configs map[string]map[string]any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for name, e := range r.plugins {
		if e.initialized {
			count++
			continue
		}
		if err := e.plugin.Initialize(ctx, configs[name]); err != nil {
			slog.Warn("plugin initialization failed, skipping", "plugin", name, "error", err)
			continue
		}
		e.initialized = true
		count++
		slog.Info("plugin initialized", "plugin", name, "version", e.plugin.Version())
	}
	return count
}

// byRole snapshots the initialized plugins of one role.
func (r *Registry) byRole(role Role) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Plugin
	for _, e := range r.plugins {
		if e.role == role && e.initialized {
			out = append(out, e.plugin)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Scanners returns the initialized scanner plugins applicable to the
// target, narrowed to the given names when any are passed. Scanners
// implementing TargetFilter are consulted for applicability. The
// registry owns this selection; running the selected scanners, and
// isolating their failures, is the caller's job.
func (r *Registry) Scanners(target string, names ...string) []Scanner {
	selected := make(map[string]bool, len(names))
	for _, name := range names {
		selected[name] = true
	}

	var out []Scanner
	for _, p := range r.byRole(RoleScanner) {
		if len(selected) > 0 && !selected[p.Name()] {
			continue
		}
		if f, ok := p.(TargetFilter); ok && !f.Supports(target) {
			slog.Debug("scanner plugin does not support target, skipping", "plugin", p.Name(), "target", target)
			continue
		}
		out = append(out, p.(Scanner))
	}
	return out
}

// WriteReports dispatches the aggregate to every initialized report
// sink. Sink failures are logged and do not stop the remaining sinks.
func (r *Registry) WriteReports(ctx context.Context, agg scan.Aggregate) {
	for _, p := range r.byRole(RoleReportSink) {
		sink := p.(ReportSink)
		if err := sink.WriteReport(ctx, agg); err != nil {
			slog.Warn("report plugin failed", "plugin", sink.Name(), "error", err)
		}
	}
}

// Publish dispatches the aggregate to every initialized integration.
// Integration failures are logged and do not stop the remaining ones.
func (r *Registry) Publish(ctx context.Context, agg scan.Aggregate) {
	for _, p := range r.byRole(RoleIntegration) {
		sink := p.(IntegrationSink)
		if err := sink.Publish(ctx, agg); err != nil {
			slog.Warn("integration plugin failed", "plugin", sink.Name(), "error", err)
		}
	}
}

// CleanupAll tears down every registered plugin concurrently. Cleanup
// errors are logged, never propagated.
func (r *Registry) CleanupAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var wg sync.WaitGroup
	for name, e := range r.plugins {
		wg.Add(1)
		go func(name string, p Plugin) {
			defer wg.Done()
			if err := p.Cleanup(ctx); err != nil {
				slog.Warn("plugin cleanup failed", "plugin", name, "error", err)
			}
		}(name, e.plugin)
		e.initialized = false
	}
	wg.Wait()
}
