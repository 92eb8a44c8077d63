// Package health provides readiness checks for the scanning toolchain
// and the result cache. Checks are cheap enough to run on every probe.
package health

import (
	"context"
	"fmt"

	"github.com/secureflow/secureflow/cache"
	"github.com/secureflow/secureflow/config"
	"github.com/secureflow/secureflow/exec"
)

// Status is the outcome of one health check.
type Status struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewHealthy creates a passing status.
func NewHealthy(message string) Status {
	return Status{Healthy: true, Message: message}
}

// NewUnhealthy creates a failing status.
func NewUnhealthy(message string, details map[string]any) Status {
	return Status{Healthy: false, Message: message, Details: details}
}

// BinaryCheck verifies that a tool binary is resolvable in PATH.
func BinaryCheck(name string) Status {
	if name == "" {
		return NewUnhealthy("binary name cannot be empty", nil)
	}
	path, err := exec.BinaryPath(name)
	if err != nil {
		return NewUnhealthy(fmt.Sprintf("binary %q not found in PATH", name), map[string]any{
			"binary": name,
			"error":  err.Error(),
		})
	}
	return NewHealthy(fmt.Sprintf("binary %q found at %s", name, path))
}

// StoreCheck verifies that the cache store answers a stats query.
func StoreCheck(ctx context.Context, store cache.Store) Status {
	if store == nil {
		return NewHealthy("cache disabled")
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return NewUnhealthy("cache store unreachable", map[string]any{"error": err.Error()})
	}
	return Status{
		Healthy: true,
		Message: "cache store reachable",
		Details: map[string]any{
			"entries":    stats.TotalEntries,
			"size_bytes": stats.SizeBytes,
		},
	}
}

// ToolchainCheck probes the binary of every enabled category's
// configured tool. The map is keyed by tool name.
func ToolchainCheck(cfg *config.Config) map[string]Status {
	out := make(map[string]Status)
	for _, category := range cfg.EnabledCategories() {
		tool, err := cfg.ToolFor(category)
		if err != nil {
			continue
		}
		if _, seen := out[tool]; seen {
			continue
		}
		out[tool] = BinaryCheck(binaryFor(tool))
	}
	return out
}

// binaryFor maps a tool name onto the binary the adapter invokes.
func binaryFor(tool string) string {
	if tool == "npm-audit" {
		return "npm"
	}
	return tool
}

// Report summarizes the full readiness picture of one engine setup.
type Report struct {
	Healthy bool              `json:"healthy"`
	Tools   map[string]Status `json:"tools"`
	Cache   Status            `json:"cache"`
}

// Check produces the combined readiness report.
func Check(ctx context.Context, cfg *config.Config, store cache.Store) Report {
	report := Report{
		Tools: ToolchainCheck(cfg),
		Cache: StoreCheck(ctx, store),
	}
	report.Healthy = report.Cache.Healthy
	for _, s := range report.Tools {
		if !s.Healthy {
			report.Healthy = false
		}
	}
	return report
}
