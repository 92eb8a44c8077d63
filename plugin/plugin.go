// Package plugin defines the extension contract for custom scanners,
// report writers and external integrations, and the registry that hosts
// them for the lifetime of a process.
package plugin

import (
	"context"

	"github.com/secureflow/secureflow/scan"
)

// Plugin is the base contract every extension implements. A plugin must
// additionally implement exactly one of the capability interfaces
// below; the registry rejects plugins with zero or multiple roles.
type Plugin interface {
	// Name returns the plugin's unique name.
	Name() string

	// Version returns the plugin's version string.
	Version() string

	// Description returns a one-line summary of what the plugin does.
	Description() string

	// Initialize prepares the plugin with its configuration
	// sub-document. It is called once before any capability method.
	Initialize(ctx context.Context, config map[string]any) error

	// Cleanup releases the plugin's resources. It is called once at
	// shutdown, even when Initialize failed.
	Cleanup(ctx context.Context) error
}

// Scanner is the capability of plugins that produce their own scan
// results for a target.
type Scanner interface {
	Plugin

	// Scan runs the plugin against the target.
	Scan(ctx context.Context, target string) (*scan.Result, error)
}

// TargetFilter is the optional applicability check of a scanner
// plugin. A scanner that implements it is dispatched only against
// targets it reports support for; a scanner that does not is
// dispatched against every target.
type TargetFilter interface {
	// Supports reports whether the scanner is applicable to the target.
	Supports(target string) bool
}

// ReportSink is the capability of plugins that render aggregate
// results into an output artifact.
type ReportSink interface {
	Plugin

	// WriteReport renders the aggregate results.
	WriteReport(ctx context.Context, agg scan.Aggregate) error
}

// IntegrationSink is the capability of plugins that push aggregate
// results to an external system.
type IntegrationSink interface {
	Plugin

	// Publish delivers the aggregate results to the external system.
	Publish(ctx context.Context, agg scan.Aggregate) error
}

// Role classifies a plugin by the capability interface it implements.
type Role string

const (
	RoleScanner     Role = "scanner"
	RoleReportSink  Role = "report_sink"
	RoleIntegration Role = "integration"
)

// String returns the role's string representation.
func (r Role) String() string {
	return string(r)
}

// classify determines a plugin's role from the capability interfaces it
// implements. The bool reports whether exactly one role matched.
func classify(p Plugin) (Role, bool) {
	var roles []Role
	if _, ok := p.(Scanner); ok {
		roles = append(roles, RoleScanner)
	}
	if _, ok := p.(ReportSink); ok {
		roles = append(roles, RoleReportSink)
	}
	if _, ok := p.(IntegrationSink); ok {
		roles = append(roles, RoleIntegration)
	}
	if len(roles) != 1 {
		return "", false
	}
	return roles[0], true
}
