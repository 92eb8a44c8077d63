package scan

import (
	"fmt"
	"time"

	"github.com/secureflow/secureflow/finding"
)

// Metadata keys set by backends and the engine on a Result.
const (
	// MetaStatus annotates the outcome of a run that produced no
	// findings: "failed" or "no_issues_found".
	MetaStatus = "status"

	// MetaError carries the failure message when MetaStatus is "failed".
	MetaError = "error"

	// MetaCommand records the external command a backend invoked.
	MetaCommand = "command"

	// MetaRunID carries the engine-assigned identifier for one
	// orchestration call, shared by every result it aggregates.
	MetaRunID = "run_id"
)

// Status values stored under MetaStatus.
const (
	StatusFailed        = "failed"
	StatusNoIssuesFound = "no_issues_found"
)

// Result is the outcome of running one backend once against one target.
//
// Results are created by the backend's output parser immediately after
// execution completes, successfully or not, and are read-only
// afterwards. A failed run carries its error in Metadata and an empty
// vulnerability list; failure and findings are mutually exclusive.
type Result struct {
	// Tool names the backend that produced the result.
	Tool string `json:"tool"`

	// Target is the scanned path or image reference.
	Target string `json:"target"`

	// Category is the scanning concern the run addressed.
	Category Category `json:"scan_type"`

	// Vulnerabilities lists the normalized findings, in backend order.
	Vulnerabilities []finding.Vulnerability `json:"vulnerabilities"`

	// Duration is the wall-clock execution time.
	Duration time.Duration `json:"scan_duration"`

	// Timestamp records when the run completed.
	Timestamp time.Time `json:"timestamp"`

	// Metadata carries free-form annotations, including the failure
	// status keys above.
	Metadata map[string]string `json:"metadata"`
}

// New creates a successful Result for the given findings.
func New(tool, target string, category Category, vulns []finding.Vulnerability, duration time.Duration) *Result {
	return &Result{
		Tool:            tool,
		Target:          target,
		Category:        category,
		Vulnerabilities: vulns,
		Duration:        duration,
		Timestamp:       time.Now().UTC(),
		Metadata:        map[string]string{},
	}
}

// NewEmpty creates a Result for a run that completed without findings
// because the target had nothing for the backend to analyze.
func NewEmpty(tool, target string, category Category, duration time.Duration) *Result {
	r := New(tool, target, category, nil, duration)
	r.Metadata[MetaStatus] = StatusNoIssuesFound
	return r
}

// NewFailed creates a Result for a run that failed. The vulnerability
// list is empty by construction and the error message is preserved in
// the metadata.
func NewFailed(tool, target string, category Category, duration time.Duration, err error) *Result {
	r := New(tool, target, category, nil, duration)
	r.Metadata[MetaStatus] = StatusFailed
	if err != nil {
		r.Metadata[MetaError] = err.Error()
	}
	return r
}

// Failed reports whether the run failed.
func (r *Result) Failed() bool {
	return r.Metadata[MetaStatus] == StatusFailed
}

// Error returns the failure message, or empty for a successful run.
func (r *Result) Error() string {
	return r.Metadata[MetaError]
}

// CountBySeverity returns the number of findings per severity level.
// Every level appears in the map even when its count is zero. The view
// is computed on demand so it can never go stale.
func (r *Result) CountBySeverity() map[finding.Severity]int {
	counts := make(map[finding.Severity]int, 5)
	for _, s := range finding.AllSeverities() {
		counts[s] = 0
	}
	for _, v := range r.Vulnerabilities {
		counts[v.Severity]++
	}
	return counts
}

// HasHighSeverity reports whether the run found any high or critical
// severity issue.
func (r *Result) HasHighSeverity() bool {
	for _, v := range r.Vulnerabilities {
		if v.Severity == finding.SeverityHigh || v.Severity == finding.SeverityCritical {
			return true
		}
	}
	return false
}

// Validate checks the result's structural invariants, most importantly
// that a failed run carries no findings.
func (r *Result) Validate() error {
	if r.Tool == "" {
		return fmt.Errorf("tool is required")
	}
	if r.Target == "" {
		return fmt.Errorf("target is required")
	}
	if !r.Category.IsValid() {
		return fmt.Errorf("invalid scan category: %s", r.Category)
	}
	if r.Failed() && len(r.Vulnerabilities) > 0 {
		return fmt.Errorf("failed result must not carry findings, got %d", len(r.Vulnerabilities))
	}
	for i := range r.Vulnerabilities {
		if err := r.Vulnerabilities[i].Validate(); err != nil {
			return fmt.Errorf("invalid vulnerability at index %d: %w", i, err)
		}
	}
	return nil
}

// ToStructured yields the canonical nested-map exchange form consumed
// by report renderers and integration sinks. The layout is a stable
// contract:
//
//	{tool, target, scan_type, vulnerabilities, scan_duration,
//	 timestamp, metadata, summary:{total_vulnerabilities,
//	 by_severity, has_high_severity}}
func (r *Result) ToStructured() map[string]any {
	vulns := make([]map[string]any, 0, len(r.Vulnerabilities))
	for i := range r.Vulnerabilities {
		vulns = append(vulns, r.Vulnerabilities[i].ToStructured())
	}

	bySeverity := make(map[string]int, 5)
	for sev, n := range r.CountBySeverity() {
		bySeverity[sev.String()] = n
	}

	metadata := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		metadata[k] = v
	}

	return map[string]any{
		"tool":            r.Tool,
		"target":          r.Target,
		"scan_type":       r.Category.String(),
		"vulnerabilities": vulns,
		"scan_duration":   r.Duration.Seconds(),
		"timestamp":       r.Timestamp.Format(time.RFC3339),
		"metadata":        metadata,
		"summary": map[string]any{
			"total_vulnerabilities": len(r.Vulnerabilities),
			"by_severity":           bySeverity,
			"has_high_severity":     r.HasHighSeverity(),
		},
	}
}

// Aggregate is the outcome of one orchestration call: the per-category
// results of a repository scan.
type Aggregate map[Category]*Result

// TotalVulnerabilities returns the number of findings across all
// categories.
func (a Aggregate) TotalVulnerabilities() int {
	total := 0
	for _, r := range a {
		total += len(r.Vulnerabilities)
	}
	return total
}

// HasHighSeverity reports whether any category found a high or
// critical severity issue.
func (a Aggregate) HasHighSeverity() bool {
	for _, r := range a {
		if r.HasHighSeverity() {
			return true
		}
	}
	return false
}

// CountBySeverity merges the per-category severity counts.
func (a Aggregate) CountBySeverity() map[finding.Severity]int {
	counts := make(map[finding.Severity]int, 5)
	for _, s := range finding.AllSeverities() {
		counts[s] = 0
	}
	for _, r := range a {
		for sev, n := range r.CountBySeverity() {
			counts[sev] += n
		}
	}
	return counts
}

// ToStructured converts every per-category result to its exchange form.
func (a Aggregate) ToStructured() map[string]any {
	out := make(map[string]any, len(a))
	for category, r := range a {
		out[category.String()] = r.ToStructured()
	}
	return out
}
