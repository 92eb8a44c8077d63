package finding

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a security finding.
type Severity string

const (
	// SeverityCritical indicates a critical issue requiring immediate attention.
	// Examples: Remote code execution, leaked production credentials
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a high-impact security issue.
	// Examples: Known-exploitable dependency, hardcoded secret
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a moderate security issue.
	// Examples: Weak cryptographic configuration, permissive IAM policy
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor security issue.
	// Examples: Verbose error output, missing security header
	SeverityLow Severity = "low"

	// SeverityInfo indicates an informational finding without direct impact.
	// Examples: Best practice recommendations, tool diagnostics
	SeverityInfo Severity = "info"
)

// severityWeights maps severity levels to numeric weights for ordering
// and threshold comparison. Higher weights indicate more severe findings.
var severityWeights = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight associated with the severity level.
// Returns 0 for invalid severity levels.
func (s Severity) Weight() int {
	return severityWeights[s]
}

// AtLeast returns true if the severity is equal to or more severe than
// the given threshold. Used for report filtering and fail-build decisions.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Weight() >= threshold.Weight()
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity value.
// Returns an error if the string is not a valid severity level.
func ParseSeverity(s string) (Severity, error) {
	severity := Severity(strings.ToLower(s))
	if !severity.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return severity, nil
}

// CompareSeverity compares two severity levels.
// Returns:
//   - negative if s1 < s2
//   - zero if s1 == s2
//   - positive if s1 > s2
func CompareSeverity(s1, s2 Severity) int {
	return s1.Weight() - s2.Weight()
}

// NormalizeSeverity maps a backend-native severity string onto the
// canonical scale. The mapping is total: strings the table does not
// know collapse to SeverityInfo rather than being dropped, so a backend
// introducing a new level can never lose findings silently.
//
// Tool conventions covered by the table:
//   - ERROR (semgrep, bandit)    -> high
//   - WARNING (semgrep, checkov) -> medium
//   - MODERATE (npm audit)       -> medium
//   - UNKNOWN/NEGLIGIBLE (trivy) -> info
func NormalizeSeverity(raw string) Severity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH", "ERROR":
		return SeverityHigh
	case "MEDIUM", "WARNING", "MODERATE":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// AllSeverities returns all valid severity levels in order from critical to info.
func AllSeverities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
	}
}
