// Package finding defines the canonical, tool-agnostic vulnerability
// model shared by every scanning backend.
//
// Backends report findings in wildly different shapes and severity
// vocabularies; this package is the normalization point. A backend
// parser maps each raw entry onto a Vulnerability and runs its native
// severity string through NormalizeSeverity, after which the rest of
// the system only ever sees the five canonical levels.
package finding
