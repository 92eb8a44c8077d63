package finding

import "fmt"

// Vulnerability represents one normalized finding reported by a
// scanning backend. It is an immutable value: backends create it while
// parsing their raw output and nothing mutates it afterwards.
//
// The ID is unique only within the reporting backend; cross-backend
// identity is not a property of the model.
type Vulnerability struct {
	// ID is the backend-local identifier for the finding.
	ID string `json:"id"`

	// Title is a brief summary of the finding.
	Title string `json:"title"`

	// Description provides detailed information about the finding.
	Description string `json:"description"`

	// Severity indicates the normalized severity level.
	Severity Severity `json:"severity"`

	// CWE is the Common Weakness Enumeration identifier, if known.
	CWE string `json:"cwe,omitempty"`

	// CVSSScore is the CVSS score (0.0 to 10.0), if the backend reports one.
	CVSSScore *float64 `json:"cvss_score,omitempty"`

	// FilePath is the affected file, relative to the scan target.
	FilePath string `json:"file_path,omitempty"`

	// LineNumber is the affected line within FilePath. Zero means unknown.
	LineNumber int `json:"line_number,omitempty"`

	// Tool names the backend that produced the finding.
	Tool string `json:"tool,omitempty"`

	// RuleID identifies the backend rule or check that fired.
	RuleID string `json:"rule_id,omitempty"`

	// Remediation provides guidance on fixing or mitigating the issue.
	Remediation string `json:"remediation,omitempty"`

	// References contains links to relevant advisories or documentation.
	References []string `json:"references"`
}

// Validate checks that the vulnerability has its required fields and
// valid values.
func (v *Vulnerability) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vulnerability ID is required")
	}
	if v.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !v.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", v.Severity)
	}
	if v.CVSSScore != nil && (*v.CVSSScore < 0.0 || *v.CVSSScore > 10.0) {
		return fmt.Errorf("CVSS score must be between 0.0 and 10.0, got %f", *v.CVSSScore)
	}
	if v.LineNumber < 0 {
		return fmt.Errorf("line number cannot be negative")
	}
	return nil
}

// ToStructured converts the vulnerability to its map form for the
// unified result export.
func (v *Vulnerability) ToStructured() map[string]any {
	refs := v.References
	if refs == nil {
		refs = []string{}
	}
	out := map[string]any{
		"id":          v.ID,
		"title":       v.Title,
		"description": v.Description,
		"severity":    v.Severity.String(),
		"references":  refs,
	}
	if v.CWE != "" {
		out["cwe"] = v.CWE
	}
	if v.CVSSScore != nil {
		out["cvss_score"] = *v.CVSSScore
	}
	if v.FilePath != "" {
		out["file_path"] = v.FilePath
	}
	if v.LineNumber > 0 {
		out["line_number"] = v.LineNumber
	}
	if v.Tool != "" {
		out["tool"] = v.Tool
	}
	if v.RuleID != "" {
		out["rule_id"] = v.RuleID
	}
	if v.Remediation != "" {
		out["remediation"] = v.Remediation
	}
	return out
}
