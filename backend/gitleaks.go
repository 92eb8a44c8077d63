package backend

import (
	"encoding/json"
	"fmt"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// gitleaksFinding mirrors one entry of a gitleaks JSON report.
type gitleaksFinding struct {
	RuleID      string `json:"RuleID"`
	Description string `json:"Description"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	Match       string `json:"Match"`
}

// NewGitleaks returns the default secrets backend. The report is
// directed to stdout so no intermediate file is needed.
//
// Exit codes: 0 no leaks, 1 leaks found.
func NewGitleaks(opts Options) Backend {
	return &subprocess{
		name:         "gitleaks",
		category:     scan.CategorySecrets,
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{1: true},
		buildCmd: func(target string) exec.Config {
			return exec.Config{
				Command: "gitleaks",
				Args: []string{
					"detect",
					"--source", target,
					"--no-git",
					"--no-banner",
					"--report-format", "json",
					"--report-path", "/dev/stdout",
				},
			}
		},
		parse: parseGitleaks,
	}
}

// parseGitleaks maps leaked secrets to findings. Every exposed secret
// is reported as high severity regardless of the rule that caught it.
func parseGitleaks(stdout []byte) ([]finding.Vulnerability, error) {
	var report []gitleaksFinding
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	vulns := make([]finding.Vulnerability, 0, len(report))
	for _, f := range report {
		vulns = append(vulns, finding.Vulnerability{
			ID:          fmt.Sprintf("%s:%s:%d", f.RuleID, f.File, f.StartLine),
			Title:       fmt.Sprintf("Hardcoded secret: %s", f.RuleID),
			Description: f.Description,
			Severity:    finding.SeverityHigh,
			CWE:         "CWE-798",
			FilePath:    f.File,
			LineNumber:  f.StartLine,
			Tool:        "gitleaks",
			RuleID:      f.RuleID,
			Remediation: "remove the secret from the repository and rotate it",
		})
	}
	return vulns, nil
}
