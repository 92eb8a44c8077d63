package backend

import (
	"encoding/json"
	"fmt"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// tfsecReport mirrors the subset of `tfsec --format json` output we read.
type tfsecReport struct {
	Results []struct {
		RuleID          string   `json:"rule_id"`
		RuleDescription string   `json:"rule_description"`
		Severity        string   `json:"severity"`
		Resolution      string   `json:"resolution"`
		Links           []string `json:"links"`
		Location        struct {
			Filename  string `json:"filename"`
			StartLine int    `json:"start_line"`
		} `json:"location"`
	} `json:"results"`
}

// NewTfsec returns the Terraform-focused infrastructure-as-code backend.
//
// Exit codes: 0 no problems, 1 problems found.
func NewTfsec(opts Options) Backend {
	return &subprocess{
		name:         "tfsec",
		category:     scan.CategoryIaC,
		suffixes:     []string{".tf", ".tf.json"},
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{1: true},
		buildCmd: func(target string) exec.Config {
			return exec.Config{
				Command: "tfsec",
				Args:    []string{target, "--format", "json", "--no-color"},
			}
		},
		parse: parseTfsec,
	}
}

func parseTfsec(stdout []byte) ([]finding.Vulnerability, error) {
	var report tfsecReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	vulns := make([]finding.Vulnerability, 0, len(report.Results))
	for _, r := range report.Results {
		vulns = append(vulns, finding.Vulnerability{
			ID:          fmt.Sprintf("%s:%s:%d", r.RuleID, r.Location.Filename, r.Location.StartLine),
			Title:       r.RuleDescription,
			Description: fmt.Sprintf("%s violated in %s", r.RuleID, r.Location.Filename),
			Severity:    finding.NormalizeSeverity(r.Severity),
			FilePath:    r.Location.Filename,
			LineNumber:  r.Location.StartLine,
			Tool:        "tfsec",
			RuleID:      r.RuleID,
			Remediation: r.Resolution,
			References:  r.Links,
		})
	}
	return vulns, nil
}
