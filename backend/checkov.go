package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// checkovReport mirrors one framework block of `checkov -o json` output.
// With several frameworks active checkov emits an array of these.
type checkovReport struct {
	Results struct {
		FailedChecks []struct {
			CheckID       string `json:"check_id"`
			CheckName     string `json:"check_name"`
			FilePath      string `json:"file_path"`
			FileLineRange []int  `json:"file_line_range"`
			Guideline     string `json:"guideline"`
			Severity      string `json:"severity"`
		} `json:"failed_checks"`
	} `json:"results"`
}

// NewCheckov returns the default infrastructure-as-code backend.
//
// Exit codes: 0 all checks passed, 1 failed checks found.
func NewCheckov(opts Options) Backend {
	return &subprocess{
		name:         "checkov",
		category:     scan.CategoryIaC,
		suffixes:     []string{".tf", ".yml", ".yaml", ".json", "dockerfile"},
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{1: true},
		buildCmd: func(target string) exec.Config {
			args := []string{"-d", target, "-o", "json", "--quiet", "--compact"}
			for _, p := range opts.ExcludePaths {
				args = append(args, "--skip-path", p)
			}
			return exec.Config{Command: "checkov", Args: args}
		},
		parse: parseCheckov,
	}
}

func parseCheckov(stdout []byte) ([]finding.Vulnerability, error) {
	var reports []checkovReport
	if bytes.HasPrefix(bytes.TrimSpace(stdout), []byte("[")) {
		if err := json.Unmarshal(stdout, &reports); err != nil {
			return nil, err
		}
	} else {
		var one checkovReport
		if err := json.Unmarshal(stdout, &one); err != nil {
			return nil, err
		}
		reports = []checkovReport{one}
	}

	var vulns []finding.Vulnerability
	for _, report := range reports {
		for _, c := range report.Results.FailedChecks {
			line := 0
			if len(c.FileLineRange) > 0 {
				line = c.FileLineRange[0]
			}
			// Checkov omits severity without a platform API key; a
			// failed policy check defaults to medium.
			severity := finding.SeverityMedium
			if c.Severity != "" {
				severity = finding.NormalizeSeverity(c.Severity)
			}
			var refs []string
			if c.Guideline != "" {
				refs = append(refs, c.Guideline)
			}
			vulns = append(vulns, finding.Vulnerability{
				ID:          fmt.Sprintf("%s:%s:%d", c.CheckID, c.FilePath, line),
				Title:       c.CheckName,
				Description: fmt.Sprintf("%s failed in %s", c.CheckID, c.FilePath),
				Severity:    severity,
				FilePath:    c.FilePath,
				LineNumber:  line,
				Tool:        "checkov",
				RuleID:      c.CheckID,
				References:  refs,
			})
		}
	}
	return vulns, nil
}
