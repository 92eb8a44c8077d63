package backend

import (
	"encoding/json"
	"fmt"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// semgrepReport mirrors the subset of `semgrep --json` output we read.
type semgrepReport struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		Extra struct {
			Message  string `json:"message"`
			Severity string `json:"severity"`
			Fix      string `json:"fix"`
			Metadata struct {
				CWE        stringOrList `json:"cwe"`
				References []string     `json:"references"`
			} `json:"metadata"`
		} `json:"extra"`
	} `json:"results"`
}

// stringOrList accepts JSON fields that semgrep emits as either a
// single string or an array of strings.
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// NewSemgrep returns the default SAST backend.
//
// Exit codes: 0 clean or findings (default flags), 1 findings when
// blocking rules match.
func NewSemgrep(opts Options) Backend {
	return &subprocess{
		name:         "semgrep",
		category:     scan.CategorySAST,
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{1: true},
		buildCmd: func(target string) exec.Config {
			args := []string{"scan", "--config", "auto", "--json", "--quiet"}
			for _, p := range opts.ExcludePaths {
				args = append(args, "--exclude", p)
			}
			args = append(args, target)
			return exec.Config{Command: "semgrep", Args: args}
		},
		parse: parseSemgrep,
	}
}

func parseSemgrep(stdout []byte) ([]finding.Vulnerability, error) {
	var report semgrepReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	vulns := make([]finding.Vulnerability, 0, len(report.Results))
	for _, r := range report.Results {
		cwe := ""
		if len(r.Extra.Metadata.CWE) > 0 {
			cwe = r.Extra.Metadata.CWE[0]
		}
		vulns = append(vulns, finding.Vulnerability{
			ID:          fmt.Sprintf("%s:%s:%d", r.CheckID, r.Path, r.Start.Line),
			Title:       r.CheckID,
			Description: r.Extra.Message,
			Severity:    finding.NormalizeSeverity(r.Extra.Severity),
			CWE:         cwe,
			FilePath:    r.Path,
			LineNumber:  r.Start.Line,
			Tool:        "semgrep",
			RuleID:      r.CheckID,
			Remediation: r.Extra.Fix,
			References:  r.Extra.Metadata.References,
		})
	}
	return vulns, nil
}
