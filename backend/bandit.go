package backend

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// banditReport mirrors the subset of `bandit -f json` output we read.
type banditReport struct {
	Results []struct {
		TestID        string `json:"test_id"`
		TestName      string `json:"test_name"`
		IssueText     string `json:"issue_text"`
		IssueSeverity string `json:"issue_severity"`
		Filename      string `json:"filename"`
		LineNumber    int    `json:"line_number"`
		MoreInfo      string `json:"more_info"`
		IssueCWE      struct {
			ID   int    `json:"id"`
			Link string `json:"link"`
		} `json:"issue_cwe"`
	} `json:"results"`
}

// NewBandit returns the Python-focused SAST backend.
//
// Exit codes: 0 clean, 1 issues found.
func NewBandit(opts Options) Backend {
	return &subprocess{
		name:         "bandit",
		category:     scan.CategorySAST,
		suffixes:     []string{".py"},
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{1: true},
		buildCmd: func(target string) exec.Config {
			args := []string{"-r", "-f", "json", "-q"}
			if len(opts.ExcludePaths) > 0 {
				args = append(args, "-x", excludeArg(opts.ExcludePaths))
			}
			args = append(args, target)
			return exec.Config{Command: "bandit", Args: args}
		},
		parse: parseBandit,
	}
}

func parseBandit(stdout []byte) ([]finding.Vulnerability, error) {
	var report banditReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	vulns := make([]finding.Vulnerability, 0, len(report.Results))
	for _, r := range report.Results {
		cwe := ""
		if r.IssueCWE.ID != 0 {
			cwe = "CWE-" + strconv.Itoa(r.IssueCWE.ID)
		}
		var refs []string
		if r.MoreInfo != "" {
			refs = append(refs, r.MoreInfo)
		}
		vulns = append(vulns, finding.Vulnerability{
			ID:          fmt.Sprintf("%s:%s:%d", r.TestID, r.Filename, r.LineNumber),
			Title:       r.TestName,
			Description: r.IssueText,
			Severity:    finding.NormalizeSeverity(r.IssueSeverity),
			CWE:         cwe,
			FilePath:    r.Filename,
			LineNumber:  r.LineNumber,
			Tool:        "bandit",
			RuleID:      r.TestID,
			References:  refs,
		})
	}
	return vulns, nil
}
