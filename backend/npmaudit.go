package backend

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// npmAuditReport mirrors the subset of `npm audit --json` (npm 7+) we read.
type npmAuditReport struct {
	Vulnerabilities map[string]struct {
		Name     string            `json:"name"`
		Severity string            `json:"severity"`
		Range    string            `json:"range"`
		Via      []json.RawMessage `json:"via"`
	} `json:"vulnerabilities"`
}

// npmAdvisory is a structured entry of a vulnerability's via chain.
// String entries name a transitive dependency instead and are skipped.
type npmAdvisory struct {
	Source int      `json:"source"`
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	CWE    []string `json:"cwe"`
}

// NewNpmAudit returns the Node.js dependency-audit backend. It runs in
// the target directory so npm reads the local lockfile.
//
// Exit codes: 0 clean, 1 vulnerabilities found.
func NewNpmAudit(opts Options) Backend {
	return &subprocess{
		name:         "npm-audit",
		category:     scan.CategorySCA,
		suffixes:     []string{"package.json", "package-lock.json"},
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{1: true},
		buildCmd: func(target string) exec.Config {
			return exec.Config{
				Command: "npm",
				Args:    []string{"audit", "--json"},
				WorkDir: target,
			}
		},
		parse: parseNpmAudit,
	}
}

func parseNpmAudit(stdout []byte) ([]finding.Vulnerability, error) {
	var report npmAuditReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	// Report order is stable across runs: findings sorted by package.
	names := make([]string, 0, len(report.Vulnerabilities))
	for name := range report.Vulnerabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	var vulns []finding.Vulnerability
	for _, name := range names {
		v := report.Vulnerabilities[name]
		adv := firstAdvisory(v.Via)
		title := adv.Title
		if title == "" {
			title = fmt.Sprintf("%s has a known vulnerability", name)
		}
		cwe := ""
		if len(adv.CWE) > 0 {
			cwe = adv.CWE[0]
		}
		var refs []string
		if adv.URL != "" {
			refs = append(refs, adv.URL)
		}
		id := name
		if adv.Source != 0 {
			id = fmt.Sprintf("GHSA-%d", adv.Source)
		}
		vulns = append(vulns, finding.Vulnerability{
			ID:          id,
			Title:       title,
			Description: fmt.Sprintf("%s (%s) is affected", name, v.Range),
			Severity:    finding.NormalizeSeverity(v.Severity),
			CWE:         cwe,
			Tool:        "npm-audit",
			Remediation: "run npm audit fix",
			References:  refs,
		})
	}
	return vulns, nil
}

func firstAdvisory(via []json.RawMessage) npmAdvisory {
	for _, raw := range via {
		var adv npmAdvisory
		if err := json.Unmarshal(raw, &adv); err == nil && adv.Title != "" {
			return adv
		}
	}
	return npmAdvisory{}
}
