package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// safetyReport mirrors the subset of `safety check --output json` we read.
type safetyReport struct {
	Vulnerabilities []struct {
		VulnerabilityID string   `json:"vulnerability_id"`
		PackageName     string   `json:"package_name"`
		AnalyzedVersion string   `json:"analyzed_version"`
		Advisory        string   `json:"advisory"`
		Severity        string   `json:"severity"`
		FixedVersions   []string `json:"fixed_versions"`
		MoreInfoURL     string   `json:"more_info_url"`
		CVE             string   `json:"CVE"`
	} `json:"vulnerabilities"`
}

// NewSafety returns the Python dependency-audit backend. It runs in the
// target directory so safety picks up its requirement files.
//
// Exit codes: 0 clean, 64 vulnerabilities found.
func NewSafety(opts Options) Backend {
	return &subprocess{
		name:         "safety",
		category:     scan.CategorySCA,
		suffixes:     []string{"requirements.txt", "pipfile", "pyproject.toml", "poetry.lock"},
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{64: true},
		buildCmd: func(target string) exec.Config {
			return exec.Config{
				Command: "safety",
				Args:    []string{"check", "--output", "json"},
				WorkDir: target,
			}
		},
		parse: parseSafety,
	}
}

func parseSafety(stdout []byte) ([]finding.Vulnerability, error) {
	var report safetyReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	vulns := make([]finding.Vulnerability, 0, len(report.Vulnerabilities))
	for _, v := range report.Vulnerabilities {
		remediation := ""
		if len(v.FixedVersions) > 0 {
			remediation = fmt.Sprintf("upgrade %s to %s", v.PackageName, strings.Join(v.FixedVersions, " or "))
		}
		var refs []string
		if v.MoreInfoURL != "" {
			refs = append(refs, v.MoreInfoURL)
		}
		id := v.VulnerabilityID
		if v.CVE != "" {
			id = v.CVE
		}
		vulns = append(vulns, finding.Vulnerability{
			ID:          id,
			Title:       fmt.Sprintf("%s %s is vulnerable", v.PackageName, v.AnalyzedVersion),
			Description: v.Advisory,
			Severity:    finding.NormalizeSeverity(v.Severity),
			Tool:        "safety",
			RuleID:      v.VulnerabilityID,
			Remediation: remediation,
			References:  refs,
		})
	}
	return vulns, nil
}
