package backend

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// trivyReport mirrors the subset of `trivy --format json` output we
// read. Both vulnerability and misconfiguration results are collected.
type trivyReport struct {
	Results []struct {
		Target          string `json:"Target"`
		Vulnerabilities []struct {
			VulnerabilityID  string   `json:"VulnerabilityID"`
			PkgName          string   `json:"PkgName"`
			InstalledVersion string   `json:"InstalledVersion"`
			FixedVersion     string   `json:"FixedVersion"`
			Title            string   `json:"Title"`
			Description      string   `json:"Description"`
			Severity         string   `json:"Severity"`
			PrimaryURL       string   `json:"PrimaryURL"`
			References       []string `json:"References"`
		} `json:"Vulnerabilities"`
		Misconfigurations []struct {
			ID          string `json:"ID"`
			Title       string `json:"Title"`
			Description string `json:"Description"`
			Severity    string `json:"Severity"`
			Resolution  string `json:"Resolution"`
			PrimaryURL  string `json:"PrimaryURL"`
			CauseMetadata struct {
				StartLine int `json:"StartLine"`
			} `json:"CauseMetadata"`
		} `json:"Misconfigurations"`
	} `json:"Results"`
}

// NewTrivy returns the container backend. Filesystem paths are scanned
// with `trivy fs`; anything else is treated as an image reference.
//
// Exit codes: 0 in all outcomes (trivy reserves non-zero for errors
// unless --exit-code is set).
func NewTrivy(opts Options) Backend {
	return &subprocess{
		name:         "trivy",
		category:     scan.CategoryContainer,
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{},
		buildCmd: func(target string) exec.Config {
			mode := "image"
			if _, err := os.Stat(target); err == nil {
				mode = "fs"
			}
			args := []string{mode, "--format", "json", "--quiet"}
			if mode == "fs" && len(opts.ExcludePaths) > 0 {
				args = append(args, "--skip-dirs", excludeArg(opts.ExcludePaths))
			}
			args = append(args, target)
			return exec.Config{Command: "trivy", Args: args}
		},
		parse: parseTrivy,
	}
}

func parseTrivy(stdout []byte) ([]finding.Vulnerability, error) {
	var report trivyReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, err
	}

	var vulns []finding.Vulnerability
	for _, result := range report.Results {
		for _, v := range result.Vulnerabilities {
			remediation := ""
			if v.FixedVersion != "" {
				remediation = fmt.Sprintf("upgrade %s to %s", v.PkgName, v.FixedVersion)
			}
			title := v.Title
			if title == "" {
				title = fmt.Sprintf("%s in %s", v.VulnerabilityID, v.PkgName)
			}
			refs := v.References
			if len(refs) == 0 && v.PrimaryURL != "" {
				refs = []string{v.PrimaryURL}
			}
			vulns = append(vulns, finding.Vulnerability{
				ID:          v.VulnerabilityID,
				Title:       title,
				Description: v.Description,
				Severity:    finding.NormalizeSeverity(v.Severity),
				FilePath:    result.Target,
				Tool:        "trivy",
				RuleID:      v.VulnerabilityID,
				Remediation: remediation,
				References:  refs,
			})
		}
		for _, m := range result.Misconfigurations {
			var refs []string
			if m.PrimaryURL != "" {
				refs = []string{m.PrimaryURL}
			}
			vulns = append(vulns, finding.Vulnerability{
				ID:          fmt.Sprintf("%s:%s", m.ID, result.Target),
				Title:       m.Title,
				Description: m.Description,
				Severity:    finding.NormalizeSeverity(m.Severity),
				FilePath:    result.Target,
				LineNumber:  m.CauseMetadata.StartLine,
				Tool:        "trivy",
				RuleID:      m.ID,
				Remediation: m.Resolution,
				References:  refs,
			})
		}
	}
	return vulns, nil
}
