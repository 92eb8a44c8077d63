package backend

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// trufflehogFinding mirrors one line of trufflehog's JSON-lines output.
type trufflehogFinding struct {
	DetectorName   string `json:"DetectorName"`
	Verified       bool   `json:"Verified"`
	SourceMetadata struct {
		Data struct {
			Filesystem struct {
				File string `json:"file"`
				Line int    `json:"line"`
			} `json:"Filesystem"`
		} `json:"Data"`
	} `json:"SourceMetadata"`
}

// NewTrufflehog returns the alternate secrets backend.
//
// Exit codes: 0 no secrets, 183 secrets found (with --fail).
func NewTrufflehog(opts Options) Backend {
	return &subprocess{
		name:         "trufflehog",
		category:     scan.CategorySecrets,
		timeout:      opts.Timeout,
		findingsExit: map[int]bool{183: true},
		buildCmd: func(target string) exec.Config {
			return exec.Config{
				Command: "trufflehog",
				Args:    []string{"filesystem", target, "--json", "--fail", "--no-update"},
			}
		},
		parse: parseTrufflehog,
	}
}

// parseTrufflehog reads JSON lines, skipping the log records trufflehog
// interleaves with findings. Verified secrets are critical, the rest high.
func parseTrufflehog(stdout []byte) ([]finding.Vulnerability, error) {
	var vulns []finding.Vulnerability

	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var f trufflehogFinding
		if err := json.Unmarshal(line, &f); err != nil || f.DetectorName == "" {
			continue
		}
		severity := finding.SeverityHigh
		if f.Verified {
			severity = finding.SeverityCritical
		}
		loc := f.SourceMetadata.Data.Filesystem
		vulns = append(vulns, finding.Vulnerability{
			ID:          fmt.Sprintf("%s:%s:%d", f.DetectorName, loc.File, loc.Line),
			Title:       fmt.Sprintf("Detected %s credential", f.DetectorName),
			Description: fmt.Sprintf("trufflehog detected a %s credential (verified=%t)", f.DetectorName, f.Verified),
			Severity:    severity,
			CWE:         "CWE-798",
			FilePath:    loc.File,
			LineNumber:  loc.Line,
			Tool:        "trufflehog",
			RuleID:      f.DetectorName,
			Remediation: "remove the secret from the repository and rotate it",
		})
	}
	return vulns, scanner.Err()
}
