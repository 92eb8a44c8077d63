// Package backend wraps external security tools behind a uniform
// execution contract. Every adapter turns one tool's command line, exit
// codes and output format into the normalized scan.Result model.
//
// Execute is a total function: launch failures, timeouts and
// unparseable output all come back as a failed Result, never as an
// error or panic, so one broken tool can never take down an
// orchestration run.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// Backend is the uniform execution interface over heterogeneous
// external detectors.
type Backend interface {
	// Name returns the wrapped tool's name.
	Name() string

	// Category returns the scanning concern the backend serves.
	Category() scan.Category

	// Supports reports whether the backend is applicable to the
	// target. Backends declaring no file-type restriction support
	// every target.
	Supports(target string) bool

	// Execute runs the tool against the target. It always returns a
	// Result; failures are captured in the result's metadata.
	Execute(ctx context.Context, target string) *scan.Result
}

// Options carries the engine-level settings shared by all adapters.
type Options struct {
	// Timeout bounds one tool invocation. Zero means exec.DefaultTimeout.
	Timeout time.Duration

	// ExcludePaths are forwarded to tools that accept exclusions.
	ExcludePaths []string
}

// Defaults returns all built-in backends.
func Defaults(opts Options) []Backend {
	return []Backend{
		NewSemgrep(opts),
		NewBandit(opts),
		NewSafety(opts),
		NewNpmAudit(opts),
		NewGitleaks(opts),
		NewTrufflehog(opts),
		NewCheckov(opts),
		NewTfsec(opts),
		NewTrivy(opts),
	}
}

// parseFunc turns a tool's stdout into normalized findings.
type parseFunc func(stdout []byte) ([]finding.Vulnerability, error)

// subprocess is the shared implementation for adapters that invoke
// their tool as an external process.
//
// Scanners disagree about what a non-zero exit means: semgrep, bandit,
// gitleaks and checkov exit 1 when they found something, safety uses
// 64, trufflehog 183. Each adapter therefore declares its own
// findingsExit table; a code outside {0} ∪ table is a tool failure.
type subprocess struct {
	name         string
	category     scan.Category
	suffixes     []string
	timeout      time.Duration
	findingsExit map[int]bool
	buildCmd     func(target string) exec.Config
	parse        parseFunc
}

func (b *subprocess) Name() string {
	return b.name
}

func (b *subprocess) Category() scan.Category {
	return b.category
}

func (b *subprocess) Supports(target string) bool {
	return scan.MatchesSuffixes(target, b.suffixes)
}

func (b *subprocess) Execute(ctx context.Context, target string) *scan.Result {
	cfg := b.buildCmd(target)
	if cfg.Timeout == 0 {
		cfg.Timeout = b.timeout
	}
	commandLine := strings.TrimSpace(cfg.Command + " " + strings.Join(cfg.Args, " "))

	start := time.Now()
	res, err := exec.Run(ctx, cfg)
	if err != nil {
		slog.Error("backend execution failed", "backend", b.name, "target", target, "error", err)
		r := scan.NewFailed(b.name, target, b.category, time.Since(start), err)
		r.Metadata[scan.MetaCommand] = commandLine
		return r
	}

	if res.ExitCode != 0 && !b.findingsExit[res.ExitCode] {
		err := fmt.Errorf("%s exited with code %d: %s", b.name, res.ExitCode, firstLine(res.Stderr))
		slog.Error("backend reported failure", "backend", b.name, "target", target, "exit_code", res.ExitCode)
		r := scan.NewFailed(b.name, target, b.category, res.Duration, err)
		r.Metadata[scan.MetaCommand] = commandLine
		return r
	}

	var vulns []finding.Vulnerability
	if len(strings.TrimSpace(string(res.Stdout))) > 0 {
		vulns, err = b.parse(res.Stdout)
	}
	if err != nil {
		slog.Error("backend output unparseable", "backend", b.name, "target", target, "error", err)
		r := scan.NewFailed(b.name, target, b.category, res.Duration, fmt.Errorf("failed to parse %s output: %w", b.name, err))
		r.Metadata[scan.MetaCommand] = commandLine
		return r
	}

	var r *scan.Result
	if len(vulns) == 0 {
		r = scan.NewEmpty(b.name, target, b.category, res.Duration)
	} else {
		r = scan.New(b.name, target, b.category, vulns, res.Duration)
	}
	r.Metadata[scan.MetaCommand] = commandLine
	return r
}

// firstLine trims stderr down to something that fits in result metadata.
func firstLine(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// excludeArg joins exclusion paths for tools that take one flag value.
func excludeArg(paths []string) string {
	return strings.Join(paths, ",")
}
