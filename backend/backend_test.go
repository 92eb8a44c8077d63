package backend

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureflow/secureflow/exec"
	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

// shellBackend builds a test backend whose tool is an inline shell script.
func shellBackend(script string, findingsExit map[int]bool, parse parseFunc) *subprocess {
	return &subprocess{
		name:         "fake-tool",
		category:     scan.CategorySAST,
		timeout:      30 * time.Second,
		findingsExit: findingsExit,
		buildCmd: func(target string) exec.Config {
			return exec.Config{Command: "sh", Args: []string{"-c", script}}
		},
		parse: parse,
	}
}

func parseLines(stdout []byte) ([]finding.Vulnerability, error) {
	return []finding.Vulnerability{
		{ID: "v-1", Title: "issue", Severity: finding.SeverityHigh, Tool: "fake-tool"},
	}, nil
}

func TestExecute_CleanRun(t *testing.T) {
	skipOnWindows(t)

	b := shellBackend("exit 0", nil, parseLines)
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.False(t, r.Failed())
	assert.Empty(t, r.Vulnerabilities)
	assert.Equal(t, scan.StatusNoIssuesFound, r.Metadata[scan.MetaStatus])
	assert.Contains(t, r.Metadata[scan.MetaCommand], "sh -c")
}

func TestExecute_FindingsExitCode(t *testing.T) {
	skipOnWindows(t)

	b := shellBackend(`echo '{"ok":true}'; exit 1`, map[int]bool{1: true}, parseLines)
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.False(t, r.Failed())
	require.Len(t, r.Vulnerabilities, 1)
	assert.Equal(t, finding.SeverityHigh, r.Vulnerabilities[0].Severity)
}

func TestExecute_UnexpectedExitCodeFails(t *testing.T) {
	skipOnWindows(t)

	b := shellBackend("echo boom >&2; exit 3", map[int]bool{1: true}, parseLines)
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.True(t, r.Failed())
	assert.Empty(t, r.Vulnerabilities)
	assert.Contains(t, r.Error(), "code 3")
	assert.Contains(t, r.Error(), "boom")
}

func TestExecute_MissingBinaryFails(t *testing.T) {
	b := &subprocess{
		name:     "ghost",
		category: scan.CategorySAST,
		timeout:  time.Second,
		buildCmd: func(target string) exec.Config {
			return exec.Config{Command: "definitely-not-a-real-binary-xyz"}
		},
		parse: parseLines,
	}
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.True(t, r.Failed())
	assert.NotEmpty(t, r.Error())
}

func TestExecute_TimeoutFails(t *testing.T) {
	skipOnWindows(t)

	b := shellBackend("sleep 5", nil, parseLines)
	b.timeout = 50 * time.Millisecond
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.True(t, r.Failed())
	assert.Contains(t, r.Error(), "timed out")
}

func TestExecute_ParseErrorFails(t *testing.T) {
	skipOnWindows(t)

	b := shellBackend("echo 'not json'", nil, func(stdout []byte) ([]finding.Vulnerability, error) {
		return parseSemgrep(stdout)
	})
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.True(t, r.Failed())
	assert.Contains(t, r.Error(), "failed to parse")
}

func TestExecute_EmptyOutputIsClean(t *testing.T) {
	skipOnWindows(t)

	// Parser must not run on empty output.
	b := shellBackend("exit 0", nil, func([]byte) ([]finding.Vulnerability, error) {
		panic("parser called on empty output")
	})
	r := b.Execute(context.Background(), "/repo")

	require.NotNil(t, r)
	assert.False(t, r.Failed())
	assert.Empty(t, r.Vulnerabilities)
}

func TestSupports_SuffixRestriction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("print()\n"), 0o644))

	bandit := NewBandit(Options{})
	assert.True(t, bandit.Supports(dir))
	assert.True(t, bandit.Supports(filepath.Join(dir, "app.py")))

	tfsec := NewTfsec(Options{})
	assert.False(t, tfsec.Supports(dir))

	// No declared suffixes means every target is supported.
	semgrep := NewSemgrep(Options{})
	assert.True(t, semgrep.Supports(dir))
}

func TestDefaults(t *testing.T) {
	backends := Defaults(Options{Timeout: time.Minute})
	require.Len(t, backends, 9)

	byCategory := map[scan.Category]int{}
	for _, b := range backends {
		assert.NotEmpty(t, b.Name())
		byCategory[b.Category()]++
	}
	assert.Equal(t, 2, byCategory[scan.CategorySAST])
	assert.Equal(t, 2, byCategory[scan.CategorySCA])
	assert.Equal(t, 2, byCategory[scan.CategorySecrets])
	assert.Equal(t, 2, byCategory[scan.CategoryIaC])
	assert.Equal(t, 1, byCategory[scan.CategoryContainer])
}
