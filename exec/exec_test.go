package exec

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test relies on POSIX shell utilities")
	}
}

func TestRun_CapturesStdout(t *testing.T) {
	skipOnWindows(t)

	result, err := Run(context.Background(), Config{
		Command: "echo",
		Args:    []string{"hello", "scanner"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello scanner\n", string(result.Stdout))
	assert.False(t, result.TimedOut)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)

	result, err := Run(context.Background(), Config{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
	})
	require.NoError(t, err, "non-zero exit must be reported as data")
	assert.Equal(t, 3, result.ExitCode)
}

func TestRun_MissingBinary(t *testing.T) {
	result, err := Run(context.Background(), Config{
		Command: "definitely-not-a-scanner-binary",
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.TimedOut)
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRun_Timeout(t *testing.T) {
	skipOnWindows(t)

	start := time.Now()
	result, err := Run(context.Background(), Config{
		Command: "sleep",
		Args:    []string{"10"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, result.TimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_ContextCancellation(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, Config{
		Command: "sleep",
		Args:    []string{"10"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Stdin(t *testing.T) {
	skipOnWindows(t)

	result, err := Run(context.Background(), Config{
		Command:   "cat",
		StdinData: []byte("password=hunter2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "password=hunter2", string(result.Stdout))
}

func TestRun_WorkDir(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	result, err := Run(context.Background(), Config{
		Command: "pwd",
		WorkDir: dir,
	})
	require.NoError(t, err)
	assert.Contains(t, string(result.Stdout), dir)
}

func TestBinaryExists(t *testing.T) {
	skipOnWindows(t)

	assert.True(t, BinaryExists("sh"))
	assert.False(t, BinaryExists("definitely-not-a-scanner-binary"))
}

func TestBinaryPath(t *testing.T) {
	skipOnWindows(t)

	path, err := BinaryPath("sh")
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	_, err = BinaryPath("definitely-not-a-scanner-binary")
	assert.Error(t, err)
}
