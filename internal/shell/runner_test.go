package shell_test

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/prompt"
	"github.com/dxmate/dxmate/internal/shell"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("sh not available: %v", err)
	}
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a runner
type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func TestRunner_Success(t *testing.T) {
	t.Parallel()
	requireSh(t)

	var sink syncBuffer
	r := shell.NewRunner(shell.Command{Line: "echo hello"}).WithSink(&sink)

	out, err := r.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, "hello\n", out)
	require.Equal(t, "hello\n", r.Output())
	require.Equal(t, "echo hello", r.String())

	trace := sink.String()
	require.Contains(t, trace, "Running: echo hello\n")
	require.Contains(t, trace, "hello\n")
	require.Contains(t, trace, "Finished running: echo hello\n")
}

func TestRunner_Suppressed(t *testing.T) {
	t.Parallel()
	requireSh(t)

	var sink syncBuffer
	r := shell.NewRunner(shell.Command{Line: "echo secret", SuppressOutput: true}).WithSink(&sink)
	out, err := r.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, "secret\n", out)
	require.Empty(t, sink.String())

	var errSink syncBuffer
	r = shell.NewRunner(shell.Command{Line: "echo oops >&2; exit 4", SuppressOutput: true}).WithSink(&errSink)
	_, err = r.Run(t.Context())
	require.Error(t, err)
	require.NotContains(t, errSink.String(), "Running:")
	require.Contains(t, errSink.String(), "An error occurred")
}

func TestRunner_Failure(t *testing.T) {
	t.Parallel()
	requireSh(t)

	var sink syncBuffer
	r := shell.NewRunner(shell.Command{Line: "echo broken >&2; exit 3"}).
		WithSink(&sink).
		WithPrompter(prompt.NewScripted(prompt.Retry))

	_, err := r.Run(t.Context())
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrFailed)
	require.False(t, model.IsCancelled(err))

	var exitErr *shell.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.Code)
	require.Equal(t, "broken\n", exitErr.Stderr)
	require.Contains(t, err.Error(), "broken")
	require.Contains(t, sink.String(), "An error occurred")
}

func TestRunner_Retry(t *testing.T) {
	t.Parallel()
	requireSh(t)

	dir := t.TempDir()
	// fails on the first attempt only
	line := "if [ -f marker ]; then echo recovered; else touch marker; exit 1; fi"

	p := prompt.NewScripted(prompt.Retry)
	r := shell.NewRunner(shell.Command{Line: line, Dir: dir, Retry: true}).WithPrompter(p)

	out, err := r.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, "recovered\n", out)
	require.Equal(t, []string{shell.RetryTitle}, p.Titles())
}

func TestRunner_RetryAlternate(t *testing.T) {
	t.Parallel()
	requireSh(t)

	const label = "Retry and ignore conflicts"
	p := prompt.NewScripted(label)
	r := shell.NewRunner(shell.Command{
		Line:       "exit 1",
		Retry:      true,
		RetryLabel: label,
		RetryLine:  "echo ignored",
	}).WithPrompter(p)

	out, err := r.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ignored\n", out)
}

func TestRunner_RetryDeclined(t *testing.T) {
	t.Parallel()
	requireSh(t)

	for _, p := range []prompt.Prompter{
		prompt.NewScripted(prompt.Cancel),
		prompt.NewScripted(), // dismissed
		nil,
	} {
		r := shell.NewRunner(shell.Command{Line: "exit 2", Retry: true}).WithPrompter(p)
		_, err := r.Run(t.Context())
		require.ErrorIs(t, err, model.ErrFailed)
	}
}

func TestRunner_Interrupt(t *testing.T) {
	t.Parallel()
	requireSh(t)

	var sink syncBuffer
	r := shell.NewRunner(shell.Command{Line: "sleep 30"}).WithSink(&sink)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := r.Run(t.Context())
		done <- result{out, err}
	}()

	require.Eventually(t, r.Running, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Interrupt())

	select {
	case res := <-done:
		require.ErrorIs(t, res.err, model.ErrCancelled)
		require.Empty(t, res.out)
	case <-time.After(10 * time.Second):
		t.Fatal("interrupted command did not exit")
	}
	require.Contains(t, sink.String(), "Process was cancelled")
	require.False(t, r.Running())

	// stays interrupted
	_, err := r.Run(t.Context())
	require.ErrorIs(t, err, model.ErrCancelled)
}

func TestRunner_InterruptBeforeRun(t *testing.T) {
	t.Parallel()
	requireSh(t)

	dir := t.TempDir()
	r := shell.NewRunner(shell.Command{Line: "touch ran", Dir: dir})
	require.NoError(t, r.Interrupt())

	_, err := r.Run(t.Context())
	require.ErrorIs(t, err, model.ErrCancelled)
	require.NoFileExists(t, filepath.Join(dir, "ran"))
}

func TestRunner_ContextCancel(t *testing.T) {
	t.Parallel()
	requireSh(t)

	ctx, cancel := context.WithCancel(t.Context())
	r := shell.NewRunner(shell.Command{Line: "sleep 30"})
	go func() {
		for !r.Running() {
			time.Sleep(10 * time.Millisecond)
		}
		cancel()
	}()

	start := time.Now()
	_, err := r.Run(ctx)
	require.ErrorIs(t, err, model.ErrCancelled)
	require.Less(t, time.Since(start), 20*time.Second)
}

func TestRunner_InProgress(t *testing.T) {
	t.Parallel()
	requireSh(t)

	r := shell.NewRunner(shell.Command{Line: "sleep 30"})
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(t.Context())
		done <- err
	}()
	require.Eventually(t, r.Running, 5*time.Second, 10*time.Millisecond)

	_, err := r.Run(t.Context())
	require.ErrorIs(t, err, shell.ErrInProgress)

	require.NoError(t, r.Interrupt())
	require.ErrorIs(t, <-done, model.ErrCancelled)
}

func TestRunner_DirAndEnv(t *testing.T) {
	t.Parallel()
	requireSh(t)

	dir := t.TempDir()
	r := shell.NewRunner(shell.Command{
		Line: `pwd; echo "$DXMATE_ANSWER"`,
		Env:  []string{"DXMATE_ANSWER=42"},
	}).WithDir(dir)

	out, err := r.Run(t.Context())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, "42", lines[1])

	// a command's own directory wins over the default
	r = shell.NewRunner(shell.Command{Line: "pwd", Dir: "/"}).WithDir(dir)
	require.Equal(t, "/", r.Command().Dir)
}

func TestRunner_EmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := shell.NewRunner(shell.Command{Line: "  "}).Run(t.Context())
	require.ErrorIs(t, err, shell.ErrEmptyCommand)
}
