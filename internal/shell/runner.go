package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/prompt"
)

// RetryTitle is the question asked after a failed command with retry enabled.
const RetryTitle = "An error occurred, do you wish to retry?"

// waitDelay bounds how long Wait keeps copying output after the command
// exited, e.g. when a browser launched by the CLI inherited the pipes.
const waitDelay = 2 * time.Second

// Command describes one shell invocation. Line is opaque and passed to the
// platform shell verbatim.
type Command struct {
	Line           string
	Dir            string
	SuppressOutput bool
	Retry          bool
	RetryLabel     string // optional alternate retry choice
	RetryLine      string // command executed for RetryLabel
	Env            []string
}

// Runner executes a Command, captures its stdout and negotiates retries.
// At most one process is live per Runner. Once interrupted a Runner stays
// interrupted, any further Run returns model.ErrCancelled.
type Runner struct {
	mx          sync.Mutex
	cmd         Command
	shell       []string
	sink        io.Writer
	prompter    prompt.Prompter
	proc        *os.Process
	running     bool
	interrupted bool

	outMx  sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func NewRunner(cmd Command) *Runner {
	return &Runner{
		cmd:   cmd,
		shell: defaultShell,
		sink:  io.Discard,
	}
}

// WithSink sets the writer receiving trace lines and, unless suppressed,
// the command output.
func (r *Runner) WithSink(w io.Writer) *Runner {
	if w == nil {
		w = io.Discard
	}
	r.sink = w
	return r
}

// WithPrompter sets who answers the retry question. Without a prompter a
// failed command is never retried.
func (r *Runner) WithPrompter(p prompt.Prompter) *Runner {
	r.prompter = p
	return r
}

// WithShell overrides the interpreter, the line is appended as last argument.
func (r *Runner) WithShell(argv ...string) *Runner {
	if len(argv) > 0 {
		r.shell = argv
	}
	return r
}

// WithDir sets the working directory unless the command defines its own.
func (r *Runner) WithDir(dir string) *Runner {
	if r.cmd.Dir == "" {
		r.cmd.Dir = dir
	}
	return r
}

func (r *Runner) Command() Command {
	return r.cmd
}

func (r *Runner) String() string {
	return r.cmd.Line
}

// Output returns stdout captured by the last attempt.
func (r *Runner) Output() string {
	r.outMx.Lock()
	defer r.outMx.Unlock()
	return r.stdout.String()
}

// Running reports whether a process is live.
func (r *Runner) Running() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.proc != nil
}

// Interrupt delivers SIGINT to the live process. Before the process starts
// the request is remembered and delivered right after the spawn.
func (r *Runner) Interrupt() error {
	r.mx.Lock()
	r.interrupted = true
	p := r.proc
	r.mx.Unlock()
	if p == nil {
		return nil
	}
	err := interrupt(p)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Run executes the command and returns its stdout on exit code 0. An
// interrupted command returns model.ErrCancelled. A failed one returns
// *ExitError, unless retry is enabled and the user picks a retry, in which
// case the outcome of the re-run is returned instead.
func (r *Runner) Run(ctx context.Context) (string, error) {
	if strings.TrimSpace(r.cmd.Line) == "" {
		return "", ErrEmptyCommand
	}

	r.mx.Lock()
	if r.running {
		r.mx.Unlock()
		return "", ErrInProgress
	}
	r.running = true
	r.mx.Unlock()
	defer func() {
		r.mx.Lock()
		r.running = false
		r.mx.Unlock()
	}()

	line := r.cmd.Line
	for attempt := 1; ; attempt++ {
		out, err := r.exec(ctx, line)
		if err == nil || model.IsCancelled(err) || !r.cmd.Retry {
			return out, err
		}
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			return out, err
		}

		next, ok := r.negotiate(ctx)
		// the prompt is not interruptible, a cancel requested meanwhile wins
		if r.cancelRequested(ctx) {
			r.trace("Process was cancelled")
			return "", model.ErrCancelled
		}
		if !ok {
			return out, err
		}
		slog.InfoContext(ctx, "retrying command", "line", next, "attempt", attempt+1)
		line = next
	}
}

func (r *Runner) negotiate(ctx context.Context) (string, bool) {
	if r.prompter == nil {
		return "", false
	}
	options := []string{prompt.Retry}
	if r.cmd.RetryLabel != "" && r.cmd.RetryLine != "" {
		options = append(options, r.cmd.RetryLabel)
	}
	options = append(options, prompt.Cancel)

	choice, err := r.prompter.Choose(ctx, RetryTitle, options...)
	if err != nil {
		slog.WarnContext(ctx, "retry prompt failed", "error", err)
		return "", false
	}
	switch {
	case choice == prompt.Retry:
		return r.cmd.Line, true
	case choice != "" && choice == r.cmd.RetryLabel:
		return r.cmd.RetryLine, true
	}
	return "", false
}

func (r *Runner) cancelRequested(ctx context.Context) bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.interrupted || ctx.Err() != nil
}

func (r *Runner) exec(ctx context.Context, line string) (string, error) {
	if r.cancelRequested(ctx) {
		r.trace("Process was cancelled")
		return "", model.ErrCancelled
	}

	r.outMx.Lock()
	r.stdout.Reset()
	r.stderr.Reset()
	r.outMx.Unlock()

	args := append(slices.Clone(r.shell[1:]), line)
	cmd := exec.Command(r.shell[0], args...)
	cmd.Dir = r.cmd.Dir
	if len(r.cmd.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cmd.Env...)
	}
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout = stdoutWriter{r: r}
	cmd.Stderr = stderrWriter{r: r}
	cmd.WaitDelay = waitDelay

	r.traceRoutine("Running: " + line)
	slog.DebugContext(ctx, "starting command", "line", line, "dir", cmd.Dir)

	r.mx.Lock()
	if err := cmd.Start(); err != nil {
		r.mx.Unlock()
		err = fmt.Errorf("%w: starting %q: %w", model.ErrFailed, line, err)
		r.traceError(err)
		return "", err
	}
	r.proc = cmd.Process
	pending := r.interrupted
	r.mx.Unlock()
	if pending {
		_ = r.Interrupt()
	}

	stop := context.AfterFunc(ctx, func() {
		_ = r.Interrupt()
	})
	waitErr := cmd.Wait()
	stop()

	r.mx.Lock()
	r.proc = nil
	interrupted := r.interrupted
	r.mx.Unlock()

	r.outMx.Lock()
	out := r.stdout.String()
	stderr := r.stderr.String()
	r.outMx.Unlock()

	state := cmd.ProcessState
	if state == nil {
		err := fmt.Errorf("%w: waiting for %q: %w", model.ErrFailed, line, waitErr)
		r.traceError(err)
		return "", err
	}
	slog.DebugContext(ctx, "command exited", "line", line, "code", state.ExitCode(), "interrupted", interrupted)

	switch {
	case interruptedBySignal(state) || interrupted:
		r.trace("Process was cancelled")
		return "", model.ErrCancelled
	case state.ExitCode() == 0:
		r.traceRoutine("Finished running: " + line)
		return out, nil
	}

	err := &ExitError{Line: line, Code: state.ExitCode(), Stderr: stderr}
	r.traceError(err)
	return out, err
}

func (r *Runner) trace(line string) {
	_, _ = fmt.Fprintln(r.sink, line)
}

func (r *Runner) traceRoutine(line string) {
	if !r.cmd.SuppressOutput {
		r.trace(line)
	}
}

// errors are traced even for suppressed commands
func (r *Runner) traceError(err error) {
	r.trace("An error occurred: \n " + err.Error())
}

type stdoutWriter struct {
	r *Runner
}

func (w stdoutWriter) Write(p []byte) (int, error) {
	w.r.outMx.Lock()
	w.r.stdout.Write(p)
	w.r.outMx.Unlock()
	if !w.r.cmd.SuppressOutput {
		_, _ = w.r.sink.Write(p)
	}
	return len(p), nil
}

type stderrWriter struct {
	r *Runner
}

func (w stderrWriter) Write(p []byte) (int, error) {
	w.r.outMx.Lock()
	w.r.stderr.Write(p)
	w.r.outMx.Unlock()
	if !w.r.cmd.SuppressOutput {
		_, _ = w.r.sink.Write(p)
	}
	return len(p), nil
}
