package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dxmate/dxmate/internal/log"
	"github.com/dxmate/dxmate/internal/model"
)

// Process is the unit of work of a leaf job. *shell.Runner implements it.
type Process interface {
	Run(ctx context.Context) (string, error)
	Interrupt() error
	String() string
}

// Observer is told about every status or label change.
type Observer interface {
	Changed()
}

type ObserverFunc func()

func (f ObserverFunc) Changed() {
	f()
}

// FinishFunc is called once the job settled, err is the outcome of Start.
type FinishFunc func(ctx context.Context, j *Job, err error)

// OutputFunc receives the stdout of a successful leaf. Returning an error
// turns the outcome into Error.
type OutputFunc func(ctx context.Context, j *Job, output string) error

type Option func(*Job)

func WithPolicy(p Policy) Option {
	return func(j *Job) {
		j.policy = p
	}
}

func WithOnFinish(f FinishFunc) Option {
	return func(j *Job) {
		j.onFinish = f
	}
}

func WithOutputHandler(f OutputFunc) Option {
	return func(j *Job) {
		j.onOutput = f
	}
}

// Job is a node of a tree of work. A leaf wraps exactly one Process, a
// composite runs its children strictly one after another.
type Job struct {
	mx       sync.Mutex
	id       string
	name     string
	status   Status
	started  time.Time
	ended    time.Time
	proc     Process
	children []*Job
	cursor   int
	owned    bool
	policy   Policy
	onFinish FinishFunc
	onOutput OutputFunc
	observer Observer
	output   string
}

// New returns a composite job.
func New(name string, opts ...Option) *Job {
	j := &Job{
		id:     uuid.NewString(),
		name:   name,
		cursor: -1,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// NewShell returns a leaf job running proc.
func NewShell(name string, proc Process, opts ...Option) *Job {
	j := New(name, opts...)
	j.proc = proc
	return j
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Name() string {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.name
}

func (j *Job) Status() Status {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.status
}

// Output returns the stdout of a finished leaf.
func (j *Job) Output() string {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.output
}

func (j *Job) Children() []*Job {
	j.mx.Lock()
	defer j.mx.Unlock()
	return slices.Clone(j.children)
}

// Elapsed returns the wall clock between start and end, ok is false until
// both are known.
func (j *Job) Elapsed() (time.Duration, bool) {
	j.mx.Lock()
	defer j.mx.Unlock()
	return elapsed(j.started, j.ended)
}

// Own marks the job as owned by a parent or a scheduler.
func (j *Job) Own() error {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.owned {
		return ErrOwned
	}
	j.owned = true
	return nil
}

// AddJob appends child. Children can be appended while the composite runs,
// they are picked up in order.
func (j *Job) AddJob(child *Job) error {
	if child == nil || child == j {
		return errors.New("invalid child job")
	}
	if j.proc != nil {
		return ErrLeaf
	}
	if err := child.Own(); err != nil {
		return err
	}

	j.mx.Lock()
	o := j.observer
	j.mx.Unlock()
	if o != nil {
		child.Observe(o)
	}

	j.mx.Lock()
	j.children = append(j.children, child)
	j.mx.Unlock()
	j.notify()
	return nil
}

// Observe sets o on the whole subtree. Children added later inherit it.
func (j *Job) Observe(o Observer) {
	j.mx.Lock()
	j.observer = o
	children := slices.Clone(j.children)
	j.mx.Unlock()
	for _, c := range children {
		c.Observe(o)
	}
}

func (j *Job) Rename(label string) {
	j.mx.Lock()
	j.name = label
	j.mx.Unlock()
	j.notify()
}

// Find returns the job with id in the subtree, or nil.
func (j *Job) Find(id string) *Job {
	if j.id == id {
		return j
	}
	for _, c := range j.Children() {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Start runs the job and blocks until it settled. It returns nil when the
// job ended Success, an error wrapping model.ErrCancelled when it was
// cancelled and any other error when it ended in Error.
func (j *Job) Start(ctx context.Context) error {
	j.mx.Lock()
	switch {
	case j.status == Cancelled:
		j.mx.Unlock()
		return model.ErrCancelled
	case j.status != Scheduled:
		j.mx.Unlock()
		return ErrStarted
	}
	j.advance(InProgress)
	name := j.name
	j.mx.Unlock()
	j.notify()

	ctx = log.ContextAttrs(ctx,
		slog.String("job_id", j.id),
		slog.String("job_name", name),
	)
	slog.DebugContext(ctx, "job started")

	var err error
	if j.proc != nil {
		err = j.runLeaf(ctx)
	} else {
		err = j.runComposite(ctx)
	}
	err = j.finish(ctx, err)

	if j.onFinish != nil {
		j.onFinish(ctx, j, err)
	}
	return err
}

func (j *Job) runLeaf(ctx context.Context) error {
	out, err := j.proc.Run(ctx)
	if err != nil {
		return err
	}
	j.mx.Lock()
	j.output = out
	j.mx.Unlock()

	if j.onOutput == nil {
		return nil
	}
	if err := j.onOutput(ctx, j, out); err != nil {
		if model.IsCancelled(err) || errors.Is(err, model.ErrFailed) {
			return err
		}
		return fmt.Errorf("%w: handling output: %w", model.ErrFailed, err)
	}
	return nil
}

func (j *Job) runComposite(ctx context.Context) error {
	for {
		child, ok := j.next()
		if !ok {
			return nil
		}

		err := child.Start(ctx)
		switch {
		case err == nil:
		case model.IsCancelled(err):
			j.Cancel()
			return model.ErrCancelled
		case j.policy == AbortOnError:
			slog.WarnContext(ctx, "child job failed, aborting", "child", child.Name(), "error", err)
			j.cancelRemaining()
			return fmt.Errorf("%s: %w", child.Name(), err)
		default:
			slog.WarnContext(ctx, "child job failed, continuing", "child", child.Name(), "error", err)
		}
	}
}

// next advances the cursor. It stops at the end of the list and once the
// job itself was cancelled.
func (j *Job) next() (*Job, bool) {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.status.Terminal() || j.cursor+1 >= len(j.children) {
		return nil, false
	}
	j.cursor++
	return j.children[j.cursor], true
}

func (j *Job) cancelRemaining() {
	j.mx.Lock()
	remaining := slices.Clone(j.children[j.cursor+1:])
	j.mx.Unlock()
	for _, c := range remaining {
		c.Cancel()
	}
}

// finish moves the job to its terminal status. A job cancelled while it was
// running stays cancelled whatever the outcome of its work was.
func (j *Job) finish(ctx context.Context, err error) error {
	to := Success
	switch {
	case model.IsCancelled(err):
		to = Cancelled
	case err != nil:
		to = Error
	}

	j.mx.Lock()
	changed := j.advance(to)
	final := j.status
	j.mx.Unlock()
	if changed {
		j.notify()
	}

	slog.DebugContext(ctx, "job finished", "status", final.String())
	switch final {
	case Cancelled:
		return model.ErrCancelled
	case Error:
		if err == nil {
			return model.ErrFailed
		}
		return err
	}
	return nil
}

// advance is the only place where status changes, it must be called with
// mx held and reports whether the status changed.
func (j *Job) advance(to Status) bool {
	switch {
	case j.status.Terminal():
		return false
	case to == InProgress:
		if j.status != Scheduled {
			return false
		}
		j.started = time.Now()
	case to == Cancelled:
		if !j.started.IsZero() {
			j.ended = time.Now()
		}
	case to.Terminal():
		if j.status != InProgress {
			return false
		}
		j.ended = time.Now()
	default:
		return false
	}
	j.status = to
	return true
}

// Cancel cancels the children first, then interrupts the process and marks
// the job Cancelled. Cancelling a terminal job does nothing.
func (j *Job) Cancel() {
	j.mx.Lock()
	if j.status.Terminal() {
		j.mx.Unlock()
		return
	}
	children := slices.Clone(j.children)
	j.mx.Unlock()

	for _, c := range children {
		c.Cancel()
	}
	if j.proc != nil {
		if err := j.proc.Interrupt(); err != nil {
			slog.Warn("interrupting job process", "job_id", j.id, "error", err)
		}
	}

	j.mx.Lock()
	changed := j.advance(Cancelled)
	j.mx.Unlock()
	if changed {
		j.notify()
	}
}

// notify must be called without mx held.
func (j *Job) notify() {
	j.mx.Lock()
	o := j.observer
	j.mx.Unlock()
	if o != nil {
		o.Changed()
	}
}

// Info is an immutable copy of a job subtree.
type Info struct {
	ID       string
	Name     string
	Status   Status
	Started  time.Time
	Ended    time.Time
	Command  string
	Children []Info
}

func (i Info) Elapsed() (time.Duration, bool) {
	return elapsed(i.Started, i.Ended)
}

func (j *Job) Snapshot() Info {
	j.mx.Lock()
	info := Info{
		ID:      j.id,
		Name:    j.name,
		Status:  j.status,
		Started: j.started,
		Ended:   j.ended,
	}
	if j.proc != nil {
		info.Command = j.proc.String()
	}
	children := slices.Clone(j.children)
	j.mx.Unlock()

	for _, c := range children {
		info.Children = append(info.Children, c.Snapshot())
	}
	return info
}

func elapsed(started, ended time.Time) (time.Duration, bool) {
	if started.IsZero() || ended.IsZero() {
		return 0, false
	}
	return ended.Sub(started), true
}
