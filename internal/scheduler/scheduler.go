package scheduler

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/prompt"
)

// ClearTitle is asked before clearing a list with a job in progress.
const ClearTitle = "A job is in progress, do you want to cancel it and clear the job list?"

// Scheduler drains a queue of top-level jobs one at a time, in submission
// order. It is the observer of all of its jobs and forwards every change to
// its subscribers.
type Scheduler struct {
	mx          sync.Mutex
	jobs        []*job.Job
	cursor      int
	cancelled   bool
	draining    bool
	prompter    prompt.Prompter
	subscribers []job.Observer
}

func New() *Scheduler {
	return &Scheduler{cursor: -1}
}

// WithPrompter sets who confirms clearing a busy list. Without a prompter
// the list is never cleared while a job runs.
func (s *Scheduler) WithPrompter(p prompt.Prompter) *Scheduler {
	s.prompter = p
	return s
}

func (s *Scheduler) Subscribe(o job.Observer) {
	s.mx.Lock()
	s.subscribers = append(s.subscribers, o)
	s.mx.Unlock()
}

// Changed implements job.Observer.
func (s *Scheduler) Changed() {
	s.mx.Lock()
	subs := slices.Clone(s.subscribers)
	s.mx.Unlock()
	for _, o := range subs {
		o.Changed()
	}
}

// AddJob appends j to the queue. Leftovers of a cancelled run are discarded
// first. It returns the scheduler so that a drain can be chained.
func (s *Scheduler) AddJob(j *job.Job) *Scheduler {
	if err := j.Own(); err != nil {
		slog.Error("rejecting job", "job_name", j.Name(), "error", err)
		return s
	}
	j.Observe(s)

	s.mx.Lock()
	if s.cancelled {
		s.reset()
	}
	s.jobs = append(s.jobs, j)
	s.mx.Unlock()

	s.Changed()
	return s
}

// StartJobs drains the queue. Only one drain runs at a time, a concurrent
// call returns nil at once. Failed jobs are logged and the drain goes on, a
// cancelled job stops it and StartJobs returns model.ErrCancelled.
func (s *Scheduler) StartJobs(ctx context.Context) error {
	s.mx.Lock()
	if s.draining {
		s.mx.Unlock()
		return nil
	}
	s.draining = true
	s.mx.Unlock()
	defer func() {
		s.mx.Lock()
		s.draining = false
		s.mx.Unlock()
	}()

	for {
		j, ok := s.next()
		if !ok {
			break
		}
		err := j.Start(ctx)
		switch {
		case err == nil:
		case model.IsCancelled(err):
			slog.InfoContext(ctx, "job cancelled, stopping", "job_name", j.Name())
			s.mx.Lock()
			pending := s.cancelFrom()
			s.mx.Unlock()
			s.cancel(pending)
			return model.ErrCancelled
		default:
			slog.ErrorContext(ctx, "job failed", "job_name", j.Name(), "error", err)
		}
	}

	if s.Cancelled() {
		return model.ErrCancelled
	}
	return nil
}

func (s *Scheduler) next() (*job.Job, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.cancelled || s.cursor+1 >= len(s.jobs) {
		return nil, false
	}
	s.cursor++
	return s.jobs[s.cursor], true
}

// Pending reports whether queued jobs wait for a drain.
func (s *Scheduler) Pending() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return !s.cancelled && !s.draining && s.cursor+1 < len(s.jobs)
}

// CancelJobs cancels every job from the cursor onwards. It does nothing
// unless a job is in progress.
func (s *Scheduler) CancelJobs() {
	s.mx.Lock()
	if !s.inProgress() {
		s.mx.Unlock()
		return
	}
	pending := s.cancelFrom()
	s.mx.Unlock()
	s.cancel(pending)
}

// cancelFrom flags the run as cancelled and returns the jobs from the cursor
// onwards. It must be called with mx held.
func (s *Scheduler) cancelFrom() []*job.Job {
	s.cancelled = true
	from := max(s.cursor, 0)
	return slices.Clone(s.jobs[from:])
}

func (s *Scheduler) cancel(pending []*job.Job) {
	for _, j := range pending {
		j.Cancel()
	}
	s.Changed()
}

// ClearJobs empties the queue. With a job in progress the prompter is asked
// first, the list stays unchanged unless the answer is Yes. It reports
// whether the list was cleared.
func (s *Scheduler) ClearJobs(ctx context.Context) bool {
	s.mx.Lock()
	if !s.inProgress() {
		s.reset()
		s.mx.Unlock()
		s.Changed()
		return true
	}
	p := s.prompter
	s.mx.Unlock()

	if p == nil {
		return false
	}
	choice, err := p.Choose(ctx, ClearTitle, prompt.Yes, prompt.No)
	if err != nil {
		slog.WarnContext(ctx, "clear prompt failed", "error", err)
		return false
	}
	if choice != prompt.Yes {
		return false
	}

	s.CancelJobs()
	s.mx.Lock()
	s.reset()
	s.mx.Unlock()
	s.Changed()
	return true
}

// reset must be called with mx held.
func (s *Scheduler) reset() {
	s.jobs = nil
	s.cursor = -1
	s.cancelled = false
}

func (s *Scheduler) inProgress() bool {
	for _, j := range s.jobs {
		if j.Status() == job.InProgress {
			return true
		}
	}
	return false
}

func (s *Scheduler) Jobs() []*job.Job {
	s.mx.Lock()
	defer s.mx.Unlock()
	return slices.Clone(s.jobs)
}

// Running reports whether any top-level job is in progress.
func (s *Scheduler) Running() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.inProgress()
}

// Cancelled reports whether the last run was cancelled.
func (s *Scheduler) Cancelled() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.cancelled
}

// Find returns the job with id anywhere in the queue, or nil.
func (s *Scheduler) Find(id string) *job.Job {
	for _, j := range s.Jobs() {
		if found := j.Find(id); found != nil {
			return found
		}
	}
	return nil
}

func (s *Scheduler) Snapshot() []job.Info {
	jobs := s.Jobs()
	infos := make([]job.Info, 0, len(jobs))
	for _, j := range jobs {
		infos = append(infos, j.Snapshot())
	}
	return infos
}
