package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/scheduler"
	"github.com/dxmate/dxmate/internal/workflow"
)

var ErrStopped = errors.New("supervisor stopped")

type Supervisor struct {
	sched    *scheduler.Scheduler
	builder  *workflow.Builder
	cron     gocron.Scheduler
	requests chan request
	drained  chan error
	stop     chan struct{}
	stopOnce sync.Once
	draining bool
	wg       sync.WaitGroup
}

type requestOp int

const (
	opTrigger requestOp = iota
	opClear
)

type request struct {
	op    requestOp
	name  string
	ctx   context.Context
	reply chan response
}

type response struct {
	sub     workflow.Submission
	err     error
	cleared bool
}

// NewSupervisor prepares the event loop owning sched. Every schedule
// triggers its workflow from a gocron job.
func NewSupervisor(ctx context.Context, sched *scheduler.Scheduler, builder *workflow.Builder, schedules ...model.Schedule) (*Supervisor, error) {
	s := &Supervisor{
		sched:    sched,
		builder:  builder,
		requests: make(chan request),
		drained:  make(chan error, 1),
		stop:     make(chan struct{}),
	}
	if len(schedules) == 0 {
		return s, nil
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	for _, sc := range schedules {
		def, err := jobDefinition(ctx, sc)
		if err != nil {
			_ = cron.Shutdown()
			return nil, err
		}
		name := sc.Workflow
		_, err = cron.NewJob(def, gocron.NewTask(func() { s.Start(name) }), gocron.WithName(name))
		if err != nil {
			_ = cron.Shutdown()
			return nil, fmt.Errorf("initializing gocron job %s: %w", name, err)
		}
	}
	s.cron = cron
	return s, nil
}

func jobDefinition(ctx context.Context, sc model.Schedule) (gocron.JobDefinition, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if !workflow.IsWorkflow(sc.Workflow) {
		return nil, fmt.Errorf("%w: %q", workflow.ErrUnknownWorkflow, sc.Workflow)
	}
	if sc.Cron != "" {
		fields, err := ParseFlexible(sc.Cron)
		if err != nil {
			return nil, fmt.Errorf("%s: parsing cron: %w", sc.Workflow, err)
		}
		slog.DebugContext(ctx, "successfully parsed", "workflow", sc.Workflow, "cron", sc.Cron)
		return gocron.CronJob(strings.TrimSpace(sc.Cron), fields == 6), nil
	}
	d, err := model.ParseISODuration(sc.Duration)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "successfully parsed", "workflow", sc.Workflow, "duration", d.String())
	return gocron.DurationJob(d), nil
}

// Start asks the loop to trigger the workflow name. It returns as soon as
// the request is handed over, errors are logged by the loop.
func (s *Supervisor) Start(name string) {
	select {
	case s.requests <- request{op: opTrigger, name: name}:
	case <-s.stop:
	}
}

// Trigger runs the workflow name on the loop and waits for its submission.
func (s *Supervisor) Trigger(ctx context.Context, name string) (workflow.Submission, error) {
	resp, err := s.call(ctx, request{op: opTrigger, name: name, ctx: ctx})
	if err != nil {
		return workflow.Submission{}, err
	}
	return resp.sub, resp.err
}

// Clear clears the job list on the loop. It reports false when the clear
// was declined.
func (s *Supervisor) Clear(ctx context.Context) bool {
	resp, err := s.call(ctx, request{op: opClear, ctx: ctx})
	return err == nil && resp.cleared
}

func (s *Supervisor) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-s.stop:
		return response{}, ErrStopped
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// Do runs the supervisor event loop until ctx is done.
// It multiplexes three concerns:
//  1. Requests (triggers and clears) from schedules and HTTP. Only the loop
//     adds or clears jobs.
//  2. Drain results. A drain runs in its own goroutine, a new one starts when
//     jobs were queued meanwhile.
//  3. Context cancellation, which cancels the running drain and waits for it.
func (s *Supervisor) Do(ctx context.Context) error {
	slog.DebugContext(ctx, "starting a supervisor")

	if s.cron != nil {
		s.cron.Start()
		defer func() {
			if err := s.cron.Shutdown(); err != nil {
				slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
			}
		}()
	}

	defer s.wg.Wait()
	defer s.sched.CancelJobs()
	defer s.stopOnce.Do(func() { close(s.stop) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.requests:
			s.handle(ctx, req)
		case err := <-s.drained:
			s.draining = false
			if err != nil {
				slog.WarnContext(ctx, "drain ended", "error", err)
			}
			if s.sched.Pending() {
				s.drain(ctx)
			}
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, req request) {
	rctx := req.ctx
	if rctx == nil {
		rctx = ctx
	}

	var resp response
	switch req.op {
	case opTrigger:
		resp.sub, resp.err = s.builder.Trigger(rctx, req.name)
		if resp.err != nil {
			slog.ErrorContext(ctx, "trigger failed", "workflow", req.name, "error", resp.err)
		} else if resp.sub.Submitted() && !s.draining {
			s.drain(ctx)
		}
	case opClear:
		resp.cleared = s.sched.ClearJobs(rctx)
	default:
		slog.WarnContext(ctx, "request not supported: ignoring", "op", req.op)
	}

	if req.reply != nil {
		req.reply <- resp
	}
}

func (s *Supervisor) drain(ctx context.Context) {
	s.draining = true
	s.wg.Go(func() {
		s.drained <- s.sched.StartJobs(ctx)
	})
}
