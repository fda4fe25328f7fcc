package view

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dxmate/dxmate/internal/scheduler"
	"github.com/dxmate/dxmate/internal/workflow"
)

// Controller performs the mutations that must happen on the owner's event
// loop.
type Controller interface {
	Trigger(ctx context.Context, name string) (workflow.Submission, error)
	Clear(ctx context.Context) bool
}

// Submission is the answer to a workflow trigger.
type Submission struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
	JobID  string `json:"job_id,omitempty"`
}

type handler struct {
	sched *scheduler.Scheduler
	ctl   Controller
}

// Handler serves the job tree of sched. Reads go to the scheduler directly,
// list mutations through ctl.
func Handler(sched *scheduler.Scheduler, ctl Controller) http.Handler {
	h := handler{sched: sched, ctl: ctl}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/jobs", h.jobs)
	r.Post("/jobs/cancel", h.cancelAll)
	r.Post("/jobs/clear", h.clear)
	r.Post("/jobs/{id}/cancel", h.cancel)
	r.Post("/workflows/{name}", h.trigger)
	r.Get("/workflows", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, workflow.Workflows())
	})
	return r
}

// GET /jobs
func (h handler) jobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, Tree(h.sched))
}

// POST /jobs/cancel
func (h handler) cancelAll(w http.ResponseWriter, _ *http.Request) {
	h.sched.CancelJobs()
	w.WriteHeader(http.StatusNoContent)
}

// POST /jobs/{id}/cancel
func (h handler) cancel(w http.ResponseWriter, r *http.Request) {
	j := h.sched.Find(chi.URLParam(r, "id"))
	if j == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	j.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// POST /jobs/clear
func (h handler) clear(w http.ResponseWriter, r *http.Request) {
	if !h.ctl.Clear(r.Context()) {
		http.Error(w, "jobs in progress", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /workflows/{name}
func (h handler) trigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sub, err := h.ctl.Trigger(r.Context(), name)
	switch {
	case errors.Is(err, workflow.ErrUnknownWorkflow):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := Submission{Kind: sub.Kind.String(), Reason: sub.Reason}
	status := http.StatusOK
	if sub.Job != nil {
		resp.JobID = sub.Job.ID()
		status = http.StatusAccepted
	}
	writeJSON(r.Context(), w, status, resp)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.DebugContext(ctx, "writing response", "error", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
		)
	})
}
