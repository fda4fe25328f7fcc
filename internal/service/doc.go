// Package service runs dxmate as a long lived process.
//
// Overview
// The Supervisor owns an event loop and the scheduler's job list. Workflow
// triggers come from gocron schedules and from HTTP. The loop builds the
// workflow, queues it and starts a drain when none is running. Adding and
// clearing jobs therefore happen on one goroutine, while the drain runs the
// queued jobs in its own.
//
// Data flow:
//
//   gocron / HTTP          Supervisor               Scheduler
//       |                      |                        |
//   Start/Trigger ---------->  | builder.Trigger -----> | AddJob
//       |                      | drain() -------------> | StartJobs (goroutine)
//       |                      |<------ drained --------| (queue exhausted)
//       |                      | Pending? drain again   |
//
// Invariants:
//   - At most one drain at a time.
//   - Work queued while a drain finishes is picked up by the next drain.
//   - Cancelling the loop's context cancels the running jobs, and Do waits
//     for the drain to end.
//
// internal/service/supervisor_test.go shows how to drive a Supervisor.
package service
