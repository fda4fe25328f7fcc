// Package workflow turns the user facing operations (create a scratch org,
// push metadata, import data, ...) into job trees and submits them to the
// scheduler. The command lines follow the Salesforce CLI.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/output"
	"github.com/dxmate/dxmate/internal/prompt"
	"github.com/dxmate/dxmate/internal/scheduler"
	"github.com/dxmate/dxmate/internal/shell"
)

// Names of the workflows that can be triggered by name.
const (
	Open               = "open"
	Push               = "push"
	Pull               = "pull"
	Deps               = "deps"
	DeployUnpackagable = "deploy-unpackagable"
	ImportData         = "import-data"
	PermSets           = "permsets"
)

var ErrUnknownWorkflow = errors.New("unknown workflow")

// Kind tells whether a builder submitted work.
type Kind int

const (
	Submitted Kind = iota
	Skipped
)

func (k Kind) String() string {
	if k == Skipped {
		return "skipped"
	}
	return "submitted"
}

// Submission is the outcome of a builder: either a job was queued or the
// builder had nothing to do, with the reason why.
type Submission struct {
	Kind   Kind
	Reason string
	Job    *job.Job
}

func (s Submission) Submitted() bool {
	return s.Kind == Submitted
}

// Builder builds workflows against one workspace and queues them on a
// scheduler. It never starts a drain, callers do.
type Builder struct {
	sched     *scheduler.Scheduler
	cfg       model.Config
	workspace string
	out       *output.Channel
	prompter  prompt.Prompter
	env       []string
	scanLimit int
}

func New(sched *scheduler.Scheduler, cfg model.Config, workspace string) *Builder {
	return &Builder{
		sched:     sched,
		cfg:       cfg,
		workspace: workspace,
		out:       output.Discard(),
		scanLimit: 8,
	}
}

func (b *Builder) WithOutput(out *output.Channel) *Builder {
	if out != nil {
		b.out = out
	}
	return b
}

// WithPrompter sets who answers retry questions and key inputs.
func (b *Builder) WithPrompter(p prompt.Prompter) *Builder {
	b.prompter = p
	return b
}

// WithEnv adds KEY=VALUE entries to the environment of every command.
func (b *Builder) WithEnv(env ...string) *Builder {
	b.env = append(b.env, env...)
	return b
}

func (b *Builder) Workspace() string {
	return b.workspace
}

// Trigger queues the workflow registered under name, the ones that can run
// unattended from a schedule or an HTTP call.
func (b *Builder) Trigger(ctx context.Context, name string) (Submission, error) {
	var sub Submission
	var err error
	switch name {
	case Open:
		sub = b.OpenOrg()
	case Push:
		sub = b.PushMetadata()
	case Pull:
		sub = b.PullMetadata()
	case Deps:
		sub, err = b.InstallDependencies(ctx)
	case DeployUnpackagable:
		sub = b.DeployUnpackagable()
	case ImportData:
		sub, err = b.ImportDummyData(ctx, "")
	case PermSets:
		sub = b.AssignPermissionSets()
	default:
		return Submission{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
	}
	if err != nil {
		return Submission{}, err
	}
	slog.InfoContext(ctx, "workflow triggered", "workflow", name, "kind", sub.Kind.String(), "reason", sub.Reason)
	return sub, nil
}

// Workflows lists the names accepted by Trigger.
func Workflows() []string {
	return []string{Open, Push, Pull, Deps, DeployUnpackagable, ImportData, PermSets}
}

// IsWorkflow reports whether Trigger accepts name.
func IsWorkflow(name string) bool {
	return slices.Contains(Workflows(), name)
}

func (b *Builder) submit(j *job.Job) Submission {
	b.sched.AddJob(j)
	return Submission{Kind: Submitted, Job: j}
}

func (b *Builder) skip(reason string) Submission {
	b.out.AppendLine(reason)
	return Submission{Kind: Skipped, Reason: reason}
}

// runner wraps cmd for the workspace with the builder's sink and prompter.
// Retry follows the configuration unless the command is suppressed.
func (b *Builder) runner(cmd shell.Command) *shell.Runner {
	if !cmd.SuppressOutput {
		cmd.Retry = b.cfg.Jobs.Retry
	}
	cmd.Env = append(slices.Clone(b.env), cmd.Env...)
	return shell.NewRunner(cmd).
		WithDir(b.workspace).
		WithSink(b.out).
		WithPrompter(b.prompter)
}

func (b *Builder) leaf(name, line string, opts ...job.Option) *job.Job {
	return job.NewShell(name, b.runner(shell.Command{Line: line}), opts...)
}

func (b *Builder) composite(name string) *job.Job {
	policy := job.ContinueOnError
	if b.cfg.AbortOnError() {
		policy = job.AbortOnError
	}
	return job.New(name, job.WithPolicy(policy))
}

// quote wraps a path for the shell, both sh and cmd accept double quotes.
func quote(s string) string {
	return `"` + s + `"`
}
