package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/log"
	"github.com/dxmate/dxmate/internal/output"
	"github.com/dxmate/dxmate/internal/prompt"
	"github.com/dxmate/dxmate/internal/scheduler"
	"github.com/dxmate/dxmate/internal/view"
	"github.com/dxmate/dxmate/internal/workflow"
)

var errJobsFailed = errors.New("some jobs failed")

type buildFunc func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error)

// app wires the scheduler and the workflow builder of one invocation.
type app struct {
	sched   *scheduler.Scheduler
	builder *workflow.Builder
	out     *output.Channel
}

// newApp builds the application. Interactive apps ask on the terminal,
// otherwise only --yes answers.
func newApp(interactive bool) *app {
	var p prompt.Prompter
	switch {
	case flagYes:
		p = prompt.Static(prompt.Yes)
	case interactive:
		p = prompt.NewTerminal(os.Stdin, os.Stderr)
	}
	out := output.NewChannel(os.Stdout)
	sched := scheduler.New().WithPrompter(p)
	builder := workflow.New(sched, config, config.Workspace).
		WithOutput(out).
		WithPrompter(p)
	return &app{sched: sched, builder: builder, out: out}
}

// runJobs builds the jobs, drains the queue and prints the final tree.
// SIGINT and SIGTERM cancel the running jobs.
func runJobs(cmd *cobra.Command, name string, build buildFunc) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", name), slog.Int("pid", os.Getpid()))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(true)
	defer a.out.Flush()
	subs, err := build(ctx, a.builder)
	if err != nil {
		return err
	}
	if !submitted(subs) {
		return nil
	}

	cancel := context.AfterFunc(ctx, a.sched.CancelJobs)
	defer cancel()
	err = a.sched.StartJobs(ctx)
	a.out.Flush()

	nodes := view.Tree(a.sched)
	printTree(cmd.OutOrStdout(), nodes, 0)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.Status == job.Error {
			return errJobsFailed
		}
	}
	return nil
}

func submitted(subs []workflow.Submission) bool {
	for _, s := range subs {
		if s.Submitted() {
			return true
		}
	}
	return false
}

var statusMarks = map[job.Status]string{
	job.Scheduled:  " ",
	job.InProgress: "~",
	job.Success:    "✓",
	job.Error:      "✗",
	job.Cancelled:  "-",
}

func printTree(w io.Writer, nodes []view.Node, depth int) {
	for _, n := range nodes {
		line := strings.Repeat("  ", depth) + "[" + statusMarks[n.Status] + "] " + n.Label
		if n.Description != "" {
			line += " (" + n.Description + ")"
		}
		_, _ = fmt.Fprintln(w, line)
		printTree(w, n.Children, depth+1)
	}
}

func one(sub workflow.Submission) []workflow.Submission {
	return []workflow.Submission{sub}
}

// triggerCmd runs a workflow that needs no arguments.
func triggerCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJobs(cmd, name, func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
				sub, err := b.Trigger(ctx, name)
				return one(sub), err
			})
		},
	}
}

var flagDays int

var createScratchCmd = &cobra.Command{
	Use:   "create-scratch <alias>",
	Short: "create a scratch org, replacing a scratch org with the same alias",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobs(cmd, "create-scratch", func(_ context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			return one(b.CreateScratchOrg(args[0], flagDays)), nil
		})
	},
}

var importDataCmd = &cobra.Command{
	Use:   "import-data [alias]",
	Short: "import the dummy data into an org, the default org without alias",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := ""
		if len(args) == 1 {
			alias = args[0]
		}
		return runJobs(cmd, "import-data", func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			sub, err := b.ImportDummyData(ctx, alias)
			return one(sub), err
		})
	},
}

var loginLinkCmd = &cobra.Command{
	Use:   "login-link",
	Short: "print a direct login url of the default org",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJobs(cmd, "login-link", func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			sub, err := b.GenerateLoginLink(ctx)
			return one(sub), err
		})
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool <tag> <alias>",
	Short: "fetch a scratch org from a pool and set it up",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobs(cmd, "pool", func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			sub, err := b.FetchFromPool(ctx, args[0], args[1])
			return one(sub), err
		})
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user [file]",
	Short: "create a dummy user, without file the available definitions are listed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			b := newApp(false).builder
			users, err := b.DummyUsers(cmd.Context())
			for _, u := range users {
				file := u.File
				if rel, err := filepath.Rel(b.Workspace(), u.File); err == nil {
					file = rel
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", file, u.Username(), u.ProfileName)
			}
			return err
		}
		return runJobs(cmd, "create-user", func(_ context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			sub, err := b.CreateUser(args[0])
			return one(sub), err
		})
	},
}

var exportDataFlags struct {
	query string
	soql  string
}

var exportDataCmd = &cobra.Command{
	Use:   "export-data <dir>",
	Short: "export the records of a SOQL query as a tree, the query is picked from the workspace .soql files unless given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := exportDataFlags
		return runJobs(cmd, "export-data", func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			if f.query != "" {
				return one(b.ExportData(f.query, args[0])), nil
			}
			sub, err := b.ExportSoql(ctx, f.soql, args[0])
			return one(sub), err
		})
	},
}

var soqlCmd = &cobra.Command{
	Use:   "soql",
	Short: "list the .soql files of the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		files, err := newApp(false).builder.SoqlFiles(cmd.Context())
		for _, f := range files {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Path, f.Query)
		}
		return err
	},
}

// sfdmuCmd runs an sfdmu data set against the default org. Without an
// argument the data sets of the dummy data location are listed.
func sfdmuCmd(use, short string, build func(*workflow.Builder) func(context.Context, string) (workflow.Submission, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [data-set]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				sets, err := newApp(false).builder.DataSets(cmd.Context())
				for _, set := range sets {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), set)
				}
				return err
			}
			return runJobs(cmd, use, func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
				sub, err := build(b)(ctx, args[0])
				return one(sub), err
			})
		},
	}
}

var fieldDocsCmd = &cobra.Command{
	Use:   "field-docs <fields-dir>",
	Short: "print the field definitions of an object as a markdown table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		md, err := newApp(false).builder.FieldMarkdown(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	},
}

var flagDepsPackage string

var depsCmd = &cobra.Command{
	Use:   workflow.Deps,
	Short: "install the package dependencies of the project, or of one package directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJobs(cmd, workflow.Deps, func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			if !cmd.Flags().Changed("package") {
				sub, err := b.InstallDependencies(ctx)
				return one(sub), err
			}
			sub, err := b.InstallPackageDependencies(ctx, flagDepsPackage)
			return one(sub), err
		})
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup <alias>",
	Short: "create a scratch org and prepare it: dependencies, metadata, permission sets and data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobs(cmd, "setup", func(ctx context.Context, b *workflow.Builder) ([]workflow.Submission, error) {
			subs, err := b.Setup(ctx, args[0])
			if err != nil {
				// the remaining steps are still worth running
				slog.WarnContext(ctx, "setup incomplete", "error", err)
			}
			return subs, nil
		})
	},
}

var addDependencyFlags struct {
	dir     string
	name    string
	version string
	id      string
	key     string
}

var addDependencyCmd = &cobra.Command{
	Use:   "add-dependency",
	Short: "add a package dependency to sfdx-project.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := addDependencyFlags
		return newApp(false).builder.AddDependency(f.dir, f.name, f.version, f.id, f.key)
	},
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <package> <key>",
	Short: "store the installation key of a package in the workspace",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return newApp(false).builder.SetDependencyKey(args[0], args[1])
	},
}

func workflowCommands() []*cobra.Command {
	createScratchCmd.Flags().IntVar(&flagDays, "days", 0, "scratch org duration in days - default from the config")
	depsCmd.Flags().StringVar(&flagDepsPackage, "package", "", "install the dependencies of this package directory only - empty asks for one")
	exportDataCmd.Flags().StringVar(&exportDataFlags.query, "query", "", "SOQL query to export")
	exportDataCmd.Flags().StringVar(&exportDataFlags.soql, "soql", "", ".soql file holding the query, path or file name")
	exportDataCmd.MarkFlagsMutuallyExclusive("query", "soql")

	f := addDependencyCmd.Flags()
	f.StringVar(&addDependencyFlags.dir, "package", "", "package directory receiving the dependency - required for multi package projects")
	f.StringVar(&addDependencyFlags.name, "name", "", "dependency package name")
	f.StringVar(&addDependencyFlags.version, "version", "", "dependency version number, e.g. 1.2.0.LATEST")
	f.StringVar(&addDependencyFlags.id, "id", "", "package id stored as alias")
	f.StringVar(&addDependencyFlags.key, "key", "", "installation key")
	for _, name := range []string{"name", "version", "id"} {
		_ = addDependencyCmd.MarkFlagRequired(name)
	}

	return []*cobra.Command{
		createScratchCmd,
		triggerCmd(workflow.Open, "open the default org in a browser"),
		triggerCmd(workflow.Push, "deploy the local metadata to the default org"),
		triggerCmd(workflow.Pull, "retrieve the changed metadata from the default org"),
		depsCmd,
		triggerCmd(workflow.DeployUnpackagable, "deploy the metadata kept outside of packages"),
		importDataCmd,
		triggerCmd(workflow.PermSets, "assign the default permission sets"),
		loginLinkCmd,
		poolCmd,
		createUserCmd,
		exportDataCmd,
		soqlCmd,
		sfdmuCmd("sfdmu-export", "export an sfdmu data set from the default org to CSV files", func(b *workflow.Builder) func(context.Context, string) (workflow.Submission, error) {
			return b.SFDMUExport
		}),
		sfdmuCmd("sfdmu-import", "import the CSV files of an sfdmu data set into the default org", func(b *workflow.Builder) func(context.Context, string) (workflow.Submission, error) {
			return b.SFDMUImport
		}),
		fieldDocsCmd,
		setupCmd,
		addDependencyCmd,
		setKeyCmd,
	}
}
