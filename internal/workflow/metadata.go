package workflow

import (
	"os"
	"path/filepath"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/shell"
)

// IgnoreConflicts is the alternate retry offered by push and pull.
const IgnoreConflicts = "Retry and ignore conflicts"

func (b *Builder) PushMetadata() Submission {
	return b.submit(b.conflicting("Push Metadata", "sf project deploy start"))
}

func (b *Builder) PullMetadata() Submission {
	return b.submit(b.conflicting("Pull Metadata", "sf project retrieve start"))
}

func (b *Builder) conflicting(name, line string) *job.Job {
	return job.NewShell(name, b.runner(shell.Command{
		Line:       line,
		RetryLabel: IgnoreConflicts,
		RetryLine:  line + " --ignore-conflicts",
	}))
}

// DeployUnpackagable deploys the metadata kept outside of the packages.
func (b *Builder) DeployUnpackagable() Submission {
	loc := b.cfg.Unpackagable.Location
	if loc == "" {
		return b.skip("No unpackagable location configured")
	}
	path := b.path(loc)
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		return b.skip("Could not find valid directory at: " + path + "\nSkipping unpackagable deploy")
	}
	return b.submit(b.leaf("Deploy Unpackagable Metadata", "sf project deploy start -d "+quote(path)))
}

// path resolves a configured location against the workspace.
func (b *Builder) path(loc string) string {
	if filepath.IsAbs(loc) {
		return loc
	}
	return filepath.Join(b.workspace, loc)
}
