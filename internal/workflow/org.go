package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/model"
	"github.com/dxmate/dxmate/internal/sfdx"
	"github.com/dxmate/dxmate/internal/shell"
)

// CreateScratchOrg queues the creation of a scratch org under alias. A
// scratch org already known under the same alias is deleted first. Zero
// days picks the configured duration.
func (b *Builder) CreateScratchOrg(alias string, days int) Submission {
	if alias == "" {
		return b.skip("No scratch org alias given")
	}
	if days <= 0 {
		days = b.cfg.Scratch.DurationDays
	}
	create := fmt.Sprintf("sf org create scratch -f %s -a %s -y %d -d",
		quote(b.cfg.Scratch.Definition), alias, days)

	parent := b.composite("Create New Scratch Org")
	check := job.NewShell("Check Scratch Aliases",
		b.runner(shell.Command{Line: "sf org list --json", SuppressOutput: true}),
		job.WithOutputHandler(func(ctx context.Context, j *job.Job, out string) error {
			list, err := sfdx.Decode[sfdx.OrgList](out)
			if err != nil {
				return err
			}
			if !list.HasScratchAlias(alias) {
				return nil
			}
			slog.InfoContext(ctx, "scratch alias in use, deleting", "alias", alias)
			j.Rename(fmt.Sprintf("Check Scratch Aliases: %s in use", alias))
			return parent.AddJob(b.leaf("Delete Matching Alias",
				fmt.Sprintf("sf org delete scratch -o %s -p", alias)))
		}),
		job.WithOnFinish(func(ctx context.Context, _ *job.Job, err error) {
			if model.IsCancelled(err) {
				return
			}
			if err := parent.AddJob(b.leaf("Create Scratch Org", create)); err != nil {
				slog.ErrorContext(ctx, "queueing scratch org creation", "error", err)
			}
		}),
	)
	if err := parent.AddJob(check); err != nil {
		return b.skip(err.Error())
	}
	return b.submit(parent)
}

func (b *Builder) OpenOrg() Submission {
	return b.submit(b.leaf("Open Scratch Org", "sf org open"))
}

// DefaultOrgInfo describes the default org. It runs at once instead of
// being queued.
func (b *Builder) DefaultOrgInfo(ctx context.Context) (sfdx.OrgDisplay, error) {
	j := job.NewShell("Get default org info", b.runner(shell.Command{
		Line:           "sf org display --json --verbose",
		SuppressOutput: true,
	}))
	if err := j.Start(ctx); err != nil {
		return sfdx.OrgDisplay{}, fmt.Errorf("getting default org: %w", err)
	}
	return sfdx.Decode[sfdx.OrgDisplay](j.Output())
}

// GenerateLoginLink queues a job printing a frontdoor url of the default
// org. DevHub orgs are refused.
func (b *Builder) GenerateLoginLink(ctx context.Context) (Submission, error) {
	info, err := b.DefaultOrgInfo(ctx)
	if err != nil {
		return Submission{}, err
	}
	if info.IsDevHub() {
		return b.skip("No link generation allowed for DevHub"), nil
	}

	j := b.leaf("Creating login url", "sf org open -r --json",
		job.WithOutputHandler(func(_ context.Context, _ *job.Job, out string) error {
			res, err := sfdx.Decode[sfdx.OrgOpen](out)
			if err != nil {
				return err
			}
			b.out.AppendLine("WARNING! This link generates a direct opening to the default org\n\n LINK: " + res.URL)
			return nil
		}),
	)
	return b.submit(j), nil
}

// FetchFromPool takes a prepared scratch org from a pool and finishes its
// setup: push, permission sets and dummy data.
func (b *Builder) FetchFromPool(ctx context.Context, tag, alias string) (Submission, error) {
	if tag == "" || alias == "" {
		return b.skip("Pool tag and alias are required"), nil
	}
	sub := b.submit(b.leaf("Get Scratch From Pool",
		fmt.Sprintf("sfp pool:fetch --tag %s -a %s -d", tag, alias)))
	b.PushMetadata()
	b.AssignPermissionSets()
	if _, err := b.ImportDummyData(ctx, alias); err != nil {
		return sub, err
	}
	return sub, nil
}
