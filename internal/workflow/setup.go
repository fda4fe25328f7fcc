package workflow

import (
	"context"
	"errors"
	"log/slog"
)

// AssignPermissionSets assigns the configured default permission sets to
// the default org, one job per set.
func (b *Builder) AssignPermissionSets() Submission {
	sets := b.cfg.Scratch.DefaultPermissionSets
	if len(sets) == 0 {
		return b.skip("No permission sets to assign")
	}
	parent := b.composite("Assign Default Permission Sets")
	for _, set := range sets {
		if err := parent.AddJob(b.leaf("Assign: "+set, "sf org assign permset -n "+set)); err != nil {
			return b.skip(err.Error())
		}
	}
	return b.submit(parent)
}

// Setup queues everything a fresh scratch org needs, in order: the org
// itself, dependencies, metadata, unpackagable metadata, opening it,
// permission sets and dummy data. Steps with nothing to do are skipped.
func (b *Builder) Setup(ctx context.Context, alias string) ([]Submission, error) {
	create := b.CreateScratchOrg(alias, 0)
	if !create.Submitted() {
		return []Submission{create}, nil
	}
	subs := []Submission{create}

	var errs []error
	deps, err := b.InstallDependencies(ctx)
	if err != nil {
		slog.WarnContext(ctx, "skipping dependencies", "error", err)
		errs = append(errs, err)
	} else {
		subs = append(subs, deps)
	}

	subs = append(subs,
		b.PushMetadata(),
		b.DeployUnpackagable(),
		b.OpenOrg(),
		b.AssignPermissionSets(),
	)

	data, err := b.ImportDummyData(ctx, alias)
	if err != nil {
		slog.WarnContext(ctx, "skipping dummy data", "error", err)
		errs = append(errs, err)
	} else {
		subs = append(subs, data)
	}
	return subs, errors.Join(errs...)
}
