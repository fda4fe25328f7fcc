package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dxmate/dxmate/internal/prompt"
	"github.com/dxmate/dxmate/internal/sfdx"
)

// ErrPackageRequired is returned when a multi package project needs a
// package directory and nobody can pick one.
var ErrPackageRequired = errors.New("package directory required for multi package projects")

// PackageTitle is asked to pick the package directory to work on.
const PackageTitle = "Select package directory"

// InstallDependencies installs the packages the project depends on. Keys
// missing from the configuration are asked for and remembered in the
// workspace.
func (b *Builder) InstallDependencies(ctx context.Context) (Submission, error) {
	project, sub, err := b.loadProject()
	if project == nil {
		return sub, err
	}
	return b.installDependencies(ctx, "", project.Dependencies())
}

// InstallPackageDependencies installs the dependencies of the package
// directory pkg only. An empty pkg picks the only directory of a single
// package project, otherwise the user is asked.
func (b *Builder) InstallPackageDependencies(ctx context.Context, pkg string) (Submission, error) {
	project, sub, err := b.loadProject()
	if project == nil {
		return sub, err
	}

	var dir *sfdx.PackageDirectory
	switch {
	case pkg != "":
		var ok bool
		if dir, ok = project.Directory(pkg); !ok {
			return Submission{}, fmt.Errorf("no package directory for %q", pkg)
		}
	case len(project.PackageDirectories) == 0:
		return b.skip("No package directories in " + sfdx.ProjectFile), nil
	case !project.IsMultiPackage():
		dir = &project.PackageDirectories[0]
	default:
		if dir, err = b.choosePackage(ctx, project); err != nil {
			return Submission{}, err
		}
		if dir == nil {
			return b.skip("No package directory selected"), nil
		}
	}

	var deps []string
	for _, d := range dir.Dependencies {
		if !slices.Contains(deps, d.Package) {
			deps = append(deps, d.Package)
		}
	}
	return b.installDependencies(ctx, dir.Package, deps)
}

func (b *Builder) loadProject() (*sfdx.Project, Submission, error) {
	project, err := sfdx.LoadProject(b.workspace)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, b.skip("No " + sfdx.ProjectFile + " in workspace"), nil
	}
	return project, Submission{}, err
}

// choosePackage asks for one of the named package directories. A dismissed
// prompt returns nil.
func (b *Builder) choosePackage(ctx context.Context, project *sfdx.Project) (*sfdx.PackageDirectory, error) {
	if b.prompter == nil {
		return nil, ErrPackageRequired
	}
	var names []string
	for _, d := range project.PackageDirectories {
		if d.Package != "" {
			names = append(names, d.Package)
		}
	}
	choice, err := b.prompter.Choose(ctx, PackageTitle, names...)
	if err != nil || choice == "" {
		return nil, err
	}
	dir, ok := project.Directory(choice)
	if !ok {
		return nil, fmt.Errorf("no package directory for %q", choice)
	}
	return dir, nil
}

// installDependencies submits the sfpowerkit install of deps, limited to
// the package pkg unless it is empty.
func (b *Builder) installDependencies(ctx context.Context, pkg string, deps []string) (Submission, error) {
	if len(deps) == 0 {
		return b.skip("No Dependencies to install"), nil
	}
	b.out.AppendLine("FOUND DEPENDENCIES: " + strings.Join(deps, ", "))

	keys, err := b.dependencyKeys()
	if err != nil {
		return Submission{}, err
	}
	for _, dep := range deps {
		if _, ok := keys[dep]; ok {
			continue
		}
		key, ok, err := b.askKey(ctx, dep)
		if err != nil {
			return Submission{}, err
		}
		if !ok {
			return b.skip("Cancelled key input for package " + dep), nil
		}
		keys[dep] = key
	}

	var params []string
	for _, dep := range deps {
		b.out.AppendLine("DEPENDENCY:  " + dep)
		if key := keys[dep]; key != "" {
			params = append(params, dep+":"+key)
		}
	}

	name := "Install Dependencies"
	line := "sfdx sfpowerkit:package:dependencies:install -r -a -w 10"
	if pkg != "" {
		name += ": " + pkg
		line += " -p " + pkg
	}
	if len(params) > 0 {
		line += " --installationkeys " + quote(strings.Join(params, " "))
	}
	return b.submit(b.leaf(name, line)), nil
}

// dependencyKeys merges the legacy key file under the configured keys.
func (b *Builder) dependencyKeys() (map[string]string, error) {
	keys, err := sfdx.LegacyKeys(b.workspace)
	if err != nil {
		return nil, err
	}
	maps.Copy(keys, b.cfg.Dependency.Keys)
	return keys, nil
}

// askKey asks for the installation key of pkg. Without an interactive
// prompter the package is installed without key.
func (b *Builder) askKey(ctx context.Context, pkg string) (string, bool, error) {
	in, ok := b.prompter.(prompt.Inputter)
	if !ok {
		slog.WarnContext(ctx, "no installation key", "package", pkg)
		return "", true, nil
	}
	key, err := in.Input(ctx, "Update package key for package: <"+pkg+">")
	if err != nil || key == "" {
		return "", false, err
	}
	if err := sfdx.SaveLegacyKey(b.workspace, pkg, key); err != nil {
		return "", false, fmt.Errorf("saving key of %s: %w", pkg, err)
	}
	return key, true, nil
}

// AddDependency registers a package dependency in sfdx-project.json and
// stores its key. An empty directory package picks the only directory of a
// single package project.
func (b *Builder) AddDependency(dirPackage, name, version, id, key string) error {
	project, err := sfdx.LoadProject(b.workspace)
	if err != nil {
		return err
	}
	if dirPackage == "" {
		if project.IsMultiPackage() || len(project.PackageDirectories) == 0 {
			return ErrPackageRequired
		}
		dirPackage = project.PackageDirectories[0].Package
	}
	if err := project.AddDependency(dirPackage, name, version, id); err != nil {
		return err
	}
	if err := project.Save(); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	return b.SetDependencyKey(name, key)
}

func (b *Builder) SetDependencyKey(pkg, key string) error {
	return sfdx.SaveLegacyKey(b.workspace, pkg, key)
}
