package sfdx

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

const ProjectFile = "sfdx-project.json"

// Project is sfdx-project.json. Fields it does not model are kept as they
// are and written back by Save.
type Project struct {
	PackageDirectories []PackageDirectory `json:"packageDirectories"`
	PackageAliases     map[string]string  `json:"packageAliases,omitempty"`

	path  string
	extra map[string]json.RawMessage
}

type PackageDirectory struct {
	Path          string       `json:"path"`
	Default       bool         `json:"default,omitempty"`
	Package       string       `json:"package,omitempty"`
	VersionName   string       `json:"versionName,omitempty"`
	VersionNumber string       `json:"versionNumber,omitempty"`
	Dependencies  []Dependency `json:"dependencies,omitempty"`

	extra map[string]json.RawMessage
}

type Dependency struct {
	Package       string `json:"package"`
	VersionNumber string `json:"versionNumber,omitempty"`
}

// LoadProject reads sfdx-project.json from the workspace root.
func LoadProject(workspace string) (*Project, error) {
	path := filepath.Join(workspace, ProjectFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	p.path = path
	return &p, nil
}

// Save writes the project back with the 4 space indent the CLI uses.
func (p *Project) Save() error {
	b, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, append(b, '\n'), 0o644)
}

func (p *Project) IsMultiPackage() bool {
	return len(p.PackageDirectories) > 1
}

// Dependencies returns the package names all directories depend on, each
// once, in the order they first appear.
func (p *Project) Dependencies() []string {
	var deps []string
	for _, d := range p.PackageDirectories {
		for _, dep := range d.Dependencies {
			if !slices.Contains(deps, dep.Package) {
				deps = append(deps, dep.Package)
			}
		}
	}
	return deps
}

// Directory returns the package directory of the named package.
func (p *Project) Directory(pkg string) (*PackageDirectory, bool) {
	for i := range p.PackageDirectories {
		if p.PackageDirectories[i].Package == pkg {
			return &p.PackageDirectories[i], true
		}
	}
	return nil, false
}

// AddDependency adds name to the directory of pkg and registers id as its
// alias. An existing dependency gets the new version.
func (p *Project) AddDependency(pkg, name, version, id string) error {
	dir, ok := p.Directory(pkg)
	if !ok {
		return fmt.Errorf("no package directory for %q", pkg)
	}

	idx := slices.IndexFunc(dir.Dependencies, func(d Dependency) bool {
		return d.Package == name
	})
	if idx >= 0 {
		dir.Dependencies[idx].VersionNumber = version
	} else {
		dir.Dependencies = append(dir.Dependencies, Dependency{Package: name, VersionNumber: version})
	}

	if p.PackageAliases == nil {
		p.PackageAliases = map[string]string{}
	}
	p.PackageAliases[name] = id
	return nil
}

func (p *Project) UnmarshalJSON(b []byte) error {
	type plain Project
	if err := json.Unmarshal(b, (*plain)(p)); err != nil {
		return err
	}
	extra, err := unknownFields(b, "packageDirectories", "packageAliases")
	p.extra = extra
	return err
}

func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return withUnknownFields(plain(p), p.extra)
}

func (d *PackageDirectory) UnmarshalJSON(b []byte) error {
	type plain PackageDirectory
	if err := json.Unmarshal(b, (*plain)(d)); err != nil {
		return err
	}
	extra, err := unknownFields(b, "path", "default", "package", "versionName", "versionNumber", "dependencies")
	d.extra = extra
	return err
}

func (d PackageDirectory) MarshalJSON() ([]byte, error) {
	type plain PackageDirectory
	return withUnknownFields(plain(d), d.extra)
}

func unknownFields(b []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func withUnknownFields(v any, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	merged := maps.Clone(extra)
	maps.Copy(merged, all)
	return json.Marshal(merged)
}
