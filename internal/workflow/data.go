package workflow

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dxmate/dxmate/internal/job"
	"github.com/dxmate/dxmate/internal/parallel"
	"github.com/dxmate/dxmate/internal/shell"
	"github.com/dxmate/dxmate/internal/walk"
)

// PlanFile marks a data folder importable by `sf data import tree`.
const PlanFile = "plan.json"

// ExportFile marks a data set of the sfdmu plugin.
const ExportFile = "export.json"

// ImportDummyData imports the configured dummy data into the org alias,
// the default org when alias is empty. With sfdmu enabled the whole folder
// is one import, otherwise every sub folder with a plan is imported on its
// own.
func (b *Builder) ImportDummyData(ctx context.Context, alias string) (Submission, error) {
	loc := b.cfg.DummyData.Location
	if loc == "" {
		return b.skip("No dummy data location configured"), nil
	}
	dir := b.path(loc)

	if b.cfg.DummyData.SFDMU {
		if alias == "" {
			info, err := b.DefaultOrgInfo(ctx)
			if err != nil {
				return Submission{}, err
			}
			alias = info.Alias
		}
		if alias == "" {
			return b.skip("No target org for dummy data import"), nil
		}
		j := job.NewShell("Import Dummy Data", b.runner(shell.Command{
			Line: "sfdx sfdmu:run --sourceusername csvFile --targetusername " + alias,
			Dir:  dir,
		}))
		return b.submit(j), nil
	}

	folders, err := b.foldersWith(ctx, dir, PlanFile)
	if err != nil {
		return Submission{}, err
	}
	if len(folders) == 0 {
		return b.skip("No dummy data folders with " + PlanFile + " found in " + dir), nil
	}

	target := ""
	if alias != "" {
		target = " -o " + alias
	}
	parent := b.composite("Import Dummy Data")
	for _, folder := range folders {
		line := "sf data import tree --plan " + quote(filepath.Join(dir, folder, PlanFile)) + target
		if err := parent.AddJob(b.leaf("Import: "+folder, line)); err != nil {
			return Submission{}, err
		}
	}
	return b.submit(parent), nil
}

// foldersWith returns the sorted names of the sub folders of dir holding
// file.
func (b *Builder) foldersWith(ctx context.Context, dir, file string) ([]string, error) {
	root, err := openRoot(dir)
	if root == nil {
		return nil, err
	}
	defer func() {
		_ = root.Close()
	}()

	has := func(_ context.Context, e walk.Entry) (string, error) {
		ok, err := e.Contains(file)
		if !ok || err != nil {
			return "", err
		}
		return e.Name(), nil
	}

	found, err := parallel.Collect(parallel.NewMap(ctx, b.scanLimit, has).Iter(walk.Dir(ctx, root)))
	if err != nil {
		return nil, err
	}
	folders := slices.DeleteFunc(found, func(s string) bool { return s == "" })
	slices.Sort(folders)
	return folders, nil
}

// openRoot opens dir, a missing dir returns a nil root and no error.
func openRoot(dir string) (*os.Root, error) {
	root, err := os.OpenRoot(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return root, err
}

// DataSets returns the sub folders of the dummy data location holding an
// sfdmu export.json.
func (b *Builder) DataSets(ctx context.Context) ([]string, error) {
	loc := b.cfg.DummyData.Location
	if loc == "" {
		return nil, nil
	}
	return b.foldersWith(ctx, b.path(loc), ExportFile)
}

// SFDMUExport exports the data set target, an export.json or its folder,
// from the default org into CSV files next to it.
func (b *Builder) SFDMUExport(ctx context.Context, target string) (Submission, error) {
	return b.sfdmu(ctx, target, "Export dummy data to CSV", "--targetusername csvFile --sourceusername ")
}

// SFDMUImport imports the CSV files of the data set target, an export.json
// or its folder, into the default org.
func (b *Builder) SFDMUImport(ctx context.Context, target string) (Submission, error) {
	return b.sfdmu(ctx, target, "Import dummy data to default org", "--sourceusername csvFile --targetusername ")
}

func (b *Builder) sfdmu(ctx context.Context, target, name, args string) (Submission, error) {
	dir, err := b.dataSet(target)
	if err != nil {
		return Submission{}, err
	}
	b.out.AppendLine("Initializing " + strings.ToLower(strings.Fields(name)[0]))
	info, err := b.DefaultOrgInfo(ctx)
	if err != nil {
		return Submission{}, err
	}
	if info.Alias == "" {
		return b.skip("No default org alias for " + dir), nil
	}
	j := job.NewShell(name, b.runner(shell.Command{
		Line: "sfdx sfdmu:run " + args + info.Alias,
		Dir:  dir,
	}))
	return b.submit(j), nil
}

// dataSet resolves target, relative to the dummy data location, to the
// folder of its export.json.
func (b *Builder) dataSet(target string) (string, error) {
	if target == "" {
		return "", errors.New("no data set given")
	}
	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.path(b.cfg.DummyData.Location), target)
	}
	dir := path
	if filepath.Base(path) == ExportFile {
		dir = filepath.Dir(path)
	}
	info, err := os.Stat(filepath.Join(dir, ExportFile))
	if err != nil {
		return "", fmt.Errorf("data set %s: %w", target, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("data set %s: %s is not a file", target, ExportFile)
	}
	return dir, nil
}

// ExportData exports the records matched by query as a tree into dir.
func (b *Builder) ExportData(query, dir string) Submission {
	query = strings.TrimSpace(query)
	if query == "" || dir == "" {
		return b.skip("Query and output directory are required")
	}
	line := fmt.Sprintf("sf data export tree --json --output-dir %s --query %s", quote(b.path(dir)), quote(query))
	return b.submit(b.leaf("Export data", line))
}

// DummyUser is a user definition file. Only the fields dxmate reads are
// modelled, the file is passed to the CLI as is.
type DummyUser struct {
	File             string   `json:"-"`
	LastName         string   `json:"LastName"`
	Alias            string   `json:"Alias,omitempty"`
	ProfileName      string   `json:"profileName,omitempty"`
	PermSets         []string `json:"permsets,omitempty"`
	GeneratePassword bool     `json:"generatePassword"`
}

// Username is the login of the created user.
func (u DummyUser) Username() string {
	return u.LastName + "@my.scratch"
}

// DummyUsers reads every user definition of the configured location.
func (b *Builder) DummyUsers(ctx context.Context) ([]DummyUser, error) {
	loc := b.cfg.DummyUsers.Location
	if loc == "" {
		return nil, nil
	}
	root, err := openRoot(b.path(loc))
	if root == nil {
		return nil, err
	}
	defer func() {
		_ = root.Close()
	}()

	read := func(_ context.Context, e walk.Entry) (DummyUser, error) {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			return DummyUser{}, nil
		}
		f, err := e.Open()
		if err != nil {
			return DummyUser{}, err
		}
		defer func() {
			_ = f.Close()
		}()
		return decodeDummyUser(f, e.Path())
	}
	users, err := parallel.Collect(parallel.NewMap(ctx, b.scanLimit, read).Iter(walk.Dir(ctx, root)))
	users = slices.DeleteFunc(users, func(u DummyUser) bool { return u.File == "" })
	slices.SortFunc(users, func(x, y DummyUser) int { return cmp.Compare(x.File, y.File) })
	return users, err
}

func readDummyUser(path string) (DummyUser, error) {
	f, err := os.Open(path)
	if err != nil {
		return DummyUser{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	return decodeDummyUser(f, path)
}

func decodeDummyUser(r io.Reader, path string) (DummyUser, error) {
	var u DummyUser
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return DummyUser{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if u.LastName == "" {
		return DummyUser{}, fmt.Errorf("%s: LastName is required", path)
	}
	u.File = path
	return u, nil
}

// CreateUser creates the user defined in file, relative to the configured
// dummy users location.
func (b *Builder) CreateUser(file string) (Submission, error) {
	if file == "" {
		return b.skip("No user definition given"), nil
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.path(b.cfg.DummyUsers.Location), file)
	}
	u, err := readDummyUser(path)
	if err != nil {
		return Submission{}, err
	}
	line := fmt.Sprintf("sf org create user -f %s username=%s email=%s generatepassword=%t",
		quote(u.File), u.Username(), u.Username(), u.GeneratePassword)
	return b.submit(b.leaf("Create dummy user", line)), nil
}
