package workflow

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dxmate/dxmate/internal/parallel"
	"github.com/dxmate/dxmate/internal/walk"
)

// SoqlTitle is asked to pick the query of an export.
const SoqlTitle = "Select SOQL file to use"

const maxSoqlFiles = 50

// folders never searched for queries
var skipDirs = []string{".git", ".sf", ".sfdx", "node_modules"}

// SoqlFile is a query saved in the workspace.
type SoqlFile struct {
	Name  string
	Path  string // relative to the workspace
	Query string
}

// SoqlFiles finds the .soql files of the workspace, sorted by path. At most
// 50 are returned.
func (b *Builder) SoqlFiles(ctx context.Context) ([]SoqlFile, error) {
	root, err := openRoot(b.workspace)
	if root == nil {
		return nil, err
	}
	defer func() {
		_ = root.Close()
	}()

	read := func(_ context.Context, e walk.Entry) (SoqlFile, error) {
		if filepath.Ext(e.Name()) != ".soql" {
			return SoqlFile{}, nil
		}
		f, err := e.Open()
		if err != nil {
			return SoqlFile{}, err
		}
		defer func() {
			_ = f.Close()
		}()
		q, err := io.ReadAll(f)
		if err != nil {
			return SoqlFile{}, fmt.Errorf("reading %s: %w", e.Path(), err)
		}
		return SoqlFile{Name: e.Name(), Path: e.Rel(), Query: strings.TrimSpace(string(q))}, nil
	}

	files, err := parallel.Collect(parallel.NewMap(ctx, b.scanLimit, read).Iter(walk.Files(ctx, root, skipDirs...)))
	files = slices.DeleteFunc(files, func(f SoqlFile) bool { return f.Path == "" })
	slices.SortFunc(files, func(x, y SoqlFile) int { return cmp.Compare(x.Path, y.Path) })
	if len(files) > maxSoqlFiles {
		files = files[:maxSoqlFiles]
	}
	return files, err
}

// ExportSoql exports the records of the query saved in file, a workspace
// relative path or the name of a .soql file, into dir. An empty file lets
// the user pick one.
func (b *Builder) ExportSoql(ctx context.Context, file, dir string) (Submission, error) {
	files, err := b.SoqlFiles(ctx)
	if err != nil {
		return Submission{}, err
	}
	if len(files) == 0 {
		return b.skip("No query files found in workspace"), nil
	}

	if file == "" {
		if b.prompter == nil {
			return Submission{}, fmt.Errorf("query file required, found %d in workspace", len(files))
		}
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		file, err = b.prompter.Choose(ctx, SoqlTitle, paths...)
		if err != nil {
			return Submission{}, err
		}
		if file == "" {
			return b.skip("No query file selected"), nil
		}
	}

	idx := slices.IndexFunc(files, func(f SoqlFile) bool {
		return f.Path == filepath.Clean(file) || f.Name == file
	})
	if idx < 0 {
		return Submission{}, fmt.Errorf("no query file %q in workspace", file)
	}
	return b.ExportData(files[idx].Query, dir), nil
}
