package walk_test

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dxmate/dxmate/internal/walk"
)

func TestDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "plan.json"), []byte("[]"), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "accounts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts", "plan.json"), []byte("[]"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes", "plan.json"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "escape"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(outside, "plan.json"), filepath.Join(dir, "escape", "plan.json")))

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	type then struct {
		dir  bool
		plan bool
	}
	got := map[string]then{}
	for e, err := range walk.Dir(t.Context(), root) {
		require.NoError(t, err)
		ok, err := e.Contains("plan.json")
		if e.Name() == "escape" {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		got[e.Name()] = then{dir: e.IsDir(), plan: ok}
		require.Equal(t, filepath.Join(dir, e.Name()), e.Path())
	}
	require.Equal(t, map[string]then{
		"accounts":  {dir: true, plan: true},
		"notes":     {dir: true},
		"readme.md": {},
	}, got)

	t.Run("open", func(t *testing.T) {
		for e, err := range walk.Dir(t.Context(), root) {
			require.NoError(t, err)
			if e.Name() != "readme.md" {
				continue
			}
			f, err := e.Open()
			require.NoError(t, err)
			b, err := io.ReadAll(f)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			require.Equal(t, "hello", string(b))
		}
	})

	t.Run("break", func(t *testing.T) {
		n := 0
		for range walk.Dir(t.Context(), root) {
			n++
			break
		}
		require.Equal(t, 1, n)
	})
}

func TestDir_Closed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), nil, 0o644))
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	require.NoError(t, root.Close())

	var errs int
	for _, err := range walk.Dir(t.Context(), root) {
		require.Error(t, err)
		errs++
	}
	require.Equal(t, 1, errs)
}

func TestFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, path := range []string{
		"accounts.soql",
		filepath.Join("scripts", "soql", "contacts.soql"),
		filepath.Join("node_modules", "pkg", "skipped.soql"),
		filepath.Join(".sfdx", "hidden.soql"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, filepath.Dir(path)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, path), []byte("SELECT Id FROM Account"), 0o644))
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "accounts.soql"), filepath.Join(dir, "link.soql")))

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	var got []string
	for e, err := range walk.Files(t.Context(), root, "node_modules", ".sfdx") {
		require.NoError(t, err)
		require.False(t, e.IsDir())
		require.Equal(t, filepath.Join(dir, e.Rel()), e.Path())
		got = append(got, e.Rel())
	}
	slices.Sort(got)
	require.Equal(t, []string{
		"accounts.soql",
		filepath.Join("scripts", "soql", "contacts.soql"),
	}, got)

	t.Run("open", func(t *testing.T) {
		for e, err := range walk.Files(t.Context(), root, "node_modules", ".sfdx") {
			require.NoError(t, err)
			if e.Name() != "contacts.soql" {
				continue
			}
			f, err := e.Open()
			require.NoError(t, err)
			b, err := io.ReadAll(f)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			require.Equal(t, "SELECT Id FROM Account", string(b))
		}
	})
}
