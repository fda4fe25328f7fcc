// Package walk lists workspace folders and files through an os.Root.
// Entries can't escape the root, even through symlinks.
package walk

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
)

// Entry is a file or a folder under a root.
type Entry struct {
	root *os.Root
	rel  string
	d    fs.DirEntry
}

func (e Entry) Name() string {
	return e.d.Name()
}

func (e Entry) IsDir() bool {
	return e.d.IsDir()
}

// returns the path of the entry, prefixed with the name of the root
func (e Entry) Path() string {
	return filepath.Join(e.root.Name(), e.rel)
}

// Rel is the path of the entry relative to the root.
func (e Entry) Rel() string {
	return e.rel
}

func (e Entry) Open() (io.ReadCloser, error) {
	return e.root.Open(e.rel)
}

// Contains reports whether the folder holds a regular file called name.
func (e Entry) Contains(name string) (bool, error) {
	if !e.d.IsDir() {
		return false, nil
	}
	info, err := e.root.Stat(filepath.Join(e.rel, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Dir yields the entries directly under root in lexical order. A root
// which is not a directory yields a single error.
func Dir(ctx context.Context, root *os.Root) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(Entry, error) bool) {
		list, err := fs.ReadDir(root.FS(), ".")
		if err != nil {
			yield(Entry{}, err)
			return
		}
		for _, d := range list {
			if ctx.Err() != nil {
				return
			}
			if !yield(Entry{root: root, rel: d.Name(), d: d}, nil) {
				return
			}
		}
	}
}

// Files recursively walks root and yields every regular file, or the error
// met reading a folder. Folders named in skip are not entered. Symlinks are
// not followed.
func Files(ctx context.Context, root *os.Root, skip ...string) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(Entry, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			if err != nil {
				if !yield(Entry{root: root, rel: path, d: d}, err) {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if path != "." && slices.Contains(skip, d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !yield(Entry{root: root, rel: filepath.FromSlash(path), d: d}, nil) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root.FS(), ".", fn)
	}
}
