package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/entrhq/keep/pkg/memstore"
)

// FS is the local filesystem backend. It implements both IndexStorage and
// ContentStorage against a single store root directory.
type FS struct {
	root string
}

// NewFS opens (creating if necessary) a store root directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: abs root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: init store root %s: %w", abs, err)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute store root directory.
func (f *FS) Root() string {
	return f.root
}

// resolve maps a slash-separated relative path onto the store root and
// rejects anything that would escape it.
func (f *FS) resolve(relPath string) (string, error) {
	if relPath == "" {
		return f.root, nil
	}
	resolved := filepath.Join(f.root, filepath.FromSlash(relPath))
	if resolved != f.root && !strings.HasPrefix(resolved, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: path traversal detected for %q", relPath)
	}
	return resolved, nil
}

func (f *FS) indexPath(categoryPath string) (string, error) {
	if err := memstore.ValidateCategoryPath(categoryPath); err != nil {
		return "", err
	}
	dir, err := f.resolve(categoryPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, IndexFileName), nil
}

// ReadIndex implements IndexStorage.
func (f *FS) ReadIndex(_ context.Context, categoryPath string) ([]byte, error) {
	path, err := f.indexPath(categoryPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("storage: index for category %q: %w", categoryPath, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read index %s: %w", path, err)
	}
	return b, nil
}

// WriteIndex implements IndexStorage. The write goes to a temporary file in
// the same directory and lands with a single rename, so a concurrent reader
// never observes a half-written index.
func (f *FS) WriteIndex(_ context.Context, categoryPath string, data []byte) error {
	path, err := f.indexPath(categoryPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("storage: create category directory for %q: %w", categoryPath, err)
	}
	return atomicWrite(path, data)
}

// DeleteIndex implements IndexStorage.
func (f *FS) DeleteIndex(_ context.Context, categoryPath string) error {
	path, err := f.indexPath(categoryPath)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: index for category %q: %w", categoryPath, ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("storage: delete index %s: %w", path, err)
	}
	return nil
}

// ListIndexes implements IndexStorage.
func (f *FS) ListIndexes(_ context.Context, scope string) ([]string, error) {
	var out []string
	err := f.walkCategories(scope, func(categoryPath, dir string) error {
		if _, err := os.Stat(filepath.Join(dir, IndexFileName)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("storage: stat index in %s: %w", dir, err)
		}
		out = append(out, categoryPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile implements ContentStorage.
func (f *FS) ReadFile(_ context.Context, relPath string) ([]byte, error) {
	path, err := f.resolve(relPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("storage: file %q: %w", relPath, ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return b, nil
}

// WriteFile implements ContentStorage.
func (f *FS) WriteFile(_ context.Context, relPath string, data []byte) error {
	path, err := f.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("storage: create category directory for %s: %w", relPath, err)
	}
	return atomicWrite(path, data)
}

// DeleteFile implements ContentStorage.
func (f *FS) DeleteFile(_ context.Context, relPath string) error {
	path, err := f.resolve(relPath)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: file %q: %w", relPath, ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// ListMemoryFiles implements ContentStorage.
func (f *FS) ListMemoryFiles(_ context.Context, scope string) ([]string, error) {
	var out []string
	err := f.walkCategories(scope, func(categoryPath, dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("storage: list %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != MemoryFileExt {
				continue
			}
			out = append(out, joinRel(categoryPath, name))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListCategories implements ContentStorage.
func (f *FS) ListCategories(_ context.Context, scope string) ([]string, error) {
	var out []string
	err := f.walkCategories(scope, func(categoryPath, _ string) error {
		out = append(out, categoryPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteCategory implements ContentStorage.
func (f *FS) DeleteCategory(_ context.Context, categoryPath string) error {
	if categoryPath == memstore.RootPath {
		return memstore.ErrRootCategory
	}
	if err := memstore.ValidateCategoryPath(categoryPath); err != nil {
		return err
	}
	dir, err := f.resolve(categoryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: category %q: %w", categoryPath, ErrNotExist)
	} else if err != nil {
		return fmt.Errorf("storage: stat %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage: delete category %s: %w", dir, err)
	}
	return nil
}

// walkCategories visits every category directory under scope (inclusive),
// in lexical order, skipping dot-directories. Enumeration errors abort the
// walk; the engine's safety rules depend on no path being silently skipped.
func (f *FS) walkCategories(scope string, visit func(categoryPath, dir string) error) error {
	if err := memstore.ValidateCategoryPath(scope); err != nil {
		return err
	}
	scopeDir, err := f.resolve(scope)
	if err != nil {
		return err
	}
	if _, err := os.Stat(scopeDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: category %q: %w", scope, ErrNotExist)
	} else if err != nil {
		return fmt.Errorf("storage: stat %s: %w", scopeDir, err)
	}
	return filepath.WalkDir(scopeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("storage: walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != scopeDir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return fmt.Errorf("storage: rel %s: %w", path, err)
		}
		categoryPath := filepath.ToSlash(rel)
		if categoryPath == "." {
			categoryPath = memstore.RootPath
		}
		return visit(categoryPath, path)
	})
}

func joinRel(categoryPath, name string) string {
	if categoryPath == memstore.RootPath {
		return name
	}
	return categoryPath + "/" + name
}

// atomicWrite writes data next to the destination and renames it into
// place. This is the one load-bearing atomicity primitive in the store.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("storage: atomic rename %s: %w", path, err)
	}
	return nil
}
