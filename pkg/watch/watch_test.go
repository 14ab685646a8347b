package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New(t.TempDir(), func(context.Context, string) error { return nil })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

func TestScopeFor(t *testing.T) {
	w := newTestWatcher(t)
	for _, dir := range []string{"projects/keep", "projects/v1.0"} {
		if err := os.MkdirAll(filepath.Join(w.root, filepath.FromSlash(dir)), 0o750); err != nil {
			t.Fatal(err)
		}
	}
	// A directory the watcher tracked but that no longer exists on disk,
	// as after a Remove event.
	w.dirs[filepath.Join(w.root, "removed")] = struct{}{}

	tests := []struct {
		name     string
		path     string
		want     string
		relevant bool
	}{
		{"memory file in nested category", "projects/keep/notes.md", "projects/keep", true},
		{"memory file at root", "scratch.md", "", true},
		{"index file ignored", "projects/.index.yaml", "", false},
		{"temp file ignored", "projects/.index.yaml.1234.tmp", "", false},
		{"dot directory ignored", ".git/objects/ab", "", false},
		{"non-memory file ignored", "projects/diagram.png", "", false},
		{"directory maps to parent", "projects/keep", "projects", true},
		{"dotted directory name is still a directory", "projects/v1.0", "projects", true},
		{"tracked directory gone from disk", "removed", "", true},
		{"outside root ignored", "../elsewhere/x.md", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: filepath.Join(w.root, filepath.FromSlash(tt.path))}
			got, relevant := w.scopeFor(event)
			if relevant != tt.relevant {
				t.Fatalf("scopeFor(%q) relevant = %v, want %v", tt.path, relevant, tt.relevant)
			}
			if relevant && got != tt.want {
				t.Errorf("scopeFor(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestForgetDirDropsDescendants(t *testing.T) {
	w := newTestWatcher(t)
	keep := filepath.Join(w.root, "other")
	gone := filepath.Join(w.root, "a")
	for _, d := range []string{keep, gone, filepath.Join(gone, "b"), filepath.Join(gone, "b", "c")} {
		w.dirs[d] = struct{}{}
	}

	w.forgetDir(gone)

	if len(w.dirs) != 1 {
		t.Errorf("expected only one tracked dir, got %v", w.dirs)
	}
	if _, ok := w.dirs[keep]; !ok {
		t.Error("unrelated directory forgotten")
	}
}

func TestCollapseScopes(t *testing.T) {
	tests := []struct {
		name  string
		dirty []string
		want  []string
	}{
		{"empty", nil, nil},
		{"single", []string{"a/b"}, []string{"a/b"}},
		{"descendant folds into ancestor", []string{"a", "a/b", "a/b/c"}, []string{"a"}},
		{"siblings stay separate", []string{"a/b", "a/c"}, []string{"a/b", "a/c"}},
		{"root covers everything", []string{"", "a", "b/c"}, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirty := map[string]struct{}{}
			for _, s := range tt.dirty {
				dirty[s] = struct{}{}
			}
			got := collapseScopes(dirty)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("collapseScopes(%v) = %v, want %v", tt.dirty, got, tt.want)
			}
		})
	}
}
