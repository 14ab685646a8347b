// Package registry maps logical store names to physical store roots. Two
// registry files participate in resolution: a local one (closest to the
// working directory) and a global per-user one; the local always wins when
// it defines a name.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrDuplicateName is returned at load time when a registry file defines
// the same store name twice. Plain YAML decoding would silently keep the
// last entry; that silence has hidden misconfigured stores before, so the
// loader inspects the document structure instead.
var ErrDuplicateName = errors.New("registry: duplicate store name")

// ErrResolution is returned when a store name cannot be resolved in the
// registries consulted.
var ErrResolution = errors.New("registry: store name not registered")

// ErrGlobalMissing is returned when resolution has to fall back to the
// global registry and no global registry file exists at all. It is distinct
// from ErrResolution, which means the registry loaded fine but lacks the
// name.
var ErrGlobalMissing = errors.New("registry: global registry not found")

// Entry is one registered store. Description is nil when never set, which
// is distinct from an explicitly empty description.
type Entry struct {
	Path        string  `yaml:"path"`
	Description *string `yaml:"description,omitempty"`
}

// Registry is one loaded registry file: a name -> Entry mapping plus the
// path it round-trips to.
type Registry struct {
	path    string
	entries map[string]Entry
}

// Load reads a registry file. A missing file is an error wrapping
// fs.ErrNotExist; callers that treat "no file" as "empty registry" use
// LoadOrEmpty.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("registry: %s: %w", path, err)
		}
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", path, err)
	}
	return &Registry{path: path, entries: entries}, nil
}

// LoadOrEmpty reads a registry file, treating a missing file as an empty
// registry at that path.
func LoadOrEmpty(path string) (*Registry, error) {
	r, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Registry{path: path, entries: map[string]Entry{}}, nil
	}
	return r, err
}

// decodeEntries parses the name -> Entry mapping, rejecting duplicate keys.
func decodeEntries(raw []byte) (map[string]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	entries := map[string]Entry{}
	if len(doc.Content) == 0 {
		return entries, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping of store names")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		name := keyNode.Value
		if _, seen := entries[name]; seen {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		var e Entry
		if err := valNode.Decode(&e); err != nil {
			return nil, fmt.Errorf("entry %q: %w", name, err)
		}
		if e.Path == "" {
			return nil, fmt.Errorf("entry %q: missing path", name)
		}
		entries[name] = e
	}
	return entries, nil
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Set upserts the entry for name.
func (r *Registry) Set(name string, e Entry) {
	r.entries[name] = e
}

// Remove deletes the entry for name and reports whether it was present.
func (r *Registry) Remove(name string) bool {
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Save writes the registry back to its file atomically, creating the
// parent directory if needed.
func (r *Registry) Save() error {
	data, err := yaml.Marshal(r.entries)
	if err != nil {
		return fmt.Errorf("registry: encode %s: %w", r.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("registry: create directory for %s: %w", r.path, err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("registry: atomic rename %s: %w", r.path, err)
	}
	return nil
}
