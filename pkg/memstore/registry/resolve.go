package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RegistryFileName is the registry file name under a .keep directory.
const RegistryFileName = "stores.yaml"

// Context carries the two registry file paths a resolution consults. It is
// built once at process start and threaded through explicitly; resolution
// never reaches for ambient global state.
type Context struct {
	LocalPath  string
	GlobalPath string
}

// DefaultContext returns the conventional registry locations: the local
// registry in the working directory's .keep, the global one in the user's.
func DefaultContext() (Context, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Context{}, fmt.Errorf("registry: working directory: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Context{}, fmt.Errorf("registry: home directory: %w", err)
	}
	return Context{
		LocalPath:  filepath.Join(wd, ".keep", RegistryFileName),
		GlobalPath: filepath.Join(home, ".keep", RegistryFileName),
	}, nil
}

// ResolveOptions configures Resolve.
type ResolveOptions struct {
	// StrictLocal disallows falling back from the local registry to the
	// global one.
	StrictLocal bool
}

// Resolve maps a store name to its registered entry. The local registry
// always wins when it defines the name. Without the name locally:
// StrictLocal fails with ErrResolution; otherwise the global registry is
// consulted, where a missing registry file is ErrGlobalMissing (distinct
// from a loadable registry that simply lacks the name, which is
// ErrResolution). Resolution never mutates either registry.
func (c Context) Resolve(name string, opts ResolveOptions) (Entry, error) {
	local, err := LoadOrEmpty(c.LocalPath)
	if err != nil {
		return Entry{}, err
	}
	if e, ok := local.Lookup(name); ok {
		return e, nil
	}
	if opts.StrictLocal {
		return Entry{}, fmt.Errorf("%w: %q (strict local)", ErrResolution, name)
	}

	global, err := Load(c.GlobalPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, fmt.Errorf("%w: cannot resolve %q", ErrGlobalMissing, name)
	}
	if err != nil {
		return Entry{}, err
	}
	e, ok := global.Lookup(name)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrResolution, name)
	}
	return e, nil
}

// Registry opens the local or global registry for mutation, treating a
// missing file as empty.
func (c Context) Registry(global bool) (*Registry, error) {
	if global {
		return LoadOrEmpty(c.GlobalPath)
	}
	return LoadOrEmpty(c.LocalPath)
}
