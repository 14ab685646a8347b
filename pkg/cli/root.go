// Package cli implements the keep CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/logging"
	"github.com/entrhq/keep/pkg/memstore/keeper"
	"github.com/entrhq/keep/pkg/memstore/registry"
)

var (
	rootFlag    string
	storeFlag   string
	strictLocal bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "keep",
	Short: "Filesystem-backed memory store with derived category indexes",
	Long: "keep persists atomic notes as markdown files under a category " +
		"directory tree and maintains a derived YAML index per category. " +
		"Indexes are rebuildable caches; the files are the source of truth.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&rootFlag, "root", "r", "", "Store root path (overrides --store)")
	RootCmd.PersistentFlags().StringVarP(&storeFlag, "store", "s", "", "Named store from the registry")
	RootCmd.PersistentFlags().BoolVar(&strictLocal, "strict-local", false, "Resolve --store against the local registry only")
}

// storeRoot resolves the store root from flags: --root wins, then --store
// via the registry, then $KEEP_ROOT, then the working directory.
func storeRoot() (string, error) {
	if rootFlag != "" {
		return rootFlag, nil
	}
	if storeFlag != "" {
		rc, err := registry.DefaultContext()
		if err != nil {
			return "", err
		}
		entry, err := rc.Resolve(storeFlag, registry.ResolveOptions{StrictLocal: strictLocal})
		if err != nil {
			return "", err
		}
		return entry.Path, nil
	}
	if env := os.Getenv("KEEP_ROOT"); env != "" {
		return env, nil
	}
	return os.Getwd()
}

func openKeeper() (*keeper.Keeper, error) {
	root, err := storeRoot()
	if err != nil {
		return nil, err
	}
	k, err := keeper.Open(root)
	if err != nil {
		return nil, err
	}
	if logger, err := logging.NewLogger("keep"); err == nil {
		k.SetLogger(logger)
	}
	return k, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
