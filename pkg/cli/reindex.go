package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/reindex"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "reindex [category]",
		Short: "Rebuild category indexes from the memory files",
		Long: "Rebuild every category index under the given category from the " +
			"memory files on disk, removing stale index files. Without an " +
			"argument the whole store is reindexed.",
		Args: cobra.MaximumNArgs(1),
		Run:  runReindex,
	})
}

func runReindex(cmd *cobra.Command, args []string) {
	scope := memstore.RootPath
	if len(args) > 0 {
		scope = args[0]
	}

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}

	res, err := k.Reindex(cmd.Context(), scope)
	if err != nil {
		var cleanup *reindex.CleanupError
		if !errors.As(err, &cleanup) {
			exitErr("reindex", err)
		}
		// The rebuild itself succeeded; report it, then the leftovers.
		printResult(res)
		printWarn("%d stale index file(s) could not be removed:", len(cleanup.Failures))
		for path, ferr := range cleanup.Failures {
			printWarn("  %s: %v", categoryLabel(path), ferr)
		}
		os.Exit(1)
	}
	printResult(res)
}

func printResult(res *reindex.Result) {
	fmt.Printf("reindexed %s: %d indexes, %d memories", categoryLabel(res.Scope), res.Rebuilt, res.Memories)
	if len(res.Removed) > 0 {
		fmt.Printf(", %d stale removed", len(res.Removed))
	}
	fmt.Println()
}
