package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/memstore"
	"github.com/entrhq/keep/pkg/memstore/prune"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prune [category]",
		Short: "Remove expired memories",
		Long: "Walk the indexes under the given category and remove memories " +
			"whose expiry has passed. Without an argument the whole store is " +
			"considered.",
		Args: cobra.MaximumNArgs(1),
		Run:  runPrune,
	}
	cmd.Flags().BoolP("dry-run", "n", false, "Report what would be pruned without deleting")
	cmd.Flags().StringP("match", "m", "", "Only prune slugs matching this glob pattern")
	RootCmd.AddCommand(cmd)
}

func runPrune(cmd *cobra.Command, args []string) {
	scope := memstore.RootPath
	if len(args) > 0 {
		scope = args[0]
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	match, _ := cmd.Flags().GetString("match")

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}

	res, err := k.Prune(cmd.Context(), scope, prune.Options{DryRun: dryRun, Match: match})
	if err != nil {
		exitErr("prune", err)
	}

	if len(res.Candidates) == 0 {
		fmt.Printf("nothing expired under %s\n", categoryLabel(res.Scope))
		return
	}

	if res.DryRun {
		fmt.Printf("would prune %d memories:\n", len(res.Candidates))
		for _, c := range res.Candidates {
			fmt.Printf("  %s %s\n", c.SlugPath, mutedStyle.Render("expired "+formatTime(c.ExpiresAt)))
		}
		return
	}

	failed := res.Failed()
	fmt.Printf("pruned %d of %d expired memories\n", len(res.Outcomes)-len(failed), len(res.Candidates))
	if len(failed) > 0 {
		for _, o := range failed {
			printWarn("  %s: %v", o.SlugPath, o.Err)
		}
		os.Exit(1)
	}
}
