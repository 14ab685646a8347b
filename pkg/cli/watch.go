package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/logging"
	"github.com/entrhq/keep/pkg/watch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the store and reindex changed categories",
		Long: "Watch the store root for memory file changes and run a scoped " +
			"reindex for each affected category subtree. Runs until interrupted.",
		Args: cobra.NoArgs,
		Run:  runWatch,
	}
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before reindexing a change burst")
	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, _ []string) {
	debounce, _ := cmd.Flags().GetDuration("debounce")

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}

	w, err := watch.New(k.Root(), func(ctx context.Context, scope string) error {
		res, err := k.Reindex(ctx, scope)
		if err != nil {
			return err
		}
		fmt.Printf("reindexed %s: %d indexes, %d memories\n", categoryLabel(res.Scope), res.Rebuilt, res.Memories)
		return nil
	})
	if err != nil {
		exitErr("watch", err)
	}
	w.SetDebounce(debounce)
	if logger, err := logging.NewLogger("watch"); err == nil {
		w.SetLogger(logger)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("watching %s\n", k.Root())
	if err := w.Run(ctx); err != nil {
		exitErr("watch", err)
	}
}
