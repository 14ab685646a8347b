package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "rm <category/slug>",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	})
}

func runRm(cmd *cobra.Command, args []string) {
	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	if err := k.Delete(cmd.Context(), args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf("removed %s\n", args[0])
}
