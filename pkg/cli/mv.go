package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a memory to another slug path",
		Args:  cobra.ExactArgs(2),
		Run:   runMv,
	}
	cmd.Flags().BoolP("create-category", "c", false, "Create the target category if it does not exist")
	RootCmd.AddCommand(cmd)
}

func runMv(cmd *cobra.Command, args []string) {
	createCategory, _ := cmd.Flags().GetBool("create-category")

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	if err := k.Move(cmd.Context(), args[0], args[1], createCategory); err != nil {
		exitErr("mv", err)
	}
	fmt.Printf("moved %s -> %s\n", args[0], args[1])
}
