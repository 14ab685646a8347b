package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}

	categoryCmd.AddCommand(&cobra.Command{
		Use:   "create <path>",
		Short: "Create a category (and missing ancestors)",
		Args:  cobra.ExactArgs(1),
		Run:   runCategoryCreate,
	})
	categoryCmd.AddCommand(&cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a category and everything beneath it",
		Args:  cobra.ExactArgs(1),
		Run:   runCategoryRm,
	})
	categoryCmd.AddCommand(&cobra.Command{
		Use:   "describe <path> [description]",
		Short: "Set a category's description (empty clears it)",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCategoryDescribe,
	})

	RootCmd.AddCommand(categoryCmd)
}

func runCategoryCreate(cmd *cobra.Command, args []string) {
	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	if err := k.CreateCategory(cmd.Context(), args[0]); err != nil {
		exitErr("category create", err)
	}
	fmt.Printf("created %s\n", categoryLabel(args[0]))
}

func runCategoryRm(cmd *cobra.Command, args []string) {
	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	if err := k.DeleteCategory(cmd.Context(), args[0]); err != nil {
		exitErr("category rm", err)
	}
	fmt.Printf("removed %s\n", categoryLabel(args[0]))
}

func runCategoryDescribe(cmd *cobra.Command, args []string) {
	description := strings.Join(args[1:], " ")

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	if err := k.SetCategoryDescription(cmd.Context(), args[0], description); err != nil {
		exitErr("category describe", err)
	}
	if strings.TrimSpace(description) == "" {
		fmt.Printf("cleared description of %s\n", categoryLabel(args[0]))
	} else {
		fmt.Printf("described %s\n", categoryLabel(args[0]))
	}
}
