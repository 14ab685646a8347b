package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/memstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list [category]",
		Short: "List a category's memories and subcategories",
		Args:  cobra.MaximumNArgs(1),
		Run:   runList,
	}
	cmd.Flags().Bool("recent", false, "Sort memories by update time, newest first")
	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	categoryPath := memstore.RootPath
	if len(args) > 0 {
		categoryPath = args[0]
	}
	recent, _ := cmd.Flags().GetBool("recent")

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	idx, err := k.List(cmd.Context(), categoryPath)
	if err != nil {
		exitErr("list", err)
	}

	fmt.Println(headerStyle.Render(categoryLabel(categoryPath)))

	if len(idx.Subcategories) > 0 {
		rows := [][]string{{headerStyle.Render("SUBCATEGORY"), headerStyle.Render("MEMORIES"), headerStyle.Render("DESCRIPTION")}}
		for _, sub := range idx.Subcategories {
			desc := mutedStyle.Render("-")
			if sub.Description != nil {
				desc = *sub.Description
			}
			rows = append(rows, []string{sub.Path, fmt.Sprintf("%d", sub.MemoryCount), desc})
		}
		fmt.Println()
		fmt.Print(renderTable(rows))
	}

	memories := idx.Memories
	if recent {
		memories = idx.SortedByUpdated()
	}
	if len(memories) > 0 {
		rows := [][]string{{headerStyle.Render("SLUG"), headerStyle.Render("CREATED"), headerStyle.Render("UPDATED"), headerStyle.Render("EXPIRES"), headerStyle.Render("TAGS")}}
		for _, m := range memories {
			rows = append(rows, []string{
				m.Slug,
				formatTime(m.CreatedAt),
				formatOptionalTime(m.UpdatedAt),
				formatOptionalTime(m.ExpiresAt),
				formatTags(m.Tags),
			})
		}
		fmt.Println()
		fmt.Print(renderTable(rows))
	}

	if len(idx.Subcategories) == 0 && len(memories) == 0 {
		fmt.Println(mutedStyle.Render("(empty)"))
	}
}
