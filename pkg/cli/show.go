package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show <category/slug>",
		Short: "Print a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}
	cmd.Flags().BoolP("body-only", "b", false, "Print only the body")
	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	bodyOnly, _ := cmd.Flags().GetBool("body-only")

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	m, err := k.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}

	if bodyOnly {
		fmt.Println(strings.TrimRight(m.Body, "\n"))
		return
	}

	fmt.Println(headerStyle.Render(args[0]))
	fmt.Printf("created:  %s\n", formatTime(m.Meta.CreatedAt))
	fmt.Printf("updated:  %s\n", formatOptionalTime(m.Meta.UpdatedAt))
	fmt.Printf("expires:  %s\n", formatOptionalTime(m.Meta.ExpiresAt))
	fmt.Printf("tags:     %s\n", formatTags(m.Meta.Tags))
	fmt.Println()
	fmt.Println(strings.TrimRight(m.Body, "\n"))
}
