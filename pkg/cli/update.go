package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/memstore/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <category/slug> [content]",
		Short: "Update an existing memory",
		Long: "Rewrite a memory's body, tags, or expiry. Omitted fields are " +
			"left unchanged; the update timestamp is always refreshed.",
		Args: cobra.MinimumNArgs(1),
		Run:  runUpdate,
	}
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags (replaces existing)")
	cmd.Flags().String("expires", "", "Expiry: RFC3339 timestamp or duration from now")
	cmd.Flags().Bool("clear-expiry", false, "Remove the expiry")
	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	slugPath := args[0]
	tagsStr, _ := cmd.Flags().GetString("tags")
	expiresStr, _ := cmd.Flags().GetString("expires")
	clearExpiry, _ := cmd.Flags().GetBool("clear-expiry")

	var body *string
	if len(args) > 1 {
		s := strings.Join(args[1:], " ")
		body = &s
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			s := string(b)
			body = &s
		}
	}

	expiresAt, err := parseExpiry(expiresStr)
	if err != nil {
		exitErr("update", err)
	}
	if clearExpiry && expiresAt != nil {
		exitErr("update", fmt.Errorf("--expires and --clear-expiry are mutually exclusive"))
	}

	var tags []string
	if cmd.Flags().Changed("tags") {
		tags = splitTags(tagsStr)
		if tags == nil {
			tags = []string{}
		}
	}

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}
	err = k.Update(cmd.Context(), slugPath, keeper.UpdateParams{
		Body:        body,
		Tags:        tags,
		ExpiresAt:   expiresAt,
		ClearExpiry: clearExpiry,
	})
	if err != nil {
		exitErr("update", err)
	}
	fmt.Printf("updated %s\n", slugPath)
}
