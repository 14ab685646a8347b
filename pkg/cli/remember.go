package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/memstore/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember <category/slug> [content]",
		Short: "Store a memory",
		Long:  "Store a memory at a slug path. Content can be a positional arg or piped via stdin.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRemember,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("expires", "", "Expiry: RFC3339 timestamp or duration from now (e.g. 720h)")
	cmd.Flags().BoolP("create-category", "c", false, "Create the category if it does not exist")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	slugPath := args[0]
	tagsStr, _ := cmd.Flags().GetString("tags")
	expiresStr, _ := cmd.Flags().GetString("expires")
	createCategory, _ := cmd.Flags().GetBool("create-category")

	var body string
	if len(args) > 1 {
		body = strings.Join(args[1:], " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			body = string(b)
		}
	}
	if strings.TrimSpace(body) == "" {
		exitErr("remember", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	expiresAt, err := parseExpiry(expiresStr)
	if err != nil {
		exitErr("remember", err)
	}

	k, err := openKeeper()
	if err != nil {
		exitErr("open store", err)
	}

	err = k.Create(cmd.Context(), slugPath, keeper.CreateParams{
		Body:           body,
		Tags:           splitTags(tagsStr),
		ExpiresAt:      expiresAt,
		CreateCategory: createCategory,
	})
	if err != nil {
		exitErr("remember", err)
	}
	fmt.Printf("remembered %s\n", slugPath)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseExpiry accepts an absolute RFC3339 timestamp or a Go duration
// relative to now. Empty means no expiry.
func parseExpiry(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry %q: want RFC3339 or duration", s)
	}
	t := time.Now().UTC().Add(d)
	return &t, nil
}
