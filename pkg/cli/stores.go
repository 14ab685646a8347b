package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/entrhq/keep/pkg/memstore/registry"
)

func init() {
	storesCmd := &cobra.Command{
		Use:   "stores",
		Short: "Manage the store name registry",
		Long: "Store names resolve through two registries: a local one in the " +
			"working directory's .keep/ and a global one in ~/.keep/. Local " +
			"entries shadow global ones.",
	}
	storesCmd.PersistentFlags().BoolP("global", "g", false, "Operate on the global registry")

	addCmd := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a store name",
		Args:  cobra.ExactArgs(2),
		Run:   runStoresAdd,
	}
	addCmd.Flags().StringP("description", "d", "", "Optional store description")
	storesCmd.AddCommand(addCmd)

	storesCmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Unregister a store name",
		Args:  cobra.ExactArgs(1),
		Run:   runStoresRm,
	})
	storesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered stores",
		Args:  cobra.NoArgs,
		Run:   runStoresList,
	})

	RootCmd.AddCommand(storesCmd)
}

func openRegistry(cmd *cobra.Command) (*registry.Registry, bool) {
	global, _ := cmd.Flags().GetBool("global")
	rc, err := registry.DefaultContext()
	if err != nil {
		exitErr("stores", err)
	}
	reg, err := rc.Registry(global)
	if err != nil {
		exitErr("stores", err)
	}
	return reg, global
}

func runStoresAdd(cmd *cobra.Command, args []string) {
	name, path := args[0], args[1]
	description, _ := cmd.Flags().GetString("description")

	abs, err := filepath.Abs(path)
	if err != nil {
		exitErr("stores add", err)
	}

	reg, global := openRegistry(cmd)
	entry := registry.Entry{Path: abs}
	if description != "" {
		entry.Description = &description
	}
	reg.Set(name, entry)
	if err := reg.Save(); err != nil {
		exitErr("stores add", err)
	}
	fmt.Printf("registered %s -> %s (%s)\n", name, abs, registryScope(global))
}

func runStoresRm(cmd *cobra.Command, args []string) {
	reg, global := openRegistry(cmd)
	if !reg.Remove(args[0]) {
		exitErr("stores rm", fmt.Errorf("store %q not registered (%s)", args[0], registryScope(global)))
	}
	if err := reg.Save(); err != nil {
		exitErr("stores rm", err)
	}
	fmt.Printf("unregistered %s (%s)\n", args[0], registryScope(global))
}

func runStoresList(cmd *cobra.Command, _ []string) {
	reg, global := openRegistry(cmd)
	names := reg.Names()
	if len(names) == 0 {
		fmt.Printf("no stores registered (%s)\n", registryScope(global))
		return
	}

	rows := [][]string{{headerStyle.Render("NAME"), headerStyle.Render("PATH"), headerStyle.Render("DESCRIPTION")}}
	for _, name := range names {
		entry, _ := reg.Lookup(name)
		desc := mutedStyle.Render("-")
		if entry.Description != nil {
			desc = *entry.Description
		}
		rows = append(rows, []string{name, entry.Path, desc})
	}
	fmt.Print(renderTable(rows))
}

func registryScope(global bool) string {
	if global {
		return "global"
	}
	return "local"
}
