package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the master catalog",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			items, err := a.Service.ListCatalog(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}

			const stampLayout = "2006-01-02 15:04"
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				created := ""
				if !item.CreatedAt.IsZero() {
					created = item.CreatedAt.Local().Format(stampLayout)
				}
				rows = append(rows, []string{item.Key, item.Name, item.Description, item.HSNCode, created})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Item Code", "Name", "Description", "HSN", "Created"},
				rows,
				nil,
			))
			fmt.Fprintf(out, "%d items\n", len(items))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")
	return cmd
}
