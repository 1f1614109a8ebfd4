package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"skuforge/internal/domain/assignment"
)

// CatalogCmd manages the local catalog tables.
func CatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the catalog backend",
	}
	cmd.PersistentFlags().Duration("timeout", 5*time.Minute, "timeout for backend calls")
	cmd.AddCommand(catalogImportCmd(), catalogMissingCmd())
	return cmd
}

func catalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.json]",
		Short: "Load items from a JSON array into the postgres catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), cmd)
			defer cancel()

			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.Products == nil {
				return errors.New("catalog import needs DATABASE_URL and a postgres backend")
			}
			for _, item := range items {
				if err := a.Products.SaveItem(ctx, item); err != nil {
					return fmt.Errorf("save %s: %w", item.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d item(s)\n", len(items))
			return nil
		},
	}
}

func catalogMissingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List items that have variants without SKUs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), cmd)
			defer cancel()

			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			items, err := a.Catalog.ListItemsMissingIdentifiers(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items without SKUs")
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(out, "%-40s %-8s %s / %s\n", it.ID, it.Group(), it.ProductType, it.Vendor)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of items")
	return cmd
}

func readItems(path string) ([]assignment.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []assignment.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("item %d has no id", i)
		}
	}
	return items, nil
}
