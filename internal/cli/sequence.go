package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"skuforge/internal/core/sku"
)

// SequenceCmd inspects and moves group counters.
func SequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and adjust SKU group counters",
	}
	cmd.PersistentFlags().Duration("timeout", 30*time.Second, "timeout for backend calls")
	cmd.AddCommand(sequenceShowCmd(), sequenceAdvanceCmd())
	return cmd
}

func sequenceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [product-type] [vendor]",
		Short: "Print the last reserved number of a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), cmd)
			defer cancel()

			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			group := sku.NewGroupKey(args[0], args[1])
			name := a.Allocator.Config().Name(group)
			value, found, err := a.Store.Read(ctx, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if !found {
				value = a.Allocator.Config().Initial
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s last=%d next=%s\n",
				group, name, value, a.Formatter.Format(group, value+1))
			return nil
		},
	}
}

func sequenceAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance [product-type] [vendor] [value]",
		Short: "Move a group counter forward (never backward)",
		Long: `Sets the counter of a group to value if it is currently lower.
Use it after importing SKUs that were numbered elsewhere.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || value < 0 {
				return fmt.Errorf("value must be a non-negative integer, got %q", args[2])
			}

			ctx, cancel := withTimeout(cmd.Context(), cmd)
			defer cancel()

			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			group := sku.NewGroupKey(args[0], args[1])
			got, err := a.Allocator.Advance(ctx, group, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s last=%d\n", group, got)
			return nil
		},
	}
}
