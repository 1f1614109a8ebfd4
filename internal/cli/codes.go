package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"skuforge/internal/core/sku"
)

// AbbrevCmd prints the 3-character code of a label.
func AbbrevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abbrev [label]",
		Short: "Print the 3-character code of a vendor or product type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), sku.Abbreviate(args[0]))
			return nil
		},
	}
}

// GroupCmd prints the group key of a product type and vendor.
func GroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "group [product-type] [vendor]",
		Short: "Print the SKU group of a product type and vendor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), sku.NewGroupKey(args[0], args[1]))
			return nil
		},
	}
}

// FormatCmd renders an identifier.
func FormatCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "format [group] [number]",
		Short: "Render the identifier for a group and sequence number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := sku.ParseVersion(version)
			if err != nil {
				return err
			}
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || n < 1 {
				return fmt.Errorf("number must be a positive integer, got %q", args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), sku.NewFormatter(v).Format(sku.GroupKey(args[0]), n))
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "format", "hex", "identifier format (hex, decimal)")
	return cmd
}

// ParseCmd splits an identifier into group and number.
func ParseCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "parse [identifier]",
		Short: "Print the group and sequence number of an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := sku.ParseVersion(version)
			if err != nil {
				return err
			}
			group, n, err := sku.NewFormatter(v).Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "group=%s number=%d\n", group, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "format", "hex", "identifier format (hex, decimal)")
	return cmd
}
