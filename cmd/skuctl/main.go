// Package main is skuctl, the skuforge command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skuforge/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "skuctl",
		Short: "skuforge - SKU codes and sequence allocation",
		Long: `skuctl computes SKU group codes, renders identifiers and assigns SKUs
to catalog items using the backends configured in the environment.`,
		SilenceUsage: true,
	}
	cli.BindGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.AbbrevCmd())
	rootCmd.AddCommand(cli.GroupCmd())
	rootCmd.AddCommand(cli.FormatCmd())
	rootCmd.AddCommand(cli.ParseCmd())
	rootCmd.AddCommand(cli.AssignCmd())
	rootCmd.AddCommand(cli.SequenceCmd())
	rootCmd.AddCommand(cli.CatalogCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
