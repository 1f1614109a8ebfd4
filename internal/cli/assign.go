package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appctx "skuforge/internal/core/context"
	"skuforge/internal/domain/assignment"
)

// AssignCmd assigns SKUs to items through the configured backends.
func AssignCmd() *cobra.Command {
	var force, asJSON bool
	cmd := &cobra.Command{
		Use:   "assign [item-id...]",
		Short: "Assign SKUs to catalog items",
		Long: `Assigns SKUs to every variant without one (or to all variants with --force),
using the sequence and catalog backends from the environment.
IDs may also be passed comma-separated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := appctx.WithTrace(cmd.Context(), appctx.NewTraceContext())
			a, cleanup, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report := a.Service.AssignBatch(ctx, splitIDs(args), force)
			if err := printReport(cmd, report, asJSON); err != nil {
				return err
			}
			return report.Err()
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing SKUs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func splitIDs(args []string) []string {
	var ids []string
	for _, a := range args {
		ids = append(ids, strings.Split(a, ",")...)
	}
	return assignment.NormalizeIDs(ids)
}

func printReport(cmd *cobra.Command, report *assignment.BatchReport, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, r := range report.Records {
		fmt.Fprintf(out, "%-40s %-8s", r.ItemID, r.Outcome)
		if r.Group != "" {
			fmt.Fprintf(out, " %s", r.Group)
		}
		if r.Message != "" {
			fmt.Fprintf(out, " %s", r.Message)
		}
		fmt.Fprintln(out)
		for _, ch := range r.Changes {
			prev := ch.PreviousSKU
			if prev == "" {
				prev = "-"
			}
			fmt.Fprintf(out, "  %s: %s -> %s\n", ch.TargetID, prev, ch.SKU)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
	}
	fmt.Fprintf(out, "updated %d variant(s), %d error(s)\n", report.Updated, len(report.Errors))
	return nil
}
