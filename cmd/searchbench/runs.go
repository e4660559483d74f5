package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved evaluation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent saved runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		st, client, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tDATASET\tSTARTED\tDURATION\tQUERIES\tPRODUCTS\tBEST")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				r.RunID, r.Dataset, r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond),
				r.Queries, r.Products, r.BestAlgorithm)
		}
		return tw.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a saved run's report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")
		st, client, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		report, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "number of runs to list")
	runsShowCmd.Flags().Bool("json", false, "print the full report as JSON")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
