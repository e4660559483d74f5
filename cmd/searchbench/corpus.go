package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/dataset"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/store"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/validator"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Import, export and inspect the product corpus",
}

var corpusImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert products from a JSON or YAML dataset file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := dataset.ReadFile(args[0])
		if err != nil {
			return err
		}
		ds := f.Dataset
		if name, _ := cmd.Flags().GetString("dataset"); name != "" {
			if ds, err = store.ParseDataset(name); err != nil {
				return err
			}
		}
		kept, rejected := validator.FilterCorpus(f.Products)
		for _, r := range rejected {
			slog.Warn("product skipped", "index", r.Index, "id", r.ID, "reason", r.Reason)
		}

		st, client, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		n, err := st.UpsertProducts(ctx, ds, kept)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d products into %s (%d skipped)\n", n, ds, len(rejected))
		return nil
	},
}

var corpusExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a dataset from the store to a JSON or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("dataset")
		limit, _ := cmd.Flags().GetInt("limit")
		ds, err := store.ParseDataset(name)
		if err != nil {
			return err
		}
		st, client, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		products, err := st.LoadDataset(ctx, ds, limit)
		if err != nil {
			return err
		}
		if err := dataset.WriteFile(args[0], &dataset.File{Dataset: ds, Products: products}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d products from %s to %s\n", len(products), ds, args[0])
		return nil
	},
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show product, brand and category counts per dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")
		st, client, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		for _, s := range stats {
			fmt.Fprintf(out, "%s: %d products, %d brands\n", s.Dataset, s.Products, s.Brands)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, c := range s.Categories {
				fmt.Fprintf(tw, "  %s\t%d\n", c.Category, c.Count)
			}
			tw.Flush()
		}
		return nil
	},
}

func init() {
	corpusImportCmd.Flags().String("dataset", "", "override the dataset named in the file: api or social")
	corpusExportCmd.Flags().String("dataset", "api", "dataset to export: api or social")
	corpusExportCmd.Flags().Int("limit", 0, "export at most this many products (0: all)")
	corpusStatsCmd.Flags().Bool("json", false, "output statistics as JSON")

	corpusCmd.AddCommand(corpusImportCmd, corpusExportCmd, corpusStatsCmd)
	rootCmd.AddCommand(corpusCmd)
}
