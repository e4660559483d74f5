package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/validator"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the corpus with every configured algorithm",
	Long: `Search fits each configured scorer on the selected corpus and prints the
top results of every algorithm side by side with its search time.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if err := validator.ValidateQuery(query); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if err := validator.ValidateLimit(limit); err != nil {
			return err
		}
		algorithms, _ := cmd.Flags().GetStringSlice("algorithm")
		withStats, _ := cmd.Flags().GetBool("stats")
		asJSON, _ := cmd.Flags().GetBool("json")

		reg, err := registryFromConfig(cfg, algorithms)
		if err != nil {
			return err
		}
		corpus, _, err := loadCorpus(cmd)
		if err != nil {
			return err
		}
		fitted, err := comparison.Fit(cmd.Context(), reg, corpus, nil)
		if err != nil {
			return err
		}
		results := fitted.Search(query, limit, withStats)

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		for _, res := range results {
			fmt.Fprintf(out, "== %s (%.2f ms)\n", res.Algorithm, float64(res.SearchTime.Microseconds())/1000)
			if res.Error != "" {
				fmt.Fprintf(out, "   error: %s\n\n", res.Error)
				continue
			}
			if res.Stats != nil {
				fmt.Fprintf(out, "   tokens: %s\n", strings.Join(res.Stats.QueryTokens, " "))
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "   RANK\tSCORE\tID\tTITLE")
			for _, doc := range res.Results {
				p, _ := fitted.Product(doc.DocID)
				fmt.Fprintf(tw, "   %d\t%.4f\t%s\t%s\n", doc.Rank, doc.Score, doc.DocID, p.Title)
			}
			tw.Flush()
			if len(res.Results) == 0 {
				fmt.Fprintln(out, "   no results")
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	addCorpusFlags(searchCmd)
	searchCmd.Flags().Int("limit", 10, "maximum results per algorithm")
	searchCmd.Flags().StringSlice("algorithm", nil, "algorithms to run: keyword_matching, tfidf, bm25 (default from config)")
	searchCmd.Flags().Bool("stats", false, "print query tokens and scorer parameters")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}
