// Package main is the searchbench CLI: it searches a product corpus with
// every scoring algorithm, runs comparison evaluations, manages the corpus
// store and serves the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "searchbench",
	Short: "Compare product search algorithms on e-commerce corpora",
	Long: `searchbench scores product corpora with keyword matching, TF-IDF and BM25,
judges relevance synthetically and reports precision, recall, F1, NDCG, MAP
and MRR for each algorithm.

Corpora live in SQLite (default) or PostgreSQL and can be imported from or
exported to JSON and YAML files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			loaded.Logging.Level = lvl
		}
		logger.SetupWriter(os.Stderr, loaded.Logging.Level, loaded.Logging.Format)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
