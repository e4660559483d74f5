package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	evalmetrics "github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/kafka"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run a comparison evaluation over a query set",
	Long: `Evaluate judges every product against every query, ranks the corpus with
each algorithm and reports per-algorithm metrics, the best algorithm per
metric and a MAP ranking. Without --query or --queries-file the built-in
query set of the dataset is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		algorithms, _ := cmd.Flags().GetStringSlice("algorithms")
		kValues, _ := cmd.Flags().GetIntSlice("k")
		limit, _ := cmd.Flags().GetInt("limit")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		save, _ := cmd.Flags().GetBool("save")
		asJSON, _ := cmd.Flags().GetBool("json")
		output, _ := cmd.Flags().GetString("output")

		corpus, ds, err := loadCorpus(cmd)
		if err != nil {
			return err
		}
		queries, err := queriesFromFlags(cmd, string(ds))
		if err != nil {
			return err
		}

		var opts []comparison.Option
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.EvaluationTopic)
			defer producer.Close()
			collector := analytics.NewCollector(producer, analytics.CollectorConfig{}, nil)
			collector.Start(ctx)
			defer collector.Close()
			opts = append(opts, comparison.WithObserver(collector))
		}
		base, err := comparatorFromConfig(cfg, algorithms, opts...)
		if err != nil {
			return err
		}
		comp, err := base.Derive(nil, comparison.Config{KValues: kValues, Limit: limit, Concurrency: concurrency})
		if err != nil {
			return err
		}

		report, err := comp.Run(ctx, queries, corpus)
		if err != nil {
			return err
		}

		if save {
			st, client, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := st.SaveRun(ctx, string(ds), report); err != nil {
				return err
			}
			slog.Info("run saved", "run_id", report.RunID)
		}
		if output != "" {
			if err := writeReport(output, report); err != nil {
				return err
			}
			slog.Info("report written", "path", output)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(out, report)
		return nil
	},
}

func init() {
	addCorpusFlags(evaluateCmd)
	addQueryFlags(evaluateCmd)
	evaluateCmd.Flags().StringSlice("algorithms", nil, "algorithms to compare (default from config)")
	evaluateCmd.Flags().IntSlice("k", nil, "cut-offs for precision, recall, F1 and NDCG (default from config)")
	evaluateCmd.Flags().Int("limit", 0, "ranked list length per query (default from config)")
	evaluateCmd.Flags().Int("concurrency", 0, "queries evaluated in parallel (default from config)")
	evaluateCmd.Flags().Bool("save", false, "persist the report in the evaluation_runs table")
	evaluateCmd.Flags().Bool("json", false, "print the full report as JSON")
	evaluateCmd.Flags().String("output", "", "also write the full JSON report to this path")

	rootCmd.AddCommand(evaluateCmd)
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("query", nil, "query to evaluate (repeatable)")
	cmd.Flags().String("queries-file", "", "file with one query per line, # starts a comment")
}

// queriesFromFlags collects --query values and --queries-file lines,
// falling back to the dataset's built-in query set.
func queriesFromFlags(cmd *cobra.Command, dataset string) ([]string, error) {
	queries, _ := cmd.Flags().GetStringArray("query")
	path, _ := cmd.Flags().GetString("queries-file")
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening queries file: %w", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
				queries = append(queries, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading queries file: %w", err)
		}
	}
	if len(queries) > 0 {
		return queries, nil
	}
	return comparison.QuerySet(dataset)
}

func writeReport(path string, report *comparison.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func printReport(w io.Writer, report *comparison.Report) {
	fmt.Fprintf(w, "run %s: %d queries, %d products, threshold %.2f, %s\n\n",
		report.RunID, len(report.Queries), report.Products, report.Threshold, report.Duration.Round(time.Millisecond))

	cols := []string{evalmetrics.MAP, evalmetrics.MRR}
	for _, k := range report.KValues {
		cols = append(cols, evalmetrics.PrecisionKey(k), evalmetrics.NDCGKey(k))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	header := append([]string{"ALGORITHM"}, cols...)
	header = append(header, "AVG MS", "OK", "FAILED")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, name := range report.Order {
		s := report.Algorithms[name]
		row := []string{name}
		for _, c := range cols {
			row = append(row, fmt.Sprintf("%.4f", s.Metrics[c]))
		}
		row = append(row,
			fmt.Sprintf("%.3f", float64(s.AvgSearchTime.Microseconds())/1000),
			fmt.Sprint(s.QueriesProcessed),
			fmt.Sprint(s.QueriesFailed),
		)
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	tw.Flush()

	if len(report.Summary.Ranking) > 0 {
		fmt.Fprintf(w, "\nranking by MAP: %s\n", strings.Join(report.Summary.Ranking, " > "))
	}
	for _, insight := range report.Summary.Insights {
		fmt.Fprintf(w, "- %s\n", insight)
	}
}
