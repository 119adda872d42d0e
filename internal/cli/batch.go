package cli

import (
	"context"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	batchOutput  string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze up to 100 claims from a file in parallel",
	Long: `Batch analyzes many claims concurrently:
- Read claims from a CSV file (text and optional source_url columns)
  or a text file (one claim per line)
- Analyze claims in parallel with a configurable worker count
- Report one result per claim, in input order, plus a summary

Example:
  veracity batch claims.txt
  veracity batch claims.csv --concurrency 8 --output results.json
  veracity batch claims.csv --timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write results and summary as JSON to this path")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	p, logger, err := openPipeline(func(cfg *model.Config) {
		if concurrency > 0 {
			cfg.Concurrency.Workers = concurrency
		}
	})
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veracity Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", p.Config.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Embeddings:   %s\n", p.Embedder.Name())
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	fmt.Fprintf(os.Stderr, "⚙️  Reading claims from file...\n")
	inputs, err := worker.ReadClaimsFromFile(file)
	if err != nil {
		return fmt.Errorf("read claims: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d claims\n", len(inputs))
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "⚙️  Analyzing claims with %d workers...\n", p.Config.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	batch, err := p.Analyzer.AnalyzeBatch(ctx, inputs)
	if err != nil {
		return fmt.Errorf("analyze batch: %w", err)
	}

	for _, r := range batch.Results {
		mark := "✓"
		if r.Outcome != model.OutcomeSuccess {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "%s [%-10s %5.1f] %s\n", mark, r.Classification, r.Reliability, preview(r.Claim, 60))
	}

	if batchOutput != "" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := writeJSON(f, batch); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	summary := batch.Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d claims\n", summary.TotalAnalyzed)
	fmt.Fprintf(os.Stderr, "  Degraded:     %d\n", summary.Degraded)
	fmt.Fprintf(os.Stderr, "  Average:      %.1f/100\n", summary.AverageReliability)
	for _, label := range model.Labels {
		fmt.Fprintf(os.Stderr, "  %-13s %d\n", string(label)+":", summary.ClassificationBreakdown[label])
	}
	if batchOutput != "" {
		fmt.Fprintf(os.Stderr, "  Output:       %s\n", batchOutput)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// preview shortens s to at most n runes for one-line display
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
