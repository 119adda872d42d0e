package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	sourceURL      string
	jsonOutput     bool
	analyzeTimeout time.Duration
	analyzeMaxHits int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <claim>",
	Short: "Analyze a single claim against the evidence corpus",
	Long: `Analyze scores one claim:
- Extract linguistic features from the claim text
- Retrieve related sources with hybrid vector and keyword search
- Pick the most relevant sentence of every source
- Combine heuristics, evidence and optional sentiment into a score

Every analysis is stored and can be reviewed with 'veracity history'.

Example:
  veracity analyze "Scientists confirm that handwashing reduces infection risk"
  veracity analyze "Vaccines cause autism" --source-url https://example.com/post
  veracity analyze "The moon landing was staged" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&sourceURL, "source-url", "", "where the claim was found")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().IntVar(&analyzeMaxHits, "max-results", 0, "maximum evidence sources (default from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if err := pipeline.Validate(text); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	p, logger, err := openPipeline(func(cfg *model.Config) {
		if analyzeMaxHits > 0 {
			cfg.Retrieval.MaxResults = analyzeMaxHits
		}
	})
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Analyzing claim (%s embeddings)...\n", p.Embedder.Name())
	}

	result, err := p.Analyzer.AnalyzeClaim(ctx, text, sourceURL)
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	if jsonOutput {
		return writeJSON(os.Stdout, result)
	}
	printResult(os.Stdout, result)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func printResult(w io.Writer, r model.AnalysisResult) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Claim #%d\n", r.ClaimID)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  %s\n", r.Claim)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Classification:  %s\n", r.Classification)
	fmt.Fprintf(w, "  Reliability:     %.1f/100\n", r.Reliability)
	fmt.Fprintf(w, "  Confidence:      %.0f%%\n", r.Confidence)
	fmt.Fprintf(w, "  Outcome:         %s\n", r.Outcome)
	fmt.Fprintf(w, "  Time:            %dms\n", r.ProcessingTimeMS)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Reasoning:\n")
	for _, reason := range strings.Split(r.Reasoning, "; ") {
		fmt.Fprintf(w, "    - %s\n", reason)
	}

	if len(r.EvidenceSources) > 0 {
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Sources:\n")
		for i, ref := range r.EvidenceSources {
			fmt.Fprintf(w, "    %d. %s (%s, %s match, %.2f)\n", i+1, ref.Title, ref.SourceName, ref.MatchType, ref.RelevanceScore)
		}
	}

	if len(r.Evidence) > 0 {
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Evidence:\n")
		for _, snippet := range r.Evidence {
			fmt.Fprintf(w, "    \"%s\"\n", snippet)
		}
	}

	if len(r.Degradations) > 0 {
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "  Degraded:\n")
		for _, d := range r.Degradations {
			fmt.Fprintf(w, "    ✗ %s\n", d)
		}
	}
	fmt.Fprintf(w, "\n")
}
