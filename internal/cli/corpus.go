package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/ingest"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/validate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const verifyWorkers = 8

var (
	corpusTopic   string
	corpusName    string
	corpusLimit   int
	corpusTimeout time.Duration
)

// corpusCmd represents the corpus command
var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the evidence corpus",
	Long: `Manage the fact-checking sources used as evidence.

Sources are stored in the database and embedded into the vector index.
Each source is rated by the reliability of its publisher.`,
}

var corpusImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import sources from a YAML or CSV file",
	Long: `Import stores and indexes sources read from a YAML file (a list of
sources, or a 'sources:' key) or a CSV file with the columns
id, title, content, source_name, source_url, topic, reliability_rating.

Rows without a title or content are skipped and reported.

Example:
  veracity corpus import sources.yaml
  veracity corpus import factchecks.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngester(func(ctx context.Context, ing *ingest.Ingester, _ *pipeline.Pipeline) error {
			fmt.Fprintf(os.Stderr, "⚙️  Importing sources from %s...\n", args[0])
			report, err := ing.ImportFile(ctx, args[0])
			if err != nil && report.Imported == 0 {
				return fmt.Errorf("import failed: %w", err)
			}

			var merr *multierror.Error
			if errors.As(err, &merr) {
				for _, rowErr := range merr.Errors {
					fmt.Fprintf(os.Stderr, "✗ %v\n", rowErr)
				}
			} else if err != nil {
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			}

			fmt.Fprintf(os.Stderr, "✓ Imported %d sources (%d indexed, %d skipped)\n", report.Imported, report.Indexed, report.Skipped)
			return nil
		})
	},
}

var corpusFetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a web page and add it as a source",
	Long: `Fetch downloads a page (honoring robots.txt), extracts its readable
text and stores it as a verified source.

Example:
  veracity corpus fetch https://www.snopes.com/fact-check/example/
  veracity corpus fetch https://example.org/report --name "Example Org" --topic health`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngester(func(ctx context.Context, ing *ingest.Ingester, _ *pipeline.Pipeline) error {
			fmt.Fprintf(os.Stderr, "⚙️  Fetching %s...\n", args[0])
			src, err := ing.FetchURL(ctx, args[0], corpusName, corpusTopic)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			fmt.Fprintf(os.Stderr, "✓ Added %q from %s (reliability %.2f)\n", src.Title, src.SourceName, src.ReliabilityRating)
			fmt.Println(src.ID)
			return nil
		})
	},
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := openPipeline()
		if err != nil {
			return err
		}
		defer closePipeline(p, logger)

		ctx, cancel := context.WithTimeout(context.Background(), corpusTimeout)
		defer cancel()

		sources, err := p.DB.ListSources(ctx, corpusTopic, corpusLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, sources)
		}

		for _, src := range sources {
			verified := " "
			if src.IsVerified {
				verified = "✓"
			}
			fmt.Printf("%s %-36s  %.2f  %-16s %s\n", verified, src.ID, src.ReliabilityRating, preview(src.SourceName, 16), preview(src.Title, 60))
		}
		fmt.Fprintf(os.Stderr, "\n%d sources\n", len(sources))
		return nil
	},
}

var corpusReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed stored sources into the vector index",
	Long: `Reindex embeds every stored source (optionally of one topic) again.
Use it after changing the embedding provider or model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngester(func(ctx context.Context, ing *ingest.Ingester, p *pipeline.Pipeline) error {
			fmt.Fprintf(os.Stderr, "⚙️  Reindexing sources with %s embeddings...\n", p.Embedder.Name())
			n, err := ing.Reindex(ctx, corpusTopic)
			fmt.Fprintf(os.Stderr, "✓ Indexed %d sources\n", n)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			return nil
		})
	},
}

var corpusVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that source URLs are reachable",
	Long:  `Verify requests every source URL and records whether it is still reachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngester(func(ctx context.Context, ing *ingest.Ingester, _ *pipeline.Pipeline) error {
			fmt.Fprintf(os.Stderr, "⚙️  Verifying source URLs...\n")
			results, err := ing.Verify(ctx, corpusTopic)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			reachable := 0
			for _, v := range results {
				if v.IsAccessible {
					reachable++
					fmt.Fprintf(os.Stderr, "✓ %s (%d)\n", v.URL, v.StatusCode)
					continue
				}
				reason := v.Error
				if reason == "" {
					reason = fmt.Sprintf("status %d", v.StatusCode)
				}
				fmt.Fprintf(os.Stderr, "✗ %s: %s\n", v.URL, reason)
			}
			fmt.Fprintf(os.Stderr, "\n%d of %d sources reachable\n", reachable, len(results))
			return nil
		})
	},
}

// withIngester runs fn with an ingester wired to the configured pipeline
func withIngester(fn func(ctx context.Context, ing *ingest.Ingester, p *pipeline.Pipeline) error) error {
	p, logger, err := openPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	cfg := p.Config
	ing, err := ingest.New(p.DB,
		ingest.WithIndex(p.Index.Collection(index.Sources), p.Embedder),
		ingest.WithPoolSize(cfg.Concurrency.IndexWorkers),
		ingest.WithReliability(validate.NewReliabilityTable(&cfg.Reliability)),
		ingest.WithFetcher(p.Fetcher),
		ingest.WithVerifier(validate.NewVerifier(cfg.HTTP, verifyWorkers)),
		ingest.WithLogger(logger.Named("ingest")),
	)
	if err != nil {
		return fmt.Errorf("create ingester: %w", err)
	}
	defer ing.Release()

	ctx, cancel := context.WithTimeout(context.Background(), corpusTimeout)
	defer cancel()

	if err := fn(ctx, ing, p); err != nil {
		logger.Debug("corpus command failed", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(corpusCmd)
	corpusCmd.AddCommand(corpusImportCmd)
	corpusCmd.AddCommand(corpusFetchCmd)
	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusReindexCmd)
	corpusCmd.AddCommand(corpusVerifyCmd)

	corpusCmd.PersistentFlags().DurationVar(&corpusTimeout, "timeout", 10*time.Minute, "overall command timeout")

	corpusFetchCmd.Flags().StringVar(&corpusName, "name", "", "publisher name (default: the URL host)")
	corpusFetchCmd.Flags().StringVar(&corpusTopic, "topic", "", "topic of the source")

	corpusListCmd.Flags().StringVar(&corpusTopic, "topic", "", "only list sources of this topic")
	corpusListCmd.Flags().IntVar(&corpusLimit, "limit", 0, "maximum sources to list (0 for all)")
	corpusListCmd.Flags().BoolVar(&jsonOutput, "json", false, "print sources as JSON")

	corpusReindexCmd.Flags().StringVar(&corpusTopic, "topic", "", "only reindex sources of this topic")
	corpusVerifyCmd.Flags().StringVar(&corpusTopic, "topic", "", "only verify sources of this topic")
}
