package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [claim-id]",
	Short: "Show previously analyzed claims",
	Long: `History lists the most recent analyses, newest first.
Given a claim id it shows that claim with its stored evidence and
processing log.

Example:
  veracity history
  veracity history --limit 10 --json
  veracity history 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over analyzed claims",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum claims to list")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	p, logger, err := openPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid claim id %q", args[0])
		}
		return showClaim(ctx, p.DB, id)
	}

	claims, err := p.DB.ListClaims(ctx, historyLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, claims)
	}

	for _, c := range claims {
		fmt.Printf("%6d  %s  %-10s %5.1f  %s\n", c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Classification, c.ReliabilityScore, preview(c.Text, 60))
	}
	fmt.Fprintf(os.Stderr, "\n%d claims\n", len(claims))
	return nil
}

func showClaim(ctx context.Context, db *store.DB, id int64) error {
	claim, err := db.GetClaim(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no claim with id %d", id)
	}
	if err != nil {
		return err
	}

	logs, err := db.ListLogs(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, map[string]any{"claim": claim, "logs": logs})
	}

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Claim #%d\n", claim.ID)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
	fmt.Printf("  %s\n", claim.Text)
	fmt.Printf("\n")
	if claim.SourceURL != "" {
		fmt.Printf("  Source URL:      %s\n", claim.SourceURL)
	}
	fmt.Printf("  Classification:  %s\n", claim.Classification)
	fmt.Printf("  Reliability:     %.1f/100\n", claim.ReliabilityScore)
	fmt.Printf("  Created:         %s\n", claim.CreatedAt.Local().Format(time.RFC3339))
	if claim.ProcessedAt != nil {
		fmt.Printf("  Processed:       %s\n", claim.ProcessedAt.Local().Format(time.RFC3339))
	}

	if len(claim.Evidence) > 0 {
		fmt.Printf("\n")
		fmt.Printf("  Evidence:\n")
		for _, snippet := range claim.Evidence {
			fmt.Printf("    \"%s\"\n", snippet)
		}
	}

	if len(logs) > 0 {
		fmt.Printf("\n")
		fmt.Printf("  Log:\n")
		for _, entry := range logs {
			fmt.Printf("    %s  %-18s %-8s %dms\n", entry.CreatedAt.Local().Format("15:04:05"), entry.Operation, entry.Status, entry.ProcessingTimeMS)
		}
	}
	fmt.Printf("\n")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	p, logger, err := openPipeline()
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := p.DB.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, stats)
	}

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Veracity Statistics\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
	fmt.Printf("  Claims:       %d\n", stats.TotalClaims)
	fmt.Printf("  Average:      %.1f/100\n", stats.AverageReliability)
	for _, label := range model.Labels {
		fmt.Printf("  %-13s %d\n", string(label)+":", stats.ClassificationBreakdown[label])
	}
	fmt.Printf("  Sources:      %d\n", stats.TotalSources)
	fmt.Printf("\n")
	return nil
}
