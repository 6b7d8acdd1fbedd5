package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oakmere/shoebox/internal/engine"
	"github.com/oakmere/shoebox/internal/enrich"
	"github.com/oakmere/shoebox/internal/match"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run the classification pipeline for a client",
		Long: `Run all pending transactions for a client through the three-pass
pipeline: payee identification, category assignment, and tax/worksheet
classification. Cached and previously matched results are reused; only
unresolved transactions reach the inference service.

Examples:
  shoebox classify --client acme            # Classify pending transactions
  shoebox classify --client acme --workers 8
  shoebox classify --client acme --tax-year 2025`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("client", "c", "", "Client ID to classify transactions for (required)")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent workers (default 4)")
	cmd.Flags().IntP("tax-year", "y", 0, "Tax year for the category catalog (default: current year)")

	_ = cmd.MarkFlagRequired("client")

	_ = viper.BindPFlag("classification.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("classification.tax_year", cmd.Flags().Lookup("tax-year"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	clientID, _ := cmd.Flags().GetString("client")

	slog.Info("Starting transaction classification", "client_id", clientID)

	db, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	classifier, err := createClassifier()
	if err != nil {
		return fmt.Errorf("failed to create inference classifier: %w", err)
	}
	defer func() { _ = classifier.Close() }()

	enricher := enrich.New(enrich.Config{
		BaseURL: viper.GetString("enrichment.base_url"),
		APIKey:  viper.GetString("enrichment.api_key"),
		Timeout: viper.GetDuration("enrichment.timeout"),
	}, slog.Default())

	matcher := match.New(db, slog.Default())

	eng := engine.New(db, classifier, matcher, enricher, slog.Default(), engine.Config{
		Workers: viper.GetInt("classification.workers"),
		TaxYear: viper.GetInt("classification.tax_year"),
	})

	var bar *progressbar.ProgressBar
	eng.OnProgress(func(done, total int) {
		if bar == nil {
			bar = newClassifyProgressBar(total)
		}
		if err := bar.Set(done); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	})

	stats, err := eng.ClassifyBatch(ctx, clientID)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	fmt.Printf("\nClassification finished in %s\n", stats.Duration.Round(time.Second))
	fmt.Printf("  Completed:    %d\n", stats.Completed)
	fmt.Printf("  Needs review: %d\n", stats.NeedsReview)
	fmt.Printf("  Failed:       %d\n", stats.Failed)
	fmt.Printf("  Skipped:      %d\n", stats.Skipped)

	for _, failure := range stats.Failures {
		fmt.Printf("  FAILED %s at %s pass: %s\n", failure.TransactionID, failure.Pass, failure.Reason)
	}
	if stats.Failed > 0 {
		fmt.Println("\nRetry failed transactions with: shoebox reprocess --transaction <id>")
	}

	return nil
}

func newClassifyProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
