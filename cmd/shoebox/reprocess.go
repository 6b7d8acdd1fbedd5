package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oakmere/shoebox/internal/engine"
	"github.com/oakmere/shoebox/internal/enrich"
	"github.com/oakmere/shoebox/internal/match"
	"github.com/oakmere/shoebox/internal/model"
)

func reprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Re-run the pipeline for one transaction",
		Long: `Rewind a transaction to a chosen pass and re-run the pipeline from
there. Fields produced by earlier passes are preserved.

Examples:
  shoebox reprocess --transaction 7f3a... --from-pass payee
  shoebox reprocess --transaction 7f3a... --from-pass tax`,
		RunE: runReprocess,
	}

	cmd.Flags().StringP("transaction", "t", "", "Transaction ID to reprocess (required)")
	cmd.Flags().StringP("from-pass", "p", "payee", "Pass to restart from (payee, category, tax)")

	_ = cmd.MarkFlagRequired("transaction")

	return cmd
}

func runReprocess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	transactionID, _ := cmd.Flags().GetString("transaction")
	fromPassName, _ := cmd.Flags().GetString("from-pass")

	fromPass := model.PassType(fromPassName)
	switch fromPass {
	case model.PassPayee, model.PassCategory, model.PassTax:
	default:
		return fmt.Errorf("invalid pass %q (expected payee, category, or tax)", fromPassName)
	}

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

	eng := engine.New(db, classifier, match.New(db, slog.Default()), enricher, slog.Default(), engine.Config{
		TaxYear: viper.GetInt("classification.tax_year"),
	})

	result, err := eng.ForceReprocess(ctx, transactionID, fromPass)
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}

	fmt.Printf("Transaction %s reprocessed from %s pass\n", transactionID, fromPass)
	fmt.Printf("  Status:        %s\n", result.Status)
	fmt.Printf("  Payee:         %s\n", result.Payee)
	fmt.Printf("  Category:      %s\n", result.GeneralCategory)
	fmt.Printf("  Tax category:  %s\n", result.TaxCategory)
	fmt.Printf("  Worksheet:     %s (%d%% business)\n", result.Worksheet, result.BusinessPercentage)
	fmt.Printf("  Confidence:    %s\n", result.Confidence)
	fmt.Printf("  Source:        %s\n", result.SourceOfTruth)
	if result.Status == model.StatusFailed {
		fmt.Printf("  Failed at:     %s (%s)\n", result.FailedPass, result.FailureReason)
	}

	return nil
}
