package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakmere/shoebox/internal/ingest"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import statement rows from a CSV export",
		Long: `Import bank or card statement rows from a CSV file. The file must
carry a header naming date, description, and amount columns. Duplicate rows
(same client, date, amount, and description) are detected by hash and
silently skipped.

Examples:
  shoebox import chase.csv --client acme --source chase-checking`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringP("client", "c", "", "Client ID to import transactions for (required)")
	cmd.Flags().StringP("source", "s", "", "Statement source tag (e.g., chase-checking)")

	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	clientID, _ := cmd.Flags().GetString("client")
	source, _ := cmd.Flags().GetString("source")
	path := args[0]

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	result, err := ingest.ParseCSV(file, clientID, source, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(result.Transactions) == 0 {
		fmt.Printf("No importable rows found in %s (%d skipped)\n", path, result.SkippedRows)
		return nil
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

	if err := db.SaveTransactions(ctx, result.Transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Printf("Imported %d transactions for %s (%d rows skipped)\n",
		len(result.Transactions), clientID, result.SkippedRows)
	fmt.Println("Classify them with: shoebox classify --client " + clientID)

	return nil
}
