package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/rules"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage a client's expense category catalog",
	}

	cmd.AddCommand(categoriesInitCmd())
	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())

	return cmd
}

func categoriesInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed a client's catalog with the standard tax categories",
		RunE:  runCategoriesInit,
	}

	cmd.Flags().StringP("client", "c", "", "Client ID (required)")
	cmd.Flags().IntP("tax-year", "y", 0, "Tax year (default: current year)")

	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runCategoriesInit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	clientID, _ := cmd.Flags().GetString("client")
	taxYear := flagTaxYear(cmd)

	catalog := model.CategoryCatalog{
		ClientID: clientID,
		TaxYear:  taxYear,
	}
	for i, name := range rules.StandardTaxCategories() {
		worksheet, _ := rules.StandardWorksheet(name)
		catalog.Categories = append(catalog.Categories, model.ExpenseCategory{
			Name:      name,
			Worksheet: worksheet,
			TaxYear:   taxYear,
			SortOrder: i + 1,
		})
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

	if err := db.SaveCategoryCatalog(ctx, &catalog); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}

	fmt.Printf("Seeded %d standard categories for %s (%d)\n", len(catalog.Categories), clientID, taxYear)
	return nil
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom category to a client's catalog",
		Long: `Add a custom category. Custom categories aggregate into the
"6A: Other Expenses" catch-all at tax time unless given another worksheet.`,
		Args: cobra.ExactArgs(1),
		RunE: runCategoriesAdd,
	}

	cmd.Flags().StringP("client", "c", "", "Client ID (required)")
	cmd.Flags().IntP("tax-year", "y", 0, "Tax year (default: current year)")
	cmd.Flags().String("worksheet", string(model.Worksheet6A), "Worksheet (6A, Auto, HomeOffice, Personal, None)")
	cmd.Flags().String("tax-implication", "", "Free-text tax note shown to reviewers")

	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runCategoriesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	clientID, _ := cmd.Flags().GetString("client")
	taxYear := flagTaxYear(cmd)
	worksheetName, _ := cmd.Flags().GetString("worksheet")
	taxImplication, _ := cmd.Flags().GetString("tax-implication")
	name := args[0]

	worksheet := model.Worksheet(worksheetName)
	if !worksheet.Valid() {
		return fmt.Errorf("invalid worksheet %q", worksheetName)
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

	catalog, err := db.GetCategoryCatalog(ctx, clientID, taxYear)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if catalog.Find(name) != nil {
		return fmt.Errorf("category %q already exists for %s (%d)", name, clientID, taxYear)
	}

	catalog.Categories = append(catalog.Categories, model.ExpenseCategory{
		Name:           name,
		Worksheet:      worksheet,
		TaxImplication: taxImplication,
		TaxYear:        taxYear,
		SortOrder:      len(catalog.Categories) + 1,
		IsCustom:       true,
	})

	if err := db.SaveCategoryCatalog(ctx, catalog); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}

	fmt.Printf("Added custom category %q (%s) for %s (%d)\n", name, worksheet, clientID, taxYear)
	return nil
}

func categoriesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a client's catalog for a tax year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			clientID, _ := cmd.Flags().GetString("client")
			taxYear := flagTaxYear(cmd)

			db, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					slog.Error("Failed to close database", "error", closeErr)
				}
			}()

			catalog, err := db.GetCategoryCatalog(ctx, clientID, taxYear)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			if len(catalog.Categories) == 0 {
				fmt.Printf("No catalog for %s (%d). Seed one with: shoebox categories init --client %s\n", clientID, taxYear, clientID)
				return nil
			}

			for _, cat := range catalog.Categories {
				marker := ""
				if cat.IsCustom {
					marker = " (custom)"
				}
				fmt.Printf("%-28s %s%s\n", cat.Name, cat.Worksheet, marker)
			}
			return nil
		},
	}

	cmd.Flags().StringP("client", "c", "", "Client ID (required)")
	cmd.Flags().IntP("tax-year", "y", 0, "Tax year (default: current year)")

	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func flagTaxYear(cmd *cobra.Command) int {
	taxYear, _ := cmd.Flags().GetInt("tax-year")
	if taxYear == 0 {
		taxYear = time.Now().Year()
	}
	return taxYear
}
