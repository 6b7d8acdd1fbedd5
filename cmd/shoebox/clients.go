package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakmere/shoebox/internal/model"
)

func clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage client profiles",
	}

	cmd.AddCommand(clientsAddCmd())
	cmd.AddCommand(clientsListCmd())

	return cmd
}

func clientsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a client profile",
		Long: `Add a client profile, or update it if the ID already exists. The
profile is read-only context for every classification pass: the business
description and industry keywords steer payee and category judgments, and
the vehicle/home-office flags gate the Auto and HomeOffice worksheets.

Examples:
  shoebox clients add --id acme --name "Acme Repair" \
    --business-type "sole proprietorship" \
    --description "Residential appliance repair" \
    --keywords repair,appliance,parts \
    --has-vehicle`,
		RunE: runClientsAdd,
	}

	cmd.Flags().String("id", "", "Client ID (required)")
	cmd.Flags().String("name", "", "Client display name (required)")
	cmd.Flags().String("business-type", "", "Business type (e.g., sole proprietorship)")
	cmd.Flags().String("description", "", "Business description")
	cmd.Flags().String("keywords", "", "Comma-separated industry keywords")
	cmd.Flags().Bool("has-vehicle", false, "Client has a business vehicle")
	cmd.Flags().Bool("has-home-office", false, "Client has a home office")

	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runClientsAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	profile := model.ClientProfile{}
	profile.ID, _ = cmd.Flags().GetString("id")
	profile.Name, _ = cmd.Flags().GetString("name")
	profile.BusinessType, _ = cmd.Flags().GetString("business-type")
	profile.Description, _ = cmd.Flags().GetString("description")
	profile.HasVehicle, _ = cmd.Flags().GetBool("has-vehicle")
	profile.HasHomeOffice, _ = cmd.Flags().GetBool("has-home-office")

	keywords, _ := cmd.Flags().GetString("keywords")
	for _, kw := range strings.Split(keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			profile.IndustryKeywords = append(profile.IndustryKeywords, kw)
		}
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

	if err := db.SaveClientProfile(ctx, &profile); err != nil {
		return fmt.Errorf("failed to save client profile: %w", err)
	}

	fmt.Printf("Saved client %s (%s)\n", profile.ID, profile.Name)
	return nil
}

func clientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List client profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					slog.Error("Failed to close database", "error", closeErr)
				}
			}()

			profiles, err := db.ListClientProfiles(ctx)
			if err != nil {
				return fmt.Errorf("failed to list clients: %w", err)
			}
			if len(profiles) == 0 {
				fmt.Println("No clients yet. Add one with: shoebox clients add")
				return nil
			}

			for _, p := range profiles {
				flags := make([]string, 0, 2)
				if p.HasVehicle {
					flags = append(flags, "vehicle")
				}
				if p.HasHomeOffice {
					flags = append(flags, "home office")
				}
				extra := ""
				if len(flags) > 0 {
					extra = " [" + strings.Join(flags, ", ") + "]"
				}
				fmt.Printf("%-20s %s%s\n", p.ID, p.Name, extra)
			}
			return nil
		},
	}
}
