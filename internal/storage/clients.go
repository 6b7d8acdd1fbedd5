package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

// GetClientProfile retrieves a client's business profile.
func (s *SQLiteStorage) GetClientProfile(ctx context.Context, clientID string) (*model.ClientProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(clientID, "clientID"); err != nil {
		return nil, err
	}

	var profile model.ClientProfile
	var keywords string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(business_type, ''), COALESCE(description, ''),
		       COALESCE(industry_keywords, '[]'), has_vehicle, has_home_office, created_at
		FROM clients
		WHERE id = ?
	`, clientID).Scan(
		&profile.ID, &profile.Name, &profile.BusinessType, &profile.Description,
		&keywords, &profile.HasVehicle, &profile.HasHomeOffice, &profile.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client profile: %w", err)
	}

	if err := json.Unmarshal([]byte(keywords), &profile.IndustryKeywords); err != nil {
		return nil, fmt.Errorf("failed to decode industry keywords: %w", err)
	}

	return &profile, nil
}

// SaveClientProfile inserts or updates a client profile.
func (s *SQLiteStorage) SaveClientProfile(ctx context.Context, profile *model.ClientProfile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: profile", ErrNilParameter)
	}
	if err := validateString(profile.ID, "profile.ID"); err != nil {
		return err
	}
	if err := validateString(profile.Name, "profile.Name"); err != nil {
		return err
	}

	keywords, err := json.Marshal(profile.IndustryKeywords)
	if err != nil {
		return fmt.Errorf("failed to encode industry keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, business_type, description, industry_keywords, has_vehicle, has_home_office)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			business_type = excluded.business_type,
			description = excluded.description,
			industry_keywords = excluded.industry_keywords,
			has_vehicle = excluded.has_vehicle,
			has_home_office = excluded.has_home_office
	`, profile.ID, profile.Name, profile.BusinessType, profile.Description,
		string(keywords), profile.HasVehicle, profile.HasHomeOffice)

	if err != nil {
		return fmt.Errorf("failed to save client profile: %w", err)
	}
	return nil
}

// ListClientProfiles returns all client profiles ordered by name.
func (s *SQLiteStorage) ListClientProfiles(ctx context.Context) ([]model.ClientProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(business_type, ''), COALESCE(description, ''),
		       COALESCE(industry_keywords, '[]'), has_vehicle, has_home_office, created_at
		FROM clients
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []model.ClientProfile
	for rows.Next() {
		var profile model.ClientProfile
		var keywords string
		if err := rows.Scan(
			&profile.ID, &profile.Name, &profile.BusinessType, &profile.Description,
			&keywords, &profile.HasVehicle, &profile.HasHomeOffice, &profile.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &profile.IndustryKeywords); err != nil {
			return nil, fmt.Errorf("failed to decode industry keywords: %w", err)
		}
		profiles = append(profiles, profile)
	}

	return profiles, rows.Err()
}

// GetCategoryCatalog returns the client's category catalog for a tax year, in
// catalog order.
func (s *SQLiteStorage) GetCategoryCatalog(ctx context.Context, clientID string, taxYear int) (*model.CategoryCatalog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(clientID, "clientID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, worksheet, COALESCE(tax_implication, ''), is_custom, sort_order
		FROM categories
		WHERE client_id = ? AND tax_year = ?
		ORDER BY sort_order, name
	`, clientID, taxYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	catalog := &model.CategoryCatalog{
		ClientID: clientID,
		TaxYear:  taxYear,
	}

	for rows.Next() {
		cat := model.ExpenseCategory{TaxYear: taxYear}
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Worksheet, &cat.TaxImplication, &cat.IsCustom, &cat.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		catalog.Categories = append(catalog.Categories, cat)
	}

	return catalog, rows.Err()
}

// SaveCategoryCatalog replaces the client's catalog for the tax year.
func (s *SQLiteStorage) SaveCategoryCatalog(ctx context.Context, catalog *model.CategoryCatalog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if catalog == nil {
		return fmt.Errorf("%w: catalog", ErrNilParameter)
	}
	if err := validateString(catalog.ClientID, "catalog.ClientID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM categories WHERE client_id = ? AND tax_year = ?
	`, catalog.ClientID, catalog.TaxYear); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	for i, cat := range catalog.Categories {
		if !cat.Worksheet.Valid() {
			return fmt.Errorf("%w: category %q worksheet %q", ErrInvalidClassification, cat.Name, cat.Worksheet)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (client_id, tax_year, name, worksheet, tax_implication, is_custom, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, catalog.ClientID, catalog.TaxYear, cat.Name, string(cat.Worksheet), cat.TaxImplication, cat.IsCustom, i); err != nil {
			return fmt.Errorf("failed to save category %q: %w", cat.Name, err)
		}
	}

	return tx.Commit()
}
