// Package testutil provides test utilities for the shoebox pipeline: an
// in-memory database with migrations applied and ready-made client fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/service"
	"github.com/oakmere/shoebox/internal/storage"
)

// TestDB represents a migrated in-memory test database.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database with migrations applied
// and cleanup registered.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedClient stores a client profile or fails the test.
func (db *TestDB) SeedClient(profile model.ClientProfile) {
	db.t.Helper()
	if err := db.Storage.SaveClientProfile(context.Background(), &profile); err != nil {
		db.t.Fatalf("failed to seed client %q: %v", profile.ID, err)
	}
}

// SeedCatalog stores a category catalog or fails the test.
func (db *TestDB) SeedCatalog(catalog model.CategoryCatalog) {
	db.t.Helper()
	if err := db.Storage.SaveCategoryCatalog(context.Background(), &catalog); err != nil {
		db.t.Fatalf("failed to seed catalog for %q: %v", catalog.ClientID, err)
	}
}

// SeedTransactions stores transactions or fails the test.
func (db *TestDB) SeedTransactions(txns ...model.Transaction) {
	db.t.Helper()
	for i := range txns {
		if txns[i].Hash == "" {
			txns[i].Hash = txns[i].GenerateHash()
		}
	}
	if err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// SoleProprietorProfile returns a profile fixture for a client with a vehicle
// and home office, so every worksheet is applicable.
func SoleProprietorProfile(clientID string) model.ClientProfile {
	return model.ClientProfile{
		ID:               clientID,
		Name:             "Ada's Repair Service",
		BusinessType:     "sole proprietorship",
		Description:      "Residential appliance repair",
		IndustryKeywords: []string{"repair", "appliance", "parts"},
		HasVehicle:       true,
		HasHomeOffice:    true,
	}
}

// NoBusinessContextProfile returns a profile fixture with no vehicle, no home
// office, and no business description.
func NoBusinessContextProfile(clientID string) model.ClientProfile {
	return model.ClientProfile{
		ID:   clientID,
		Name: "Blank Client",
	}
}

// BasicCatalog returns a small catalog fixture covering a standard category,
// a profile-gated category, and a custom one.
func BasicCatalog(clientID string, taxYear int) model.CategoryCatalog {
	return model.CategoryCatalog{
		ClientID: clientID,
		TaxYear:  taxYear,
		Categories: []model.ExpenseCategory{
			{Name: "Supplies", Worksheet: model.Worksheet6A, TaxYear: taxYear, SortOrder: 1},
			{Name: "Car & Truck Expenses", Worksheet: model.WorksheetAuto, TaxYear: taxYear, SortOrder: 2},
			{Name: "Beekeeping Gear", Worksheet: model.Worksheet6A, TaxYear: taxYear, SortOrder: 3, IsCustom: true},
			{Name: "Personal", Worksheet: model.WorksheetPersonal, TaxYear: taxYear, SortOrder: 4},
		},
	}
}
