// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/oakmere/shoebox/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsToClassify(ctx context.Context, clientID string) ([]model.Transaction, error)

	// Classification operations
	CreateClassification(ctx context.Context, result *model.ClassificationResult) error
	UpdateClassification(ctx context.Context, result *model.ClassificationResult) error
	GetClassification(ctx context.Context, transactionID string) (*model.ClassificationResult, error)
	GetPriorClassifications(ctx context.Context, clientID string, pass model.PassType) ([]model.ClassificationResult, error)
	ResetClassification(ctx context.Context, transactionID string, fromPass model.PassType) error

	// Cache operations
	GetCacheEntry(ctx context.Context, pass model.PassType, key string) (*CacheEntry, error)
	MergeCacheEntry(ctx context.Context, pass model.PassType, key string, partial model.PartialResult, confidence model.Confidence) error

	// Client and catalog operations (read-mostly; mutated by client management)
	GetClientProfile(ctx context.Context, clientID string) (*model.ClientProfile, error)
	SaveClientProfile(ctx context.Context, profile *model.ClientProfile) error
	ListClientProfiles(ctx context.Context) ([]model.ClientProfile, error)
	GetCategoryCatalog(ctx context.Context, clientID string, taxYear int) (*model.CategoryCatalog, error)
	SaveCategoryCatalog(ctx context.Context, catalog *model.CategoryCatalog) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// CacheEntry is one persisted (pass, key) cache record.
type CacheEntry struct {
	LastUpdated time.Time
	Key         string
	Pass        model.PassType
	Confidence  model.Confidence
	Partial     model.PartialResult
}

// BatchStats reports the outcome counts of one pipeline run.
type BatchStats struct {
	Failures    []Failure
	Completed   int
	Failed      int
	NeedsReview int
	Skipped     int
	Duration    time.Duration
}

// Failure records enough detail about one failed transaction to support
// targeted reprocessing.
type Failure struct {
	TransactionID string
	Pass          model.PassType
	Reason        string
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
