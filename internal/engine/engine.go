package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/enrich"
	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/normalize"
	"github.com/oakmere/shoebox/internal/service"
)

const defaultWorkers = 4

// Config holds pipeline orchestration settings.
type Config struct {
	Workers int
	TaxYear int
}

// Engine runs the classification pipeline for a client's batch.
type Engine struct {
	storage   service.Storage
	inference InferenceClient
	matcher   PriorMatcher
	enricher  enrich.Enricher
	logger    *slog.Logger
	progress  func(done, total int)
	workers   int
	taxYear   int
}

// New creates a pipeline engine.
func New(storage service.Storage, inference InferenceClient, matcher PriorMatcher, enricher enrich.Enricher, logger *slog.Logger, cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	taxYear := cfg.TaxYear
	if taxYear == 0 {
		taxYear = time.Now().Year()
	}
	if enricher == nil {
		enricher = enrich.Disabled{}
	}

	return &Engine{
		storage:   storage,
		inference: inference,
		matcher:   matcher,
		enricher:  enricher,
		logger:    logger,
		workers:   workers,
		taxYear:   taxYear,
	}
}

// OnProgress registers a callback invoked after each transaction finishes.
// Must be set before ClassifyBatch.
func (e *Engine) OnProgress(fn func(done, total int)) {
	e.progress = fn
}

// outcome is the terminal state one transaction reached in this run.
type outcome struct {
	status      model.Status
	failedPass  model.PassType
	reason      string
	txnID       string
	skipped     bool
	interrupted bool
}

// ClassifyBatch runs all pending transactions for a client through the
// pipeline on a bounded worker pool. One transaction's failure never aborts
// the batch; cancellation stops scheduling new transactions and leaves
// committed pass results in place for the next run.
func (e *Engine) ClassifyBatch(ctx context.Context, clientID string) (*service.BatchStats, error) {
	start := time.Now()

	profile, err := e.storage.GetClientProfile(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client profile: %w", err)
	}

	catalog, err := e.storage.GetCategoryCatalog(ctx, clientID, e.taxYear)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load category catalog: %w", err)
	}

	transactions, err := e.storage.GetTransactionsToClassify(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	stats := &service.BatchStats{}
	if len(transactions) == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	e.logger.Info("starting classification batch",
		"client_id", clientID,
		"transactions", len(transactions),
		"workers", e.workers)

	var mu sync.Mutex
	done := 0
	scheduled := 0
	g := &errgroup.Group{}
	g.SetLimit(e.workers)

	for _, txn := range transactions {
		// Cancellation is honored between transactions; work already
		// scheduled runs to a clean stopping point.
		if ctx.Err() != nil {
			break
		}
		scheduled++

		txn := txn
		g.Go(func() error {
			out := e.processTransaction(ctx, txn, *profile, catalog)

			mu.Lock()
			defer mu.Unlock()
			e.record(stats, out)
			done++
			if e.progress != nil {
				e.progress(done, len(transactions))
			}
			return nil
		})
	}

	_ = g.Wait()
	stats.Skipped += len(transactions) - scheduled
	stats.Duration = time.Since(start)

	e.logger.Info("classification batch finished",
		"client_id", clientID,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"needs_review", stats.NeedsReview,
		"skipped", stats.Skipped,
		"duration", stats.Duration)

	return stats, nil
}

// record folds one transaction's outcome into the batch stats. Callers hold
// the stats lock.
func (e *Engine) record(stats *service.BatchStats, out outcome) {
	switch {
	case out.skipped, out.interrupted:
		stats.Skipped++
	case out.status == model.StatusFailed:
		stats.Failed++
		stats.Failures = append(stats.Failures, service.Failure{
			TransactionID: out.txnID,
			Pass:          out.failedPass,
			Reason:        out.reason,
		})
	case out.status == model.StatusNeedsReview:
		stats.NeedsReview++
	case out.status == model.StatusPass3Done:
		stats.Completed++
	default:
		stats.Skipped++
	}
}

// processTransaction takes one transaction from its current status to a
// terminal state. Every failure is captured in the returned outcome; nothing
// escapes to cancel sibling transactions.
func (e *Engine) processTransaction(ctx context.Context, txn model.Transaction, profile model.ClientProfile, catalog *model.CategoryCatalog) outcome {
	if !txn.WellFormed() {
		e.logger.Warn("skipping malformed transaction",
			"transaction_id", txn.ID,
			"client_id", txn.ClientID,
			"error", common.ErrMalformedInput)
		return outcome{txnID: txn.ID, skipped: true}
	}

	result, err := e.storage.GetClassification(ctx, txn.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		result = &model.ClassificationResult{
			TransactionID: txn.ID,
			ClientID:      txn.ClientID,
			NormalizedKey: normalize.Key(txn.Description),
			Status:        model.StatusPending,
		}
		if createErr := e.storage.CreateClassification(ctx, result); createErr != nil {
			e.logger.Error("failed to create classification record",
				"transaction_id", txn.ID,
				"error", createErr)
			return outcome{txnID: txn.ID, skipped: true}
		}
	case err != nil:
		e.logger.Error("failed to load classification record",
			"transaction_id", txn.ID,
			"error", err)
		return outcome{txnID: txn.ID, skipped: true}
	}

	if result.Status.Terminal() {
		return outcome{txnID: txn.ID, status: result.Status, skipped: true}
	}
	if result.NormalizedKey == "" {
		result.NormalizedKey = normalize.Key(txn.Description)
	}

	return e.runPasses(ctx, txn, profile, catalog, result)
}

// runPasses executes the remaining passes in order. Passes already reached
// are skipped so resumed and reprocessed transactions pick up where they
// stopped.
func (e *Engine) runPasses(ctx context.Context, txn model.Transaction, profile model.ClientProfile, catalog *model.CategoryCatalog, result *model.ClassificationResult) outcome {
	pc := &passContext{
		txn:     txn,
		profile: profile,
		catalog: catalog,
		result:  result,
	}

	for _, pass := range model.PassOrder() {
		if result.Status.Reached(pass) {
			continue
		}
		if ctx.Err() != nil {
			return outcome{txnID: txn.ID, status: result.Status, interrupted: true}
		}

		var err error
		switch pass {
		case model.PassPayee:
			err = e.runPayeePass(ctx, pc)
		case model.PassCategory:
			err = e.runCategoryPass(ctx, pc)
		case model.PassTax:
			err = e.runTaxPass(ctx, pc)
		}

		if err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-pass; leave the status untouched so the
				// next run resumes here.
				return outcome{txnID: txn.ID, status: result.Status, interrupted: true}
			}
			return e.failPass(ctx, result, pass, err)
		}

		if pass == model.PassTax {
			if invErr := result.Validate(); invErr != nil {
				return e.failPass(ctx, result, pass, invErr)
			}
		}

		result.Status = model.StatusForPass(pass)
		if pass == model.PassTax && pc.review {
			result.Status = model.StatusNeedsReview
		}
		result.ClassifiedAt = time.Now()

		if err := e.storage.UpdateClassification(ctx, result); err != nil {
			return e.failPass(ctx, result, pass, fmt.Errorf("failed to persist pass result: %w", err))
		}

		e.logger.Debug("pass completed",
			"transaction_id", txn.ID,
			"pass", pass,
			"status", result.Status,
			"source", result.SourceOfTruth)
	}

	return outcome{txnID: txn.ID, status: result.Status}
}

// failPass marks the transaction failed for the given pass and records why.
func (e *Engine) failPass(ctx context.Context, result *model.ClassificationResult, pass model.PassType, cause error) outcome {
	e.logger.Warn("pass failed",
		"transaction_id", result.TransactionID,
		"pass", pass,
		"error", cause)

	result.Status = model.StatusFailed
	result.FailedPass = pass
	result.FailureReason = cause.Error()
	result.ClassifiedAt = time.Now()

	if err := e.storage.UpdateClassification(ctx, result); err != nil {
		e.logger.Error("failed to persist failure state",
			"transaction_id", result.TransactionID,
			"error", err)
	}

	return outcome{
		txnID:      result.TransactionID,
		status:     model.StatusFailed,
		failedPass: pass,
		reason:     cause.Error(),
	}
}

// ForceReprocess rewinds one transaction to the given pass and re-runs the
// pipeline from there, keeping earlier passes' fields.
func (e *Engine) ForceReprocess(ctx context.Context, transactionID string, fromPass model.PassType) (*model.ClassificationResult, error) {
	txn, err := e.storage.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	profile, err := e.storage.GetClientProfile(ctx, txn.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client profile: %w", err)
	}

	catalog, err := e.storage.GetCategoryCatalog(ctx, txn.ClientID, e.taxYear)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load category catalog: %w", err)
	}

	if err := e.storage.ResetClassification(ctx, transactionID, fromPass); err != nil {
		return nil, fmt.Errorf("failed to reset classification: %w", err)
	}

	result, err := e.storage.GetClassification(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load classification: %w", err)
	}
	if result.NormalizedKey == "" {
		result.NormalizedKey = normalize.Key(txn.Description)
	}

	out := e.runPasses(ctx, *txn, *profile, catalog, result)
	if out.interrupted {
		return nil, ctx.Err()
	}

	return e.storage.GetClassification(ctx, transactionID)
}
