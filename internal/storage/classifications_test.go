package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

var seedSeq atomic.Int64

func seedTransaction(t *testing.T, s *SQLiteStorage, id, clientID, description string) {
	t.Helper()
	txn := model.Transaction{
		ID:          id,
		ClientID:    clientID,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: description,
		// Unique amount per row so repeated descriptions do not collapse
		// into one transaction via hash dedup.
		Amount: -42.00 - float64(seedSeq.Add(1)),
		Source: "test-bank",
	}
	txn.Hash = txn.GenerateHash()
	require.NoError(t, s.SaveTransactions(context.Background(), []model.Transaction{txn}))
}

func TestClassificationLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedTransaction(t, s, "txn-1", "client-1", "LOWE'S #1636")

	result := &model.ClassificationResult{
		TransactionID: "txn-1",
		ClientID:      "client-1",
		NormalizedKey: "lowe's",
		Status:        model.StatusPending,
	}
	require.NoError(t, s.CreateClassification(ctx, result))

	t.Run("create is idempotent", func(t *testing.T) {
		dupe := &model.ClassificationResult{
			TransactionID: "txn-1",
			ClientID:      "client-1",
			NormalizedKey: "other-key",
			Status:        model.StatusPending,
		}
		require.NoError(t, s.CreateClassification(ctx, dupe))

		got, err := s.GetClassification(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, "lowe's", got.NormalizedKey, "second create must not clobber the first")
	})

	t.Run("update persists the full field set", func(t *testing.T) {
		result.Payee = "Lowe's"
		result.PayeeConfidence = model.ConfidenceHigh
		result.GeneralCategory = "Supplies"
		result.TaxCategory = "Supplies"
		result.Worksheet = model.Worksheet6A
		result.BusinessPercentage = 100
		result.Confidence = model.ConfidenceHigh
		result.SourceOfTruth = model.SourceInference
		result.Status = model.StatusPass3Done
		result.ClassifiedAt = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpdateClassification(ctx, result))

		got, err := s.GetClassification(ctx, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, "Lowe's", got.Payee)
		assert.Equal(t, model.Worksheet6A, got.Worksheet)
		assert.Equal(t, 100, got.BusinessPercentage)
		assert.Equal(t, model.SourceInference, got.SourceOfTruth)
		assert.Equal(t, model.StatusPass3Done, got.Status)
	})

	t.Run("update of unknown transaction is not found", func(t *testing.T) {
		missing := &model.ClassificationResult{
			TransactionID: "txn-ghost",
			ClientID:      "client-1",
			Status:        model.StatusPending,
		}
		err := s.UpdateClassification(ctx, missing)
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("get of unknown transaction is not found", func(t *testing.T) {
		_, err := s.GetClassification(ctx, "txn-ghost")
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})
}

func TestGetPriorClassifications(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	save := func(id, key string, status model.Status, conf model.Confidence, classifiedAt time.Time) {
		seedTransaction(t, s, id, "client-1", key)
		r := &model.ClassificationResult{
			TransactionID: id,
			ClientID:      "client-1",
			NormalizedKey: key,
			Payee:         "Payee " + id,
			Confidence:    conf,
			Worksheet:     model.WorksheetPersonal,
			Status:        status,
			ClassifiedAt:  classifiedAt,
		}
		require.NoError(t, s.CreateClassification(ctx, r))
		require.NoError(t, s.UpdateClassification(ctx, r))
	}

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	save("txn-a", "acme fuel", model.StatusPass3Done, model.ConfidenceHigh, base)
	save("txn-b", "acme fuel", model.StatusPass3Done, model.ConfidenceMedium, base.Add(time.Hour))
	save("txn-c", "acme fuel", model.StatusPass1Done, model.ConfidenceHigh, base.Add(2*time.Hour))
	save("txn-d", "acme fuel", model.StatusPending, model.ConfidenceHigh, base.Add(3*time.Hour))

	t.Run("tax pass sees only fully classified priors", func(t *testing.T) {
		priors, err := s.GetPriorClassifications(ctx, "client-1", model.PassTax)
		require.NoError(t, err)
		require.Len(t, priors, 2)
		assert.Equal(t, "txn-b", priors[0].TransactionID, "most recent first")
		assert.Equal(t, "txn-a", priors[1].TransactionID)
	})

	t.Run("payee pass sees partially classified priors too", func(t *testing.T) {
		priors, err := s.GetPriorClassifications(ctx, "client-1", model.PassPayee)
		require.NoError(t, err)
		assert.Len(t, priors, 3)
	})

	t.Run("other clients see nothing", func(t *testing.T) {
		priors, err := s.GetPriorClassifications(ctx, "client-2", model.PassTax)
		require.NoError(t, err)
		assert.Empty(t, priors)
	})
}

func TestResetClassification(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedTransaction(t, s, "txn-1", "client-1", "ACME FUEL")

	r := &model.ClassificationResult{
		TransactionID: "txn-1",
		ClientID:      "client-1",
		NormalizedKey: "acme fuel",
		Payee:         "Acme Fuel",
		GeneralCategory: "Car & Truck Expenses",
		Status:        model.StatusFailed,
		FailedPass:    model.PassTax,
		FailureReason: "inference timed out",
	}
	require.NoError(t, s.CreateClassification(ctx, r))
	require.NoError(t, s.UpdateClassification(ctx, r))

	require.NoError(t, s.ResetClassification(ctx, "txn-1", model.PassTax))

	got, err := s.GetClassification(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPass2Done, got.Status, "reset rewinds to the status before the chosen pass")
	assert.Empty(t, string(got.FailedPass))
	assert.Empty(t, got.FailureReason)
	assert.Equal(t, "Acme Fuel", got.Payee, "earlier passes' fields survive a reset")
	assert.Equal(t, "Car & Truck Expenses", got.GeneralCategory)

	t.Run("reset of unknown transaction is not found", func(t *testing.T) {
		err := s.ResetClassification(ctx, "txn-ghost", model.PassPayee)
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})
}
