package match

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/normalize"
	"github.com/oakmere/shoebox/internal/testutil"
)

var priorSeq atomic.Int64

type priorSpec struct {
	id           string
	key          string
	payee        string
	taxCategory  string
	worksheet    model.Worksheet
	pct          int
	confidence   model.Confidence
	classifiedAt time.Time
}

func seedPrior(t *testing.T, db *testutil.TestDB, spec priorSpec) {
	t.Helper()
	ctx := context.Background()

	txn := model.Transaction{
		ID:          spec.id,
		ClientID:    "client-1",
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: spec.key,
		// Unique amount per row so repeated descriptions survive hash dedup.
		Amount: -10 - float64(priorSeq.Add(1)),
	}
	db.SeedTransactions(txn)

	r := &model.ClassificationResult{
		TransactionID:      spec.id,
		ClientID:           "client-1",
		NormalizedKey:      spec.key,
		Payee:              spec.payee,
		PayeeConfidence:    spec.confidence,
		GeneralCategory:    "Supplies",
		TaxCategory:        spec.taxCategory,
		Worksheet:          spec.worksheet,
		BusinessPercentage: spec.pct,
		Confidence:         spec.confidence,
		SourceOfTruth:      model.SourceInference,
		Status:             model.StatusPass3Done,
		ClassifiedAt:       spec.classifiedAt,
	}
	require.NoError(t, db.Storage.CreateClassification(ctx, r))
	require.NoError(t, db.Storage.UpdateClassification(ctx, r))
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestFindPrior_ExactMatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	seedPrior(t, db, priorSpec{
		id: "txn-prior", key: "lowe's", payee: "Lowe's",
		taxCategory: "Supplies", worksheet: model.Worksheet6A, pct: 100,
		confidence: model.ConfidenceHigh, classifiedAt: base,
	})
	seedPrior(t, db, priorSpec{
		id: "txn-other", key: "netflix.com", payee: "Netflix",
		taxCategory: "Personal", worksheet: model.WorksheetPersonal,
		confidence: model.ConfidenceHigh, classifiedAt: base,
	})

	m := New(db.Storage, testLogger())
	got, err := m.FindPrior(context.Background(), "client-1", model.PassTax, "lowe's")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "txn-prior", got.Prior.TransactionID)
	assert.Equal(t, "Supplies", got.Prior.TaxCategory)
	assert.False(t, got.Ambiguous)
}

func TestFindPrior_FuzzyMatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	seedPrior(t, db, priorSpec{
		id: "txn-prior", key: "acme fuel stop", payee: "Acme Fuel",
		taxCategory: "Car & Truck Expenses", worksheet: model.WorksheetAuto, pct: 80,
		confidence: model.ConfidenceHigh, classifiedAt: base,
	})

	m := New(db.Storage, testLogger())

	t.Run("close key matches", func(t *testing.T) {
		got, err := m.FindPrior(context.Background(), "client-1", model.PassTax, "acme fuel shop")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Acme Fuel", got.Prior.Payee)
	})

	t.Run("distant key does not match", func(t *testing.T) {
		got, err := m.FindPrior(context.Background(), "client-1", model.PassTax, "completely different vendor")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestFindPrior_TieBreaks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("higher confidence beats recency", func(t *testing.T) {
		seedPrior(t, db, priorSpec{
			id: "txn-old-high", key: "vendor one", payee: "Vendor One",
			taxCategory: "Supplies", worksheet: model.Worksheet6A, pct: 100,
			confidence: model.ConfidenceHigh, classifiedAt: base,
		})
		seedPrior(t, db, priorSpec{
			id: "txn-new-low", key: "vendor one", payee: "Vendor One Ltd",
			taxCategory: "Office Expenses", worksheet: model.Worksheet6A, pct: 100,
			confidence: model.ConfidenceLow, classifiedAt: base.Add(24 * time.Hour),
		})

		m := New(db.Storage, testLogger())
		got, err := m.FindPrior(context.Background(), "client-1", model.PassTax, "vendor one")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "txn-old-high", got.Prior.TransactionID)
		assert.False(t, got.Ambiguous)
	})

	t.Run("equal confidence prefers most recent", func(t *testing.T) {
		seedPrior(t, db, priorSpec{
			id: "txn-older", key: "vendor two", payee: "Vendor Two",
			taxCategory: "Supplies", worksheet: model.Worksheet6A, pct: 100,
			confidence: model.ConfidenceMedium, classifiedAt: base,
		})
		seedPrior(t, db, priorSpec{
			id: "txn-newer", key: "vendor two", payee: "Vendor Two",
			taxCategory: "Supplies", worksheet: model.Worksheet6A, pct: 100,
			confidence: model.ConfidenceMedium, classifiedAt: base.Add(24 * time.Hour),
		})

		m := New(db.Storage, testLogger())
		got, err := m.FindPrior(context.Background(), "client-1", model.PassTax, "vendor two")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "txn-newer", got.Prior.TransactionID)
		assert.False(t, got.Ambiguous, "agreeing priors are not ambiguous")
	})

	t.Run("equal confidence with conflicting fields is ambiguous", func(t *testing.T) {
		seedPrior(t, db, priorSpec{
			id: "txn-personal", key: "vendor three", payee: "Vendor Three",
			taxCategory: "Personal", worksheet: model.WorksheetPersonal,
			confidence: model.ConfidenceMedium, classifiedAt: base,
		})
		seedPrior(t, db, priorSpec{
			id: "txn-business", key: "vendor three", payee: "Vendor Three",
			taxCategory: "Supplies", worksheet: model.Worksheet6A, pct: 100,
			confidence: model.ConfidenceMedium, classifiedAt: base.Add(24 * time.Hour),
		})

		m := New(db.Storage, testLogger())
		got, err := m.FindPrior(context.Background(), "client-1", model.PassTax, "vendor three")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Ambiguous)
		assert.Equal(t, "txn-business", got.Prior.TransactionID, "tie-break still picks the most recent")
	})
}

func TestFindPrior_SentinelAndMisses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m := New(db.Storage, testLogger())
	ctx := context.Background()

	got, err := m.FindPrior(ctx, "client-1", model.PassTax, normalize.EmptyKey)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.FindPrior(ctx, "client-1", model.PassTax, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = m.FindPrior(ctx, "client-1", model.PassTax, "anything")
	require.NoError(t, err)
	assert.Nil(t, got, "no priors yet")
}
