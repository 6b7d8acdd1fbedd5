package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

func TestSaveTransactionsDeduplicates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	txn := model.Transaction{
		ID:          "txn-1",
		ClientID:    "client-1",
		Date:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "NETFLIX.COM",
		Amount:      -15.49,
		Source:      "chase-checking",
	}
	txn.Hash = txn.GenerateHash()
	require.NoError(t, s.SaveTransactions(ctx, []model.Transaction{txn}))

	// Same statement row imported again under a different ID.
	dupe := txn
	dupe.ID = "txn-2"
	require.NoError(t, s.SaveTransactions(ctx, []model.Transaction{dupe}))

	transactions, err := s.GetTransactionsToClassify(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "txn-1", transactions[0].ID)
}

func TestGetTransactionByID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedTransaction(t, s, "txn-1", "client-1", "SHELL OIL")

	txn, err := s.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "SHELL OIL", txn.Description)
	assert.Equal(t, "client-1", txn.ClientID)

	_, err = s.GetTransactionByID(ctx, "txn-ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestGetTransactionsToClassify_ExcludesTerminal(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedTransaction(t, s, "txn-pending", "client-1", "VENDOR A")
	seedTransaction(t, s, "txn-partial", "client-1", "VENDOR B")
	seedTransaction(t, s, "txn-done", "client-1", "VENDOR C")
	seedTransaction(t, s, "txn-failed", "client-1", "VENDOR D")
	seedTransaction(t, s, "txn-review", "client-1", "VENDOR E")
	seedTransaction(t, s, "txn-other-client", "client-2", "VENDOR F")

	setStatus := func(id string, status model.Status) {
		r := &model.ClassificationResult{
			TransactionID: id,
			ClientID:      "client-1",
			NormalizedKey: "vendor",
			Worksheet:     model.WorksheetPersonal,
			Status:        status,
		}
		require.NoError(t, s.CreateClassification(ctx, r))
		require.NoError(t, s.UpdateClassification(ctx, r))
	}
	setStatus("txn-partial", model.StatusPass2Done)
	setStatus("txn-done", model.StatusPass3Done)
	setStatus("txn-failed", model.StatusFailed)
	setStatus("txn-review", model.StatusNeedsReview)

	transactions, err := s.GetTransactionsToClassify(ctx, "client-1")
	require.NoError(t, err)

	ids := make([]string, len(transactions))
	for i, txn := range transactions {
		ids[i] = txn.ID
	}
	assert.ElementsMatch(t, []string{"txn-pending", "txn-partial"}, ids)
}
