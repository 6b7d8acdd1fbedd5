package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

// SaveTransactions stores a batch of transactions, skipping duplicates by hash.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range transactions {
		txn := &transactions[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, client_id, hash, date, description, amount, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(hash) DO NOTHING
		`, txn.ID, txn.ClientID, txn.Hash, txn.Date, txn.Description, txn.Amount, txn.Source)

		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var txn model.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, hash, date, description, amount, COALESCE(source, '')
		FROM transactions
		WHERE id = ?
	`, id).Scan(&txn.ID, &txn.ClientID, &txn.Hash, &txn.Date, &txn.Description, &txn.Amount, &txn.Source)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

// GetTransactionsToClassify returns the client's transactions whose
// classification has not reached a terminal state.
func (s *SQLiteStorage) GetTransactionsToClassify(ctx context.Context, clientID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(clientID, "clientID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.client_id, t.hash, t.date, t.description, t.amount, COALESCE(t.source, '')
		FROM transactions t
		LEFT JOIN classifications c ON c.transaction_id = t.id
		WHERE t.client_id = ?
		  AND (c.transaction_id IS NULL OR c.status NOT IN ('PASS3_DONE', 'FAILED', 'NEEDS_REVIEW'))
		ORDER BY t.date, t.id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		if err := rows.Scan(&txn.ID, &txn.ClientID, &txn.Hash, &txn.Date, &txn.Description, &txn.Amount, &txn.Source); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}
