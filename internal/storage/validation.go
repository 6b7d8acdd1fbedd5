// Package storage provides the data persistence layer for the shoebox pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/normalize"
)

// Validation errors.
var (
	ErrNilContext            = errors.New("context cannot be nil")
	ErrEmptyString           = errors.New("string parameter cannot be empty")
	ErrNilParameter          = errors.New("parameter cannot be nil")
	ErrEmptySlice            = errors.New("slice cannot be empty")
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrInvalidClassification = errors.New("invalid classification")
	ErrSentinelKey           = errors.New("sentinel key cannot be cached")
	ErrInvalidPass           = errors.New("invalid pass type")
	ErrInvalidConfidence     = errors.New("invalid confidence")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validatePass ensures the pass type is one of the three pipeline passes.
func validatePass(pass model.PassType) error {
	switch pass {
	case model.PassPayee, model.PassCategory, model.PassTax:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPass, pass)
	}
}

// validateCacheKey rejects empty and sentinel keys.
func validateCacheKey(key string) error {
	if err := validateString(key, "key"); err != nil {
		return err
	}
	if key == normalize.EmptyKey {
		return ErrSentinelKey
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if !txn.WellFormed() {
		return fmt.Errorf("%w: id=%q", ErrInvalidTransaction, txn.ID)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateClassification validates a classification result before persistence.
func validateClassification(result *model.ClassificationResult) error {
	if result == nil {
		return fmt.Errorf("%w: classification", ErrNilParameter)
	}
	if err := validateString(result.TransactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateString(result.ClientID, "clientID"); err != nil {
		return err
	}
	if result.Worksheet != "" && !result.Worksheet.Valid() {
		return fmt.Errorf("%w: worksheet %q", ErrInvalidClassification, result.Worksheet)
	}
	if result.BusinessPercentage < 0 || result.BusinessPercentage > 100 {
		return fmt.Errorf("%w: business percentage %d", ErrInvalidClassification, result.BusinessPercentage)
	}
	return nil
}
