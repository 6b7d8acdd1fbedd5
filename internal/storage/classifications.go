package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
)

const classificationColumns = `
	transaction_id, client_id, normalized_key,
	COALESCE(payee, ''), COALESCE(payee_confidence, ''), COALESCE(business_description, ''),
	COALESCE(general_category, ''), COALESCE(tax_category, ''), COALESCE(worksheet, ''),
	business_percentage, COALESCE(confidence, ''), COALESCE(reasoning, ''),
	COALESCE(open_questions, ''), COALESCE(source_of_truth, ''), status,
	COALESCE(failed_pass, ''), COALESCE(failure_reason, ''), classified_at`

func scanClassification(row interface{ Scan(...any) error }) (*model.ClassificationResult, error) {
	var r model.ClassificationResult
	var classifiedAt sql.NullTime
	err := row.Scan(
		&r.TransactionID, &r.ClientID, &r.NormalizedKey,
		&r.Payee, &r.PayeeConfidence, &r.BusinessDescription,
		&r.GeneralCategory, &r.TaxCategory, &r.Worksheet,
		&r.BusinessPercentage, &r.Confidence, &r.Reasoning,
		&r.OpenQuestions, &r.SourceOfTruth, &r.Status,
		&r.FailedPass, &r.FailureReason, &classifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if classifiedAt.Valid {
		r.ClassifiedAt = classifiedAt.Time
	}
	return &r, nil
}

// CreateClassification inserts the initial pending record for a transaction
// entering the pipeline. Creating an already-present record is a no-op so
// resumed batches do not clobber committed pass results.
func (s *SQLiteStorage) CreateClassification(ctx context.Context, result *model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateClassification(result); err != nil {
		return err
	}

	if result.Status == "" {
		result.Status = model.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classifications (transaction_id, client_id, normalized_key, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING
	`, result.TransactionID, result.ClientID, result.NormalizedKey, result.Status)

	if err != nil {
		return fmt.Errorf("failed to create classification: %w", err)
	}
	return nil
}

// UpdateClassification persists the full mutable field set of a result.
func (s *SQLiteStorage) UpdateClassification(ctx context.Context, result *model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateClassification(result); err != nil {
		return err
	}

	if result.ClassifiedAt.IsZero() {
		result.ClassifiedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE classifications SET
			normalized_key = ?,
			payee = ?,
			payee_confidence = ?,
			business_description = ?,
			general_category = ?,
			tax_category = ?,
			worksheet = ?,
			business_percentage = ?,
			confidence = ?,
			reasoning = ?,
			open_questions = ?,
			source_of_truth = ?,
			status = ?,
			failed_pass = ?,
			failure_reason = ?,
			classified_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE transaction_id = ?
	`,
		result.NormalizedKey,
		result.Payee,
		string(result.PayeeConfidence),
		result.BusinessDescription,
		result.GeneralCategory,
		result.TaxCategory,
		string(result.Worksheet),
		result.BusinessPercentage,
		string(result.Confidence),
		result.Reasoning,
		result.OpenQuestions,
		string(result.SourceOfTruth),
		string(result.Status),
		string(result.FailedPass),
		result.FailureReason,
		result.ClassifiedAt,
		result.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetClassification retrieves the classification record for a transaction.
func (s *SQLiteStorage) GetClassification(ctx context.Context, transactionID string) (*model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+classificationColumns+`
		FROM classifications
		WHERE transaction_id = ?
	`, transactionID)

	result, err := scanClassification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return result, nil
}

// GetPriorClassifications returns the client's classifications that have
// completed the given pass, most recent first. The matcher searches these for
// a reusable prior.
func (s *SQLiteStorage) GetPriorClassifications(ctx context.Context, clientID string, pass model.PassType) ([]model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(clientID, "clientID"); err != nil {
		return nil, err
	}
	if err := validatePass(pass); err != nil {
		return nil, err
	}

	statuses := statusesCovering(pass)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+classificationColumns+`
		FROM classifications
		WHERE client_id = ? AND status IN (`+placeholders(len(statuses))+`)
		ORDER BY classified_at DESC, transaction_id DESC
	`, append([]any{clientID}, statuses...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior classifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.ClassificationResult
	for rows.Next() {
		result, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		results = append(results, *result)
	}

	return results, rows.Err()
}

// ResetClassification rewinds a transaction to re-run from the given pass,
// preserving the fields earlier passes produced.
func (s *SQLiteStorage) ResetClassification(ctx context.Context, transactionID string, fromPass model.PassType) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validatePass(fromPass); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE classifications SET
			status = ?,
			failed_pass = '',
			failure_reason = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE transaction_id = ?
	`, string(model.PriorStatus(fromPass)), transactionID)
	if err != nil {
		return fmt.Errorf("failed to reset classification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// statusesCovering lists the statuses at or beyond completion of a pass.
func statusesCovering(pass model.PassType) []any {
	switch pass {
	case model.PassPayee:
		return []any{string(model.StatusPass1Done), string(model.StatusPass2Done), string(model.StatusPass3Done), string(model.StatusNeedsReview)}
	case model.PassCategory:
		return []any{string(model.StatusPass2Done), string(model.StatusPass3Done), string(model.StatusNeedsReview)}
	default:
		return []any{string(model.StatusPass3Done), string(model.StatusNeedsReview)}
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}
