package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/service"
)

// GetCacheEntry retrieves the cached partial result for (pass, key). A
// missing entry returns (nil, nil). An entry that fails to deserialize is
// treated as a miss, never as a fatal error.
func (s *SQLiteStorage) GetCacheEntry(ctx context.Context, pass model.PassType, key string) (*service.CacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePass(pass); err != nil {
		return nil, err
	}
	if err := validateCacheKey(key); err != nil {
		if errors.Is(err, ErrSentinelKey) {
			return nil, nil
		}
		return nil, err
	}

	var fields string
	var confidence string
	var lastUpdated time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT fields, confidence, last_updated
		FROM cache_entries
		WHERE pass_type = ? AND key = ?
	`, string(pass), key).Scan(&fields, &confidence, &lastUpdated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	partial, decodeErr := decodePartial([]byte(fields))
	if decodeErr != nil {
		slog.Warn("Corrupt cache entry treated as miss",
			"pass", pass,
			"key", key,
			"error", decodeErr)
		return nil, nil
	}

	return &service.CacheEntry{
		Pass:        pass,
		Key:         key,
		Partial:     *partial,
		Confidence:  model.Confidence(confidence),
		LastUpdated: lastUpdated,
	}, nil
}

// MergeCacheEntry merges a partial result into the cache for (pass, key).
// An incoming field overwrites a cached field only when the incoming
// confidence is strictly higher or the cached field is absent; high-confidence
// data is never downgraded. The read-modify-write runs in one database
// transaction so concurrent workers cannot interleave merges.
func (s *SQLiteStorage) MergeCacheEntry(ctx context.Context, pass model.PassType, key string, partial model.PartialResult, confidence model.Confidence) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePass(pass); err != nil {
		return err
	}
	if err := validateCacheKey(key); err != nil {
		if errors.Is(err, ErrSentinelKey) {
			// Sentinel keys are silently skipped so empty descriptions
			// never share a cache slot.
			return nil
		}
		return err
	}
	if !confidence.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidConfidence, confidence)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cachedFields string
	var cachedConfidence string
	merged := partial
	entryConfidence := confidence

	err = tx.QueryRowContext(ctx, `
		SELECT fields, confidence
		FROM cache_entries
		WHERE pass_type = ? AND key = ?
	`, string(pass), key).Scan(&cachedFields, &cachedConfidence)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First write for this key.
	case err != nil:
		return fmt.Errorf("failed to read cache entry: %w", err)
	default:
		cached, decodeErr := decodePartial([]byte(cachedFields))
		if decodeErr != nil {
			slog.Warn("Corrupt cache entry overwritten by merge",
				"pass", pass,
				"key", key,
				"error", decodeErr)
			break
		}
		merged = mergePartials(*cached, model.Confidence(cachedConfidence), partial, confidence)
		if model.Confidence(cachedConfidence).Rank() > confidence.Rank() {
			entryConfidence = model.Confidence(cachedConfidence)
		}
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_entries (pass_type, key, fields, confidence, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pass_type, key) DO UPDATE SET
			fields = excluded.fields,
			confidence = excluded.confidence,
			last_updated = excluded.last_updated
	`, string(pass), key, string(encoded), string(entryConfidence), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return tx.Commit()
}

// mergePartials applies the field-level merge policy: incoming wins only on
// strictly higher confidence or cached absence.
func mergePartials(cached model.PartialResult, cachedConf model.Confidence, incoming model.PartialResult, incomingConf model.Confidence) model.PartialResult {
	overwrite := incomingConf.Rank() > cachedConf.Rank()

	merged := cached

	mergeString := func(dst *string, src string) {
		if src != "" && (overwrite || *dst == "") {
			*dst = src
		}
	}

	mergeString(&merged.Payee, incoming.Payee)
	mergeString(&merged.BusinessDescription, incoming.BusinessDescription)
	mergeString(&merged.GeneralCategory, incoming.GeneralCategory)
	mergeString(&merged.TaxCategory, incoming.TaxCategory)
	mergeString(&merged.Reasoning, incoming.Reasoning)

	if incoming.Worksheet != "" && (overwrite || merged.Worksheet == "") {
		merged.Worksheet = incoming.Worksheet
	}
	if incoming.BusinessPercentage != nil && (overwrite || merged.BusinessPercentage == nil) {
		pct := *incoming.BusinessPercentage
		merged.BusinessPercentage = &pct
	}
	if incoming.Confidence != "" && (overwrite || merged.Confidence == "") {
		merged.Confidence = incoming.Confidence
	}

	for k, v := range incoming.Extra {
		if merged.Extra == nil {
			merged.Extra = make(map[string]string)
		}
		if _, exists := merged.Extra[k]; overwrite || !exists {
			merged.Extra[k] = v
		}
	}

	return merged
}

// decodePartial strictly decodes a cached field blob. Unknown fields are a
// schema violation and mark the entry corrupt.
func decodePartial(data []byte) (*model.PartialResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var partial model.PartialResult
	if err := dec.Decode(&partial); err != nil {
		return nil, err
	}
	return &partial, nil
}
