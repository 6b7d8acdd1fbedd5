package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/normalize"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCacheMergeAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	partial := model.PartialResult{
		Payee:               "Lowe's",
		BusinessDescription: "Home improvement retailer",
		Confidence:          model.ConfidenceMedium,
	}
	require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "lowe's", partial, model.ConfidenceMedium))

	entry, err := s.GetCacheEntry(ctx, model.PassPayee, "lowe's")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Lowe's", entry.Partial.Payee)
	assert.Equal(t, model.ConfidenceMedium, entry.Confidence)
	assert.WithinDuration(t, time.Now(), entry.LastUpdated, time.Minute)
}

func TestCacheMonotonicity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "netflix.com",
		model.PartialResult{Payee: "Netflix", Confidence: model.ConfidenceHigh}, model.ConfidenceHigh))

	t.Run("lower confidence never overwrites", func(t *testing.T) {
		require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "netflix.com",
			model.PartialResult{Payee: "Netflix DVD", Confidence: model.ConfidenceMedium}, model.ConfidenceMedium))

		entry, err := s.GetCacheEntry(ctx, model.PassPayee, "netflix.com")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "Netflix", entry.Partial.Payee)
		assert.Equal(t, model.ConfidenceHigh, entry.Confidence)
	})

	t.Run("equal confidence never overwrites", func(t *testing.T) {
		require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "netflix.com",
			model.PartialResult{Payee: "Netflix Inc", Confidence: model.ConfidenceHigh}, model.ConfidenceHigh))

		entry, err := s.GetCacheEntry(ctx, model.PassPayee, "netflix.com")
		require.NoError(t, err)
		assert.Equal(t, "Netflix", entry.Partial.Payee)
	})

	t.Run("absent field is filled by lower confidence", func(t *testing.T) {
		require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "netflix.com",
			model.PartialResult{BusinessDescription: "Streaming service", Confidence: model.ConfidenceLow}, model.ConfidenceLow))

		entry, err := s.GetCacheEntry(ctx, model.PassPayee, "netflix.com")
		require.NoError(t, err)
		assert.Equal(t, "Netflix", entry.Partial.Payee)
		assert.Equal(t, "Streaming service", entry.Partial.BusinessDescription)
		assert.Equal(t, model.ConfidenceHigh, entry.Confidence)
	})

	t.Run("higher confidence overwrites", func(t *testing.T) {
		pct := 100
		require.NoError(t, s.MergeCacheEntry(ctx, model.PassTax, "netflix.com",
			model.PartialResult{TaxCategory: "Personal", Worksheet: model.WorksheetPersonal, Confidence: model.ConfidenceLow}, model.ConfidenceLow))
		require.NoError(t, s.MergeCacheEntry(ctx, model.PassTax, "netflix.com",
			model.PartialResult{TaxCategory: "Software & Subscriptions", Worksheet: model.Worksheet6A, BusinessPercentage: &pct, Confidence: model.ConfidenceHigh}, model.ConfidenceHigh))

		entry, err := s.GetCacheEntry(ctx, model.PassTax, "netflix.com")
		require.NoError(t, err)
		assert.Equal(t, "Software & Subscriptions", entry.Partial.TaxCategory)
		assert.Equal(t, model.Worksheet6A, entry.Partial.Worksheet)
		require.NotNil(t, entry.Partial.BusinessPercentage)
		assert.Equal(t, 100, *entry.Partial.BusinessPercentage)
	})
}

func TestCachePassPartitioning(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "lowe's",
		model.PartialResult{Payee: "Lowe's", Confidence: model.ConfidenceHigh}, model.ConfidenceHigh))

	entry, err := s.GetCacheEntry(ctx, model.PassCategory, "lowe's")
	require.NoError(t, err)
	assert.Nil(t, entry, "payee cache entry must not leak into the category pass")

	entry, err = s.GetCacheEntry(ctx, model.PassTax, "lowe's")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCacheSentinelKeyNeverCached(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, normalize.EmptyKey,
		model.PartialResult{Payee: "Ghost", Confidence: model.ConfidenceHigh}, model.ConfidenceHigh))

	entry, err := s.GetCacheEntry(ctx, model.PassPayee, normalize.EmptyKey)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCacheCorruptionIsAMiss(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (pass_type, key, fields, confidence, last_updated)
		VALUES ('payee', 'mangled', '{not json', 'high', ?)
	`, time.Now())
	require.NoError(t, err)

	entry, err := s.GetCacheEntry(ctx, model.PassPayee, "mangled")
	require.NoError(t, err, "corrupt entries are a miss, not an error")
	assert.Nil(t, entry)

	// A merge over the corrupt entry replaces it with clean data.
	require.NoError(t, s.MergeCacheEntry(ctx, model.PassPayee, "mangled",
		model.PartialResult{Payee: "Recovered", Confidence: model.ConfidenceLow}, model.ConfidenceLow))

	entry, err = s.GetCacheEntry(ctx, model.PassPayee, "mangled")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Recovered", entry.Partial.Payee)
}

func TestCacheUnknownFieldIsCorruption(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (pass_type, key, fields, confidence, last_updated)
		VALUES ('payee', 'stale-schema', '{"payee": "X", "dropped_field": true}', 'high', ?)
	`, time.Now())
	require.NoError(t, err)

	entry, err := s.GetCacheEntry(ctx, model.PassPayee, "stale-schema")
	require.NoError(t, err)
	assert.Nil(t, entry)
}
