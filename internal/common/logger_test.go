package common

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	ctx := context.Background()

	require.NoError(t, SetupLogger(slog.LevelWarn, "json"))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelWarn))
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelInfo))

	require.NoError(t, SetupLogger(slog.LevelDebug, "console"))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelDebug))

	t.Run("unknown format falls back to text", func(t *testing.T) {
		require.NoError(t, SetupLogger(slog.LevelInfo, "syslog"))
		assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))
		assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))
	})
}
