package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("json logger at info", func(t *testing.T) {
		logger, err := NewLogger(LoggerConfig{Level: "info", Format: "json", Environment: "test"})
		require.NoError(t, err)
		require.NotNil(t, logger)

		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("text logger at debug", func(t *testing.T) {
		logger, err := NewLogger(LoggerConfig{Level: "DEBUG", Format: "text"})
		require.NoError(t, err)

		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewLogger(LoggerConfig{Level: "verbose"})
		assert.Error(t, err)
	})
}
