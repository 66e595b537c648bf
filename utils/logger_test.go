package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerLevels(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("LOCALESYNC_LOG_LEVEL", "warn")
	defer SetLevel(zapcore.InfoLevel)

	InitLogger()
	require.NotNil(t, Logger)
	assert.False(t, Logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Core().Enabled(zapcore.WarnLevel))

	SetLevel(zapcore.DebugLevel)
	assert.True(t, Logger.Core().Enabled(zapcore.DebugLevel))
}
