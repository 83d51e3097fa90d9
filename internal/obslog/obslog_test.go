package obslog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/gitbutlerapp/vbranch-core/internal/config"
)

func TestNewBuildsJSONAndConsoleLoggers(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New(config.LoggingConfig{Level: "info", Format: format})
		require.NoError(t, err)
		require.NotNil(t, log)
	}
}

func TestNewHonorsLevel(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewFallsBackToInfoOnInvalidLevel(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "not-a-level", Format: "json"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.InfoLevel))
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
