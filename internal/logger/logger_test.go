package logger

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/brewline/internal/config"
)

func TestBuildHonoursLevel(t *testing.T) {
	logger, err := Build(config.Observability{ServiceName: "brewline", LogLevel: "warn", LogEncoding: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestBuildFallsBackToInfo(t *testing.T) {
	logger, err := Build(config.Observability{LogLevel: "chatty", LogEncoding: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestIgnoreTTYSync(t *testing.T) {
	assert.NoError(t, ignoreTTYSync(nil))
	assert.NoError(t, ignoreTTYSync(fmt.Errorf("sync /dev/stdout: %w", syscall.EINVAL)))
	other := errors.New("disk full")
	assert.Equal(t, other, ignoreTTYSync(other))
}
