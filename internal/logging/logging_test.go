package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_InfoByDefault(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel), "debug disabled by default")
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_DebugTeesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")

	logger, err := New(Options{Debug: true, Dir: dir})
	require.NoError(t, err)
	logger.Debug("hello from the test")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
	assert.Contains(t, string(data), "DEBUG")
}
