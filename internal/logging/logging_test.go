package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesRotatedJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")

	logger, err := New(Options{Mode: "production", File: path})
	require.NoError(t, err)

	logger.Info("combo applied", zap.String("combo_id", "combo-coffee-pair"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"combo_id":"combo-coffee-pair"`)
	assert.Contains(t, string(raw), `"msg":"combo applied"`)
}

func TestNewDevelopmentEnablesDebug(t *testing.T) {
	logger, err := New(Options{Mode: "Development"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New(Options{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	logger := zap.NewExample()
	assert.Same(t, logger, OrNop(logger))
}
