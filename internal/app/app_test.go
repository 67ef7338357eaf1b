package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/data/db"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.IntegrationDir = filepath.Join(dir, "_integration")
	cfg.MetricsTextfile = filepath.Join(dir, "embers.prom")
	return cfg
}

func TestNewWithoutOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	ctx := context.Background()

	a, err := NewWithLogger(ctx, testConfig(t), logger.NewNop())
	require.NoError(t, err)

	stages := a.Stages()
	assert.Contains(t, stages, "integrate")
	assert.Contains(t, stages, "harmonize-geo")
	assert.Contains(t, stages, "all")
	assert.NotContains(t, stages, "encode")

	err = a.RunStage(ctx, "encode", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	err = a.RunStage(ctx, "bogus", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")

	require.NoError(t, a.Close(ctx))
	_, statErr := os.Stat(a.Cfg.MetricsTextfile)
	assert.NoError(t, statErr)
}

func TestNewWithSQLiteLedger(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Registry.Driver = db.DriverSQLite
	cfg.Registry.DSN = filepath.Join(cfg.DataDir, "embers.db")

	a, err := NewWithLogger(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	require.NotNil(t, a.Repos.StageRuns)
	require.NotNil(t, a.Repos.CanonicalKeys)
	for _, name := range []string{"encode", "cluster-keys", "integrate", "align", "harmonize-geo", "cluster-projects", "all"} {
		assert.Contains(t, a.Stages(), name)
	}
}
