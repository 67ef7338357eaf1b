package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

func TestOpenNoneReturnsNil(t *testing.T) {
	svc, err := Open(logger.NewNop(), "none", "")
	require.NoError(t, err)
	assert.Nil(t, svc)
	assert.NoError(t, svc.Close())
}

func TestOpenSQLiteMigrates(t *testing.T) {
	svc, err := Open(logger.NewNop(), "sqlite", filepath.Join(t.TempDir(), "reg.db"))
	require.NoError(t, err)
	defer svc.Close()
	for _, table := range []string{"canonical_key", "canonical_key_source", "stage_run"} {
		assert.True(t, svc.DB().Migrator().HasTable(table), table)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(logger.NewNop(), "mysql", "x")
	assert.Error(t, err)
	_, err = Open(logger.NewNop(), "postgres", "")
	assert.Error(t, err)
}
