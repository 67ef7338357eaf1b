package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/data/repos/runs"
	"github.com/yungbote/embers-fuse/internal/data/repos/testutil"
	types "github.com/yungbote/embers-fuse/internal/domain/runs"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/pkg/dbctx"
	"github.com/yungbote/embers-fuse/internal/platform/ctxutil"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

func TestContextWithoutLedger(t *testing.T) {
	jc := NewContext(context.Background(), nil, nil, nil, "", "encode", map[string]any{
		"documents": []any{"PMC1", " ", "PMC2"},
		"reset":     "true",
	})
	require.NotEmpty(t, jc.Run.RunID)
	assert.Equal(t, []string{"PMC1", "PMC2"}, jc.PayloadStrings("documents"))
	assert.True(t, jc.PayloadBool("reset"))
	assert.Equal(t, "", jc.PayloadString("missing"))

	rd := ctxutil.GetRunData(jc.Ctx)
	require.NotNil(t, rd)
	assert.Equal(t, "encode", rd.Stage)

	jc.Progress("embed", 40, "embedding keys")
	assert.Equal(t, 40, jc.Run.Progress)
	jc.Succeed("done", map[string]any{"keys": 3})
	assert.True(t, jc.Succeeded())
	assert.JSONEq(t, `{"keys":3}`, string(jc.Run.Result))
}

func TestContextFailIsTerminal(t *testing.T) {
	jc := NewContext(context.Background(), logger.NewNop(), nil, observability.NewMetrics(), "run-1", "align", nil)
	jc.Fail("synthesize", errors.New("oracle down"))
	jc.Succeed("done", nil)
	jc.Fail("apply", errors.New("later"))

	assert.False(t, jc.Succeeded())
	require.Error(t, jc.Err())
	assert.Contains(t, jc.Err().Error(), "synthesize: oracle down")
	assert.Equal(t, types.StatusFailed, jc.Run.Status)
}

func TestContextWritesLedger(t *testing.T) {
	db := testutil.DB(t)
	repo := runs.NewStageRunRepo(db, testutil.Logger(t))

	jc := NewContext(context.Background(), testutil.Logger(t), repo, nil, "run-2", "cluster-keys", nil)
	jc.Progress("traverse", 50, "walking hierarchy")
	jc.Succeed("done", map[string]any{"pure_clusters": 4})

	row, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, jc.Run.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, types.StatusSucceeded, row.Status)
	assert.Equal(t, 100, row.Progress)
	assert.NotNil(t, row.FinishedAt)
}

type namedHandler string

func (h namedHandler) Type() string          { return string(h) }
func (h namedHandler) Run(ctx *Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(namedHandler("integrate")))
	require.NoError(t, r.Register(namedHandler("encode")))
	require.Error(t, r.Register(namedHandler("encode")))
	require.Error(t, r.Register(namedHandler("")))
	require.Error(t, r.Register(nil))

	_, ok := r.Get("encode")
	assert.True(t, ok)
	assert.Equal(t, []string{"encode", "integrate"}, r.Types())
}
