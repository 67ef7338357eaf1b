package align_all

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type recordingHandler struct {
	name  string
	fail  bool
	trace *[]string
}

func (h recordingHandler) Type() string { return h.name }

func (h recordingHandler) Run(jc *jobrt.Context) error {
	*h.trace = append(*h.trace, h.name)
	if h.fail {
		jc.Fail("run", errors.New("boom"))
		return nil
	}
	jc.Succeed("done", nil)
	return nil
}

func newTestPipeline(t *testing.T, opts Options, failing string) (*Pipeline, *store.Store, *[]string) {
	t.Helper()
	files := store.New(logger.NewNop(), store.Layout{DataDir: t.TempDir()})
	trace := &[]string{}
	reg := jobrt.NewRegistry()
	for _, name := range []string{"encode", "cluster-keys", "integrate", "align", "harmonize-geo", "cluster-projects"} {
		require.NoError(t, reg.Register(recordingHandler{name: name, fail: name == failing, trace: trace}))
	}
	engine := orchestrator.NewEngine(logger.NewNop(), nil, nil)
	return New(logger.NewNop(), files, engine, reg, opts), files, trace
}

func TestAllRunsStagesInOrder(t *testing.T) {
	p, files, trace := newTestPipeline(t, Options{GeoEnabled: true}, "")
	require.NoError(t, files.SaveProjectEmbedding(context.Background(), "PMC1", types.ProjectEmbedding{
		KeyFindings: "gut",
		Embedding:   []float32{1},
	}))

	jc := jobrt.NewContext(context.Background(), logger.NewNop(), nil, nil, "run", StageName, nil)
	require.NoError(t, p.Run(jc))
	require.True(t, jc.Succeeded(), "run failed: %v", jc.Err())
	assert.Equal(t, []string{"encode", "cluster-keys", "integrate", "align", "harmonize-geo", "cluster-projects"}, *trace)
}

func TestAllSkipsOptionalStages(t *testing.T) {
	p, _, trace := newTestPipeline(t, Options{}, "")
	jc := jobrt.NewContext(context.Background(), logger.NewNop(), nil, nil, "run", StageName, nil)
	require.NoError(t, p.Run(jc))
	require.True(t, jc.Succeeded())
	assert.Equal(t, []string{"encode", "cluster-keys", "integrate", "align"}, *trace)
}

func TestAllStopsOnStageFailure(t *testing.T) {
	p, _, trace := newTestPipeline(t, Options{GeoEnabled: true}, "integrate")
	jc := jobrt.NewContext(context.Background(), logger.NewNop(), nil, nil, "run", StageName, nil)
	require.NoError(t, p.Run(jc))
	require.Error(t, jc.Err())
	assert.Equal(t, []string{"encode", "cluster-keys", "integrate"}, *trace)
}

func TestAllRequiresEveryHandler(t *testing.T) {
	files := store.New(logger.NewNop(), store.Layout{DataDir: t.TempDir()})
	p := New(logger.NewNop(), files, orchestrator.NewEngine(nil, nil, nil), jobrt.NewRegistry(), Options{})
	jc := jobrt.NewContext(context.Background(), nil, nil, nil, "run", StageName, nil)
	require.NoError(t, p.Run(jc))
	require.Error(t, jc.Err())
}
