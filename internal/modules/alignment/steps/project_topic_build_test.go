package steps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

func seedProjects(t *testing.T, ctx context.Context, files *store.Store) {
	t.Helper()
	for i := 0; i < 6; i++ {
		emb := []float32{1, 0.01 * float32(i), 0}
		findings := "gut bacteria"
		if i >= 3 {
			emb = []float32{0, 0.01 * float32(i), 1}
			findings = "soil fungi"
		}
		doc := fmt.Sprintf("PMC%d", i+1)
		require.NoError(t, files.SaveProjectEmbedding(ctx, doc, types.ProjectEmbedding{KeyFindings: findings, Embedding: emb}))
	}
}

func TestProjectTopicBuildLabelsDensityGroups(t *testing.T) {
	ctx := context.Background()
	files, _ := newTestStore(t)
	seedProjects(t, ctx, files)

	topics := &stubTopics{}
	out, err := ProjectTopicBuild(ctx, ProjectTopicBuildDeps{Log: logger.NewNop(), Files: files, Topics: topics}, ProjectTopicBuildInput{
		MinClusterSize: 2,
		Eps:            0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, out.Projects)
	assert.Equal(t, 2, out.Clusters)
	assert.Equal(t, 0, out.Noise)
	assert.Equal(t, 2, topics.calls)

	texts, embs, ok, err := files.LoadProjectCorpus(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, texts, 6)
	assert.Len(t, embs, 6)
}

func TestProjectTopicBuildKeepsFailedClustersUnlabelled(t *testing.T) {
	ctx := context.Background()
	files, _ := newTestStore(t)
	seedProjects(t, ctx, files)

	topics := &stubTopics{err: errors.New("oracle down")}
	out, err := ProjectTopicBuild(ctx, ProjectTopicBuildDeps{Log: logger.NewNop(), Files: files, Topics: topics}, ProjectTopicBuildInput{
		MinClusterSize: 2,
		Eps:            0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TopicFailures)
}

func TestProjectTopicBuildWithoutProjects(t *testing.T) {
	files, _ := newTestStore(t)
	out, err := ProjectTopicBuild(context.Background(), ProjectTopicBuildDeps{Log: logger.NewNop(), Files: files, Topics: &stubTopics{}}, ProjectTopicBuildInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Projects)
}
