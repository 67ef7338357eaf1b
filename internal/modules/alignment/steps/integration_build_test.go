package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

func TestBuildIntegrationGroupsByLabelAndDocument(t *testing.T) {
	texts := []types.KeyRecord{
		{DocumentID: "PMC1", Key: "Age", Description: "age in years"},
		{DocumentID: "PMC2", Key: "host_age", Description: "host age in months"},
		{DocumentID: "PMC1", Key: "age_at_collection", Description: "age at sampling"},
		{DocumentID: "PMC2", Key: "site", Description: "body site"},
	}
	labels := []string{"Age", "Age", "Age", ""}
	descs := []types.LabelDescription{{Label: "Age", Description: "age of the subject"}}

	integ, variations := BuildIntegration(texts, labels, descs)
	require.Len(t, integ, 1)
	ck := integ["Age"]
	assert.Equal(t, "age of the subject", ck.Description)
	require.Len(t, ck.OriginalKeys, 2)
	assert.Equal(t, "PMC1", ck.OriginalKeys[0].DocumentID)
	assert.Equal(t, []string{"Age", "age_at_collection"}, ck.OriginalKeys[0].Keys)
	assert.Equal(t, []string{"age in years", "age at sampling"}, ck.OriginalKeys[0].Descriptions)
	assert.Equal(t, "PMC2", ck.OriginalKeys[1].DocumentID)

	assert.Equal(t, []string{"Age", "age_at_collection", "host_age"}, variations["Age"].KeyNames)
}

func TestIntegrationBuildRejectsLabelCountMismatch(t *testing.T) {
	ctx := context.Background()
	files, _ := newTestStore(t)
	require.NoError(t, files.SaveKeyCorpus(ctx, []types.KeyRecord{{DocumentID: "PMC1", Key: "Age"}}, [][]float32{{1}}))
	require.NoError(t, files.SaveClusterResult(ctx, store.ClusterResult{Labels: []string{"Age", "Age"}}))

	_, err := IntegrationBuild(ctx, IntegrationBuildDeps{Log: logger.NewNop(), Files: files}, IntegrationBuildInput{})
	require.Error(t, err)
}
