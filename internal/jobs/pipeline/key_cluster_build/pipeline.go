package key_cluster_build

import (
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	jc.Progress("cluster_keys", 5, "Clustering keys into pure groups")
	out, err := steps.KeyClusterBuild(jc.Ctx, steps.KeyClusterBuildDeps{
		Log:     p.log,
		Files:   p.files,
		Purity:  p.purity,
		Labels:  p.labels,
		Sampler: p.sampler,
		Metrics: p.metrics,
	}, steps.KeyClusterBuildInput{
		EmbeddingDim:  p.opts.EmbeddingDim,
		Purity:        p.opts.Purity,
		RebuildCorpus: p.opts.RebuildCorpus || jc.PayloadBool("rebuild_corpus"),
	})
	if err != nil {
		jc.Fail("cluster_keys", err)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
