package project_topic_build

import (
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	jc.Progress("cluster_projects", 5, "Clustering projects by key findings")
	out, err := steps.ProjectTopicBuild(jc.Ctx, steps.ProjectTopicBuildDeps{
		Log:    p.log,
		Files:  p.files,
		Topics: p.topics,
	}, steps.ProjectTopicBuildInput{
		EmbeddingDim:   p.opts.EmbeddingDim,
		MinClusterSize: p.opts.MinClusterSize,
		Eps:            p.opts.Eps,
		RebuildCorpus:  p.opts.RebuildCorpus || jc.PayloadBool("rebuild_corpus"),
	})
	if err != nil {
		jc.Fail("cluster_projects", err)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
