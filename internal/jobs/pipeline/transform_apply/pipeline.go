package transform_apply

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/steps"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	targets, err := store.LoadTargets(p.opts.TargetsFile)
	if err != nil {
		jc.Fail("validate", fault.Config("load targets", err))
		return nil
	}

	jc.Progress("align", 5, "Synthesizing and applying transformations")
	out, err := steps.TransformApply(jc.Ctx, steps.TransformApplyDeps{
		Log:      p.log,
		Files:    p.files,
		Samples:  p.files,
		Specs:    p.files,
		Oracle:   p.oracle,
		Executor: p.executor,
		Metrics:  p.metrics,
	}, steps.TransformApplyInput{
		Targets:       targets,
		Documents:     jc.PayloadStrings("documents"),
		SampleRecords: p.opts.SampleRecords,
		ResetSamples:  p.opts.Reset || jc.PayloadBool("reset"),
		Workers:       p.opts.Workers,
	})
	if err != nil {
		jc.Fail("align", err)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
