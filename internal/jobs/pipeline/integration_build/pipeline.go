package integration_build

import (
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	jc.Progress("integrate", 10, "Building the schema registry")
	out, err := steps.IntegrationBuild(jc.Ctx, steps.IntegrationBuildDeps{
		Log:      p.log,
		Files:    p.files,
		DB:       p.db,
		Registry: p.registry,
	}, steps.IntegrationBuildInput{
		RunID: jc.Run.RunID,
	})
	if err != nil {
		jc.Fail("integrate", err)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
