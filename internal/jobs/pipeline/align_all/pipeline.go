package align_all

import (
	"context"
	"fmt"

	"github.com/yungbote/embers-fuse/internal/jobs/orchestrator"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/geo_harmonize"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/integration_build"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/key_cluster_build"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/key_encode"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/project_topic_build"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/transform_apply"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	stages, err := p.stages(jc.Payload())
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}

	jc.Progress("run", 1, "Running the alignment pipeline")
	st, err := p.engine.Run(jc.Ctx, jc.Run.RunID, stages)
	if err != nil {
		jc.Fail("run", err)
		return nil
	}
	jc.Succeed("done", st)
	return nil
}

// stages lists encode -> cluster-keys -> integrate -> align, then the
// optional geographic pass, with project clustering after encoding when any
// project embedding exists.
func (p *Pipeline) stages(payload map[string]any) ([]orchestrator.Stage, error) {
	handler := func(name string) (jobrt.Handler, error) {
		h, ok := p.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("no handler registered for stage %q", name)
		}
		return h, nil
	}

	order := []struct {
		name string
		deps []string
		skip func(ctx context.Context) (bool, error)
	}{
		{name: key_encode.StageName},
		{name: key_cluster_build.StageName, deps: []string{key_encode.StageName}},
		{name: integration_build.StageName, deps: []string{key_cluster_build.StageName}},
		{name: transform_apply.StageName, deps: []string{integration_build.StageName}},
		{
			name: geo_harmonize.StageName,
			deps: []string{transform_apply.StageName},
			skip: func(ctx context.Context) (bool, error) { return !p.opts.GeoEnabled, nil },
		},
		{
			name: project_topic_build.StageName,
			deps: []string{key_encode.StageName},
			skip: p.noProjects,
		},
	}

	out := make([]orchestrator.Stage, 0, len(order))
	for _, s := range order {
		h, err := handler(s.name)
		if err != nil {
			return nil, err
		}
		out = append(out, orchestrator.Stage{
			Name:    s.name,
			Deps:    s.deps,
			Handler: h,
			Payload: payload,
			Retry:   p.opts.Retry,
			Skip:    s.skip,
		})
	}
	return out, nil
}

func (p *Pipeline) noProjects(ctx context.Context) (bool, error) {
	docs, err := p.files.Documents(ctx)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if p.files.HasProjectEmbedding(doc) {
			return false, nil
		}
	}
	return true, nil
}
