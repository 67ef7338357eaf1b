package geo_harmonize

import (
	"fmt"

	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	label := p.opts.TargetLabel
	if v := jc.PayloadString("label"); v != "" {
		label = v
	}
	if label == "" {
		jc.Fail("validate", fmt.Errorf("missing geographic target label"))
		return nil
	}

	jc.Progress("harmonize_geo", 5, "Resolving geographic values")
	out, err := steps.GeoHarmonize(jc.Ctx, steps.GeoHarmonizeDeps{
		Log:     p.log,
		Files:   p.files,
		Samples: p.files,
		Geo:     p.geo,
	}, steps.GeoHarmonizeInput{
		TargetLabel: label,
		FieldPrefix: p.opts.FieldPrefix,
		Documents:   jc.PayloadStrings("documents"),
		Workers:     p.opts.Workers,
	})
	if err != nil {
		jc.Fail("harmonize_geo", err)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
