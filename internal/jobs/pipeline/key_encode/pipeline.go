package key_encode

import (
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	jc.Progress("encode_keys", 5, "Encoding document keys")
	out, err := steps.KeyEncode(jc.Ctx, steps.KeyEncodeDeps{
		Log:   p.log,
		Files: p.files,
		AI:    p.ai,
	}, steps.KeyEncodeInput{
		Documents:        jc.PayloadStrings("documents"),
		MaxExampleValues: p.opts.MaxExampleValues,
		BatchSize:        p.opts.BatchSize,
		Workers:          p.opts.Workers,
		Seed:             p.opts.Seed,
	})
	if err != nil {
		jc.Fail("encode_keys", err)
		return nil
	}
	jc.Succeed("done", out)
	return nil
}
