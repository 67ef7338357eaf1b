package steps

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type TransformSynthesizeDeps struct {
	Log    *logger.Logger
	Specs  store.SpecStore
	Oracle oracle.TransformOracle
}

type TransformSynthesizeInput struct {
	DocumentID            string
	Label                 string
	ReferenceKeys         []string
	ReferenceDescriptions map[string]string
	TargetDescription     string
	// Records are the document's samples; at most SampleSize are shown to the oracle.
	Records    []types.SampleRecord
	SampleSize int
}

type TransformSynthesizeOutput struct {
	Spec types.TransformationSpec
	// Cached is set when the spec was already persisted and no oracle call was made.
	Cached bool
}

// TransformSynthesize returns the conversion spec for one (document, label)
// pair, asking the oracle only when none is persisted. A new spec is
// persisted before it is returned.
func TransformSynthesize(ctx context.Context, deps TransformSynthesizeDeps, in TransformSynthesizeInput) (TransformSynthesizeOutput, error) {
	out := TransformSynthesizeOutput{}
	if deps.Log == nil || deps.Specs == nil || deps.Oracle == nil {
		return out, fmt.Errorf("transform_synthesize: missing deps")
	}
	if in.DocumentID == "" || in.Label == "" {
		return out, fmt.Errorf("transform_synthesize: missing document or label")
	}

	spec, ok, err := deps.Specs.GetSpec(ctx, in.DocumentID, in.Label)
	if err != nil {
		return out, fmt.Errorf("transform_synthesize: %w", err)
	}
	if ok {
		return TransformSynthesizeOutput{Spec: spec, Cached: true}, nil
	}

	if in.SampleSize <= 0 {
		in.SampleSize = 10
	}
	spec, err = deps.Oracle.SynthesizeTransform(ctx, oracle.TransformRequest{
		ReferenceKeys:         in.ReferenceKeys,
		ReferenceDescriptions: in.ReferenceDescriptions,
		TargetKey:             in.Label,
		TargetDescription:     in.TargetDescription,
		SampleValues:          sampleReferenceValues(in.Records, in.ReferenceKeys, in.SampleSize),
	})
	if err != nil {
		return out, fmt.Errorf("transform_synthesize %s/%s: %w", in.DocumentID, in.Label, err)
	}
	if len(spec.InputKeys) == 0 {
		spec.InputKeys = append([]string(nil), in.ReferenceKeys...)
	}
	if spec.Target == "" {
		spec.Target = in.Label
	}
	if err := deps.Specs.PutSpec(ctx, in.DocumentID, in.Label, spec); err != nil {
		return out, fmt.Errorf("transform_synthesize: %w", err)
	}
	deps.Log.Debug("transform synthesized",
		"document_id", in.DocumentID,
		"label", in.Label,
		"feasible", spec.Feasible(),
	)
	return TransformSynthesizeOutput{Spec: spec}, nil
}

// sampleReferenceValues picks up to n random records and keeps only keys.
func sampleReferenceValues(records []types.SampleRecord, keys []string, n int) []types.SampleRecord {
	idx := rand.Perm(len(records))
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]types.SampleRecord, 0, len(idx))
	for _, i := range idx {
		rec := types.SampleRecord{}
		for _, k := range keys {
			if v, ok := records[i][k]; ok {
				rec[k] = v
			}
		}
		out = append(out, rec)
	}
	return out
}
