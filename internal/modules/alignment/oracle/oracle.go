package oracle

import (
	"context"

	"github.com/yungbote/embers-fuse/internal/domain/alignment"
)

// PurityOracle scores how homogeneous a set of key descriptors is, in [0,1].
type PurityOracle interface {
	EvaluatePurity(ctx context.Context, descriptors []string) (float64, error)
}

type LabelOracle interface {
	AssignLabel(ctx context.Context, descriptors []string) (alignment.LabelDescription, error)
}

// TransformRequest carries everything the synthesizer shows the oracle for
// one (document, canonical key) pair.
type TransformRequest struct {
	ReferenceKeys         []string
	ReferenceDescriptions map[string]string
	TargetKey             string
	TargetDescription     string
	SampleValues          []alignment.SampleRecord
}

type TransformOracle interface {
	SynthesizeTransform(ctx context.Context, req TransformRequest) (alignment.TransformationSpec, error)
}

type TopicOracle interface {
	SummarizeTopic(ctx context.Context, findings []string) (alignment.ProjectTopic, error)
}
