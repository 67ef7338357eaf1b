package transform_apply

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/transform"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const StageName = "align"

type Options struct {
	// TargetsFile optionally restricts alignment to the labels it lists.
	TargetsFile   string
	SampleRecords int
	Workers       int
	// Reset reseeds every aligned copy from the raw records before aligning.
	Reset bool
}

type Pipeline struct {
	log      *logger.Logger
	files    *store.Store
	oracle   oracle.TransformOracle
	executor *transform.Executor
	metrics  *observability.Metrics
	opts     Options
}

func New(
	baseLog *logger.Logger,
	files *store.Store,
	transforms oracle.TransformOracle,
	executor *transform.Executor,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", StageName),
		files:    files,
		oracle:   transforms,
		executor: executor,
		metrics:  metrics,
		opts:     opts,
	}
}

func (p *Pipeline) Type() string { return StageName }
