package key_cluster_build

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/cluster"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const StageName = "cluster-keys"

type Options struct {
	EmbeddingDim  int
	Purity        cluster.PurityConfig
	RebuildCorpus bool
}

type Pipeline struct {
	log     *logger.Logger
	files   *store.Store
	purity  oracle.PurityOracle
	labels  oracle.LabelOracle
	sampler cluster.Sampler
	metrics *observability.Metrics
	opts    Options
}

func New(
	baseLog *logger.Logger,
	files *store.Store,
	purity oracle.PurityOracle,
	labels oracle.LabelOracle,
	sampler cluster.Sampler,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", StageName),
		files:   files,
		purity:  purity,
		labels:  labels,
		sampler: sampler,
		metrics: metrics,
		opts:    opts,
	}
}

func (p *Pipeline) Type() string { return StageName }
