package project_topic_build

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const StageName = "cluster-projects"

type Options struct {
	EmbeddingDim   int
	MinClusterSize int
	Eps            float64
	RebuildCorpus  bool
}

type Pipeline struct {
	log    *logger.Logger
	files  *store.Store
	topics oracle.TopicOracle
	opts   Options
}

func New(baseLog *logger.Logger, files *store.Store, topics oracle.TopicOracle, opts Options) *Pipeline {
	return &Pipeline{
		log:    baseLog.With("job", StageName),
		files:  files,
		topics: topics,
		opts:   opts,
	}
}

func (p *Pipeline) Type() string { return StageName }
