package key_encode

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
	"github.com/yungbote/embers-fuse/internal/platform/openai"
)

const StageName = "encode"

type Options struct {
	MaxExampleValues int
	BatchSize        int
	Workers          int
	Seed             uint64
}

type Pipeline struct {
	log   *logger.Logger
	files *store.Store
	ai    openai.Client
	opts  Options
}

func New(baseLog *logger.Logger, files *store.Store, ai openai.Client, opts Options) *Pipeline {
	return &Pipeline{
		log:   baseLog.With("job", StageName),
		files: files,
		ai:    ai,
		opts:  opts,
	}
}

func (p *Pipeline) Type() string { return StageName }
