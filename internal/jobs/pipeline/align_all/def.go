package align_all

import (
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const StageName = "all"

type Options struct {
	// GeoEnabled runs geographic harmonization after alignment.
	GeoEnabled bool
	Retry      orchestrator.RetryPolicy
}

// Pipeline runs every registered stage in order through the orchestrator.
type Pipeline struct {
	log      *logger.Logger
	files    *store.Store
	engine   *orchestrator.Engine
	registry *jobrt.Registry
	opts     Options
}

func New(baseLog *logger.Logger, files *store.Store, engine *orchestrator.Engine, registry *jobrt.Registry, opts Options) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", StageName),
		files:    files,
		engine:   engine,
		registry: registry,
		opts:     opts,
	}
}

func (p *Pipeline) Type() string { return StageName }
