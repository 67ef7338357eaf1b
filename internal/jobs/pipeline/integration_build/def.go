package integration_build

import (
	"gorm.io/gorm"

	"github.com/yungbote/embers-fuse/internal/data/repos/registry"
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const StageName = "integrate"

type Pipeline struct {
	db       *gorm.DB
	log      *logger.Logger
	files    *store.Store
	registry registry.CanonicalKeyRepo
}

// New builds the stage; db and keys may be nil when no registry database is configured.
func New(db *gorm.DB, baseLog *logger.Logger, files *store.Store, keys registry.CanonicalKeyRepo) *Pipeline {
	return &Pipeline{
		db:       db,
		log:      baseLog.With("job", StageName),
		files:    files,
		registry: keys,
	}
}

func (p *Pipeline) Type() string { return StageName }
