package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/embers-fuse/internal/data/db"
	"github.com/yungbote/embers-fuse/internal/data/repos/registry"
	"github.com/yungbote/embers-fuse/internal/data/repos/runs"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// Repos is empty when no registry database is configured; every consumer
// treats nil repos as "ledger off".
type Repos struct {
	DB            *gorm.DB
	StageRuns     runs.StageRunRepo
	CanonicalKeys registry.CanonicalKeyRepo
}

func wireRepos(dbs *db.Service, log *logger.Logger) Repos {
	if dbs == nil || dbs.DB() == nil {
		log.Info("registry database disabled")
		return Repos{}
	}
	log.Info("Wiring repos...")
	theDB := dbs.DB()
	return Repos{
		DB:            theDB,
		StageRuns:     runs.NewStageRunRepo(theDB, log),
		CanonicalKeys: registry.NewCanonicalKeyRepo(theDB, log),
	}
}
