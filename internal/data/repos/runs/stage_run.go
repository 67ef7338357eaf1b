package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/embers-fuse/internal/data/repos"
	types "github.com/yungbote/embers-fuse/internal/domain/runs"
	"github.com/yungbote/embers-fuse/internal/pkg/dbctx"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type StageRunRepo interface {
	Create(dbc dbctx.Context, run *types.StageRun) (*types.StageRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StageRun, error)
	GetLatestByStage(dbc dbctx.Context, stage string) (*types.StageRun, error)
	ListByRunID(dbc dbctx.Context, runID string) ([]*types.StageRun, error)
}

type stageRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageRunRepo(db *gorm.DB, baseLog *logger.Logger) StageRunRepo {
	return &stageRunRepo{
		db:  db,
		log: baseLog.With("repo", "StageRunRepo"),
	}
}

func (r *stageRunRepo) Create(dbc dbctx.Context, run *types.StageRun) (*types.StageRun, error) {
	if run == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return nil, repos.PersistenceError("create stage run", err)
	}
	return run, nil
}

func (r *stageRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	err := dbc.DB(r.db).
		Model(&types.StageRun{}).
		Where("id = ?", id).
		Updates(updates).Error
	return repos.PersistenceError("update stage run", err)
}

func (r *stageRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StageRun, error) {
	var out []*types.StageRun
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, repos.PersistenceError("get stage run", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *stageRunRepo) GetLatestByStage(dbc dbctx.Context, stage string) (*types.StageRun, error) {
	var out []*types.StageRun
	if err := dbc.DB(r.db).
		Where("stage = ?", stage).
		Order("started_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, repos.PersistenceError("get latest stage run", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *stageRunRepo) ListByRunID(dbc dbctx.Context, runID string) ([]*types.StageRun, error) {
	var out []*types.StageRun
	if err := dbc.DB(r.db).
		Where("run_id = ?", runID).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, repos.PersistenceError("list stage runs", err)
	}
	return out, nil
}
