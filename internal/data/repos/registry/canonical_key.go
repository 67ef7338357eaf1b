package registry

import (
	"encoding/json"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/embers-fuse/internal/data/repos"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/pkg/dbctx"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type CanonicalKeyRepo interface {
	// ReplaceAll makes the table mirror integ exactly: labels missing from
	// integ are removed, the rest are upserted with their sources rewritten.
	ReplaceAll(dbc dbctx.Context, runID string, integ types.Integration, variations types.KeyNameVariations) error
	GetByLabel(dbc dbctx.Context, label string) (*types.CanonicalKeyRow, error)
	List(dbc dbctx.Context) ([]*types.CanonicalKeyRow, error)
	ListSources(dbc dbctx.Context, label string) ([]*types.CanonicalKeySourceRow, error)
}

type canonicalKeyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanonicalKeyRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalKeyRepo {
	return &canonicalKeyRepo{
		db:  db,
		log: baseLog.With("repo", "CanonicalKeyRepo"),
	}
}

func (r *canonicalKeyRepo) ReplaceAll(dbc dbctx.Context, runID string, integ types.Integration, variations types.KeyNameVariations) error {
	labels := make([]string, 0, len(integ))
	for label := range integ {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		stale := tx.Model(&types.CanonicalKeyRow{})
		if len(labels) > 0 {
			stale = stale.Where("label NOT IN ?", labels)
		} else {
			stale = stale.Where("1 = 1")
		}
		var staleIDs []string
		if err := stale.Pluck("id", &staleIDs).Error; err != nil {
			return err
		}
		if len(staleIDs) > 0 {
			if err := tx.Where("canonical_key_id IN ?", staleIDs).Delete(&types.CanonicalKeySourceRow{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", staleIDs).Delete(&types.CanonicalKeyRow{}).Error; err != nil {
				return err
			}
		}

		for _, label := range labels {
			entry := integ[label]
			names := variations[label].KeyNames
			if names == nil {
				names = []string{}
			}
			row := &types.CanonicalKeyRow{
				Label:         label,
				Description:   entry.Description,
				KeyNames:      mustJSON(names),
				DocumentCount: len(entry.OriginalKeys),
				RunID:         runID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "label"}},
				DoUpdates: clause.AssignmentColumns([]string{"description", "key_names", "document_count", "run_id", "updated_at"}),
			}).Create(row).Error; err != nil {
				return err
			}

			var stored types.CanonicalKeyRow
			if err := tx.Where("label = ?", label).Take(&stored).Error; err != nil {
				return err
			}
			if err := tx.Where("canonical_key_id = ?", stored.ID).Delete(&types.CanonicalKeySourceRow{}).Error; err != nil {
				return err
			}
			if len(entry.OriginalKeys) == 0 {
				continue
			}
			sources := make([]*types.CanonicalKeySourceRow, 0, len(entry.OriginalKeys))
			for _, dk := range entry.OriginalKeys {
				sources = append(sources, &types.CanonicalKeySourceRow{
					CanonicalKeyID: stored.ID,
					DocumentID:     dk.DocumentID,
					Keys:           mustJSON(dk.Keys),
					Descriptions:   mustJSON(dk.Descriptions),
					CreatedAt:      now,
				})
			}
			if err := tx.Create(&sources).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return repos.PersistenceError("replace canonical keys", err)
}

func (r *canonicalKeyRepo) GetByLabel(dbc dbctx.Context, label string) (*types.CanonicalKeyRow, error) {
	var row types.CanonicalKeyRow
	err := dbc.DB(r.db).Where("label = ?", label).Limit(1).Find(&row).Error
	if err != nil {
		return nil, repos.PersistenceError("get canonical key", err)
	}
	if row.Label == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *canonicalKeyRepo) List(dbc dbctx.Context) ([]*types.CanonicalKeyRow, error) {
	var out []*types.CanonicalKeyRow
	if err := dbc.DB(r.db).Order("label ASC").Find(&out).Error; err != nil {
		return nil, repos.PersistenceError("list canonical keys", err)
	}
	return out, nil
}

func (r *canonicalKeyRepo) ListSources(dbc dbctx.Context, label string) ([]*types.CanonicalKeySourceRow, error) {
	row, err := r.GetByLabel(dbc, label)
	if err != nil || row == nil {
		return nil, err
	}
	var out []*types.CanonicalKeySourceRow
	if err := dbc.DB(r.db).
		Where("canonical_key_id = ?", row.ID).
		Order("document_id ASC").
		Find(&out).Error; err != nil {
		return nil, repos.PersistenceError("list canonical key sources", err)
	}
	return out, nil
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(raw)
}
