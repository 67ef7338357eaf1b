package alignment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CanonicalKeyRow mirrors one Integration entry in the registry database.
type CanonicalKeyRow struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Label         string         `gorm:"column:label;not null;uniqueIndex" json:"label"`
	Description   string         `gorm:"column:description" json:"description"`
	KeyNames      datatypes.JSON `gorm:"column:key_names" json:"key_names"`
	DocumentCount int            `gorm:"column:document_count;not null;default:0" json:"document_count"`
	RunID         string         `gorm:"column:run_id;index" json:"run_id"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (CanonicalKeyRow) TableName() string { return "canonical_key" }

func (r *CanonicalKeyRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// CanonicalKeySourceRow is one contributing document of a canonical key.
type CanonicalKeySourceRow struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CanonicalKeyID uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_canonical_key_source_doc" json:"canonical_key_id"`
	DocumentID     string         `gorm:"column:document_id;not null;index;uniqueIndex:idx_canonical_key_source_doc" json:"document_id"`
	Keys           datatypes.JSON `gorm:"column:keys" json:"keys"`
	Descriptions   datatypes.JSON `gorm:"column:descriptions" json:"descriptions"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (CanonicalKeySourceRow) TableName() string { return "canonical_key_source" }

func (r *CanonicalKeySourceRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
