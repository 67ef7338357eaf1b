package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StageRun is the ledger row for one execution of one pipeline stage.
type StageRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      string         `gorm:"column:run_id;not null;index" json:"run_id"`
	Stage      string         `gorm:"column:stage;not null;index" json:"stage"`
	Status     string         `gorm:"column:status;not null;index" json:"status"`
	Progress   int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message    string         `gorm:"column:message" json:"message,omitempty"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Result     datatypes.JSON `gorm:"column:result" json:"result"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (StageRun) TableName() string { return "stage_run" }

func (r *StageRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
