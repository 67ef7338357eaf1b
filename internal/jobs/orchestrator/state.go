package orchestrator

import (
	"encoding/json"
	"time"
)

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

type StageState struct {
	Name       string          `json:"name"`
	Status     StageStatus     `json:"status"`
	Attempts   int             `json:"attempts"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// RunState is the outcome of one orchestrated run, stages in execution order.
type RunState struct {
	RunID  string                 `json:"run_id"`
	Order  []string               `json:"order"`
	Stages map[string]*StageState `json:"stages"`
}

func newRunState(runID string, order []string) *RunState {
	st := &RunState{RunID: runID, Order: order, Stages: map[string]*StageState{}}
	for _, name := range order {
		st.Stages[name] = &StageState{Name: name, Status: StagePending}
	}
	return st
}

func (s *RunState) Stage(name string) *StageState {
	if s == nil {
		return nil
	}
	return s.Stages[name]
}

// Failed returns the first failed stage in execution order, nil when none failed.
func (s *RunState) Failed() *StageState {
	if s == nil {
		return nil
	}
	for _, name := range s.Order {
		if ss := s.Stages[name]; ss != nil && ss.Status == StageFailed {
			return ss
		}
	}
	return nil
}

func markStarted(ss *StageState) {
	if ss == nil || ss.StartedAt != nil {
		return
	}
	now := time.Now().UTC()
	ss.StartedAt = &now
}

func markFinished(ss *StageState, status StageStatus, lastErr string) {
	if ss == nil {
		return
	}
	now := time.Now().UTC()
	ss.Status = status
	ss.FinishedAt = &now
	if lastErr != "" {
		ss.LastError = lastErr
	}
}
