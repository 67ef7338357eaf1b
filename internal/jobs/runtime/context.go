package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/embers-fuse/internal/data/repos/runs"
	types "github.com/yungbote/embers-fuse/internal/domain/runs"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/pkg/dbctx"
	"github.com/yungbote/embers-fuse/internal/platform/ctxutil"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

/*
Context is the execution handle for one stage run.
It wraps:
	- the request-scoped context.Context (cancellation, run data),
	- the in-memory StageRun ledger row and its optional repo,
	- the only sanctioned ways to report progress or finish a stage.
Pipelines never touch the ledger directly. They go through this object.
*/
type Context struct {
	Ctx         context.Context
	Log         *logger.Logger
	Run         *types.StageRun
	Repo        runs.StageRunRepo
	Metrics     *observability.Metrics
	LastMessage string
	payload     map[string]any
	err         error
}

/*
NewContext starts a stage run. The ledger row is created when repo is set;
a ledger write failure is logged and the run continues without it.
*/
func NewContext(ctx context.Context, log *logger.Logger, repo runs.StageRunRepo, metrics *observability.Metrics, runID, stage string, payload map[string]any) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	now := time.Now().UTC()
	c := &Context{
		Ctx:     ctxutil.WithRunData(ctx, &ctxutil.RunData{RunID: runID, Stage: stage}),
		Log:     log.With("run_id", runID, "stage", stage),
		Repo:    repo,
		Metrics: metrics,
		payload: payload,
		Run: &types.StageRun{
			ID:        uuid.New(),
			RunID:     runID,
			Stage:     stage,
			Status:    types.StatusRunning,
			StartedAt: now,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if c.Repo != nil {
		if _, err := c.Repo.Create(dbctx.Context{Ctx: c.Ctx}, c.Run); err != nil {
			c.Log.Warn("stage ledger unavailable", "error", err)
			c.Repo = nil
		}
	}
	return c
}

/*
Payload returns the stage input. Never nil.
*/
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Context) PayloadBool(key string) bool {
	switch v := c.Payload()[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// PayloadStrings reads a list of strings, accepting []string or []any.
func (c *Context) PayloadStrings(key string) []string {
	switch v := c.Payload()[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s := strings.TrimSpace(fmt.Sprint(x)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

/*
Progress publishes a non-terminal status update: logged, written to the
ledger row when present and mirrored on the in-memory run.
*/
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Run == nil {
		return
	}
	now := time.Now().UTC()
	c.Run.Progress = pct
	c.Run.Message = msg
	c.Run.UpdatedAt = now
	c.LastMessage = msg
	c.Log.Info(msg, "step", stage, "progress", pct)
	c.update(map[string]interface{}{
		"progress":   pct,
		"message":    msg,
		"updated_at": now,
	})
}

/*
Fail marks the stage run failed. The first failure wins; later calls are ignored.
*/
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Run == nil || c.Run.Status != types.StatusRunning {
		return
	}
	if err == nil {
		err = fmt.Errorf("%s failed", stage)
	}
	c.err = fmt.Errorf("%s: %w", stage, err)
	now := time.Now().UTC()
	c.Run.Status = types.StatusFailed
	c.Run.Error = c.err.Error()
	c.Run.Message = ""
	c.Run.FinishedAt = &now
	c.Run.UpdatedAt = now
	c.Log.Error("stage failed", "step", stage, "error", err)
	c.Metrics.ObserveStage(c.Run.Stage, types.StatusFailed, now.Sub(c.Run.StartedAt))
	c.update(map[string]interface{}{
		"status":      types.StatusFailed,
		"error":       c.Run.Error,
		"message":     "",
		"finished_at": now,
		"updated_at":  now,
	})
}

/*
Succeed marks the stage run succeeded and stores result as JSON.
*/
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Run == nil || c.Run.Status != types.StatusRunning {
		return
	}
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Log.Warn("stage result not encodable", "error", err)
		} else {
			res = datatypes.JSON(b)
		}
	}
	now := time.Now().UTC()
	c.Run.Status = types.StatusSucceeded
	c.Run.Progress = 100
	c.Run.Message = ""
	c.Run.Result = res
	c.Run.FinishedAt = &now
	c.Run.UpdatedAt = now
	c.Log.Info("stage succeeded", "step", finalStage, "took", now.Sub(c.Run.StartedAt).String())
	c.Metrics.ObserveStage(c.Run.Stage, types.StatusSucceeded, now.Sub(c.Run.StartedAt))
	c.update(map[string]interface{}{
		"status":      types.StatusSucceeded,
		"progress":    100,
		"message":     "",
		"result":      res,
		"finished_at": now,
		"updated_at":  now,
	})
}

// Err is the failure recorded by Fail, nil otherwise.
func (c *Context) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

func (c *Context) Succeeded() bool {
	return c != nil && c.Run != nil && c.Run.Status == types.StatusSucceeded
}

func (c *Context) update(updates map[string]interface{}) {
	if c.Repo == nil {
		return
	}
	ctx := context.WithoutCancel(c.Ctx)
	if err := c.Repo.UpdateFields(dbctx.Context{Ctx: ctx}, c.Run.ID, updates); err != nil {
		c.Log.Warn("stage ledger update failed", "error", err)
	}
}
