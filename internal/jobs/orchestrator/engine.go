package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/embers-fuse/internal/data/repos/runs"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// -------------------- Public API --------------------

type RetryPolicy struct {
	MaxAttempts int
	Retryable   func(err error) bool

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
	JitterFrac float64       // default 0.20
}

type Stage struct {
	Name    string
	Deps    []string
	Handler jobrt.Handler
	Payload map[string]any
	Timeout time.Duration
	Retry   RetryPolicy
	// Skip reports that the stage has nothing to do; it is then marked skipped
	// and counts as satisfied for its dependents.
	Skip func(ctx context.Context) (bool, error)
}

type Engine struct {
	Log     *logger.Logger
	Runs    runs.StageRunRepo
	Metrics *observability.Metrics

	// Sleep waits between retry attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(log *logger.Logger, repo runs.StageRunRepo, metrics *observability.Metrics) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		Log:     log.With("component", "Orchestrator"),
		Runs:    repo,
		Metrics: metrics,
		Sleep:   sleepCtx,
	}
}

// Run executes stages in dependency order. The first stage that fails stops
// the run: later stages stay pending. The returned state is always non-nil
// once the stage list is valid.
func (e *Engine) Run(ctx context.Context, runID string, stages []Stage) (*RunState, error) {
	order, err := validateStages(stages)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	st := newRunState(runID, order)
	byName := make(map[string]Stage, len(stages))
	for _, s := range stages {
		byName[s.Name] = s
	}
	log := e.Log.With("run_id", runID)

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		def := byName[name]
		ss := st.Stage(name)

		if def.Skip != nil {
			skip, err := def.Skip(ctx)
			if err != nil {
				markFinished(ss, StageFailed, err.Error())
				return st, fmt.Errorf("stage %s: %w", name, err)
			}
			if skip {
				markFinished(ss, StageSkipped, "")
				log.Info("stage skipped", "stage", name)
				continue
			}
		}

		if err := e.runStage(ctx, log, runID, def, ss); err != nil {
			return st, err
		}
	}
	log.Info("run finished", "stages", len(order))
	return st, nil
}

// -------------------- stage execution --------------------

func (e *Engine) runStage(ctx context.Context, log *logger.Logger, runID string, def Stage, ss *StageState) error {
	markStarted(ss)
	ss.Status = StageRunning
	for {
		ss.Attempts++
		jc := jobrt.NewContext(ctx, e.Log, e.Runs, e.Metrics, runID, def.Name, def.Payload)
		err := safeRun(def, jc)
		if err != nil {
			jc.Fail(def.Name, err)
		} else if !jc.Succeeded() && jc.Err() == nil {
			jc.Fail(def.Name, fmt.Errorf("handler returned without finishing"))
		}
		if jc.Succeeded() {
			ss.Result = append(ss.Result[:0], jc.Run.Result...)
			markFinished(ss, StageSucceeded, "")
			return nil
		}

		failure := jc.Err()
		if ctx.Err() != nil || errors.Is(failure, context.Canceled) {
			markFinished(ss, StageFailed, errString(failure))
			return failure
		}
		if !shouldRetry(def.Retry, ss.Attempts, failure) {
			markFinished(ss, StageFailed, errString(failure))
			return failure
		}
		wait := computeBackoff(def.Retry, ss.Attempts)
		log.Warn("stage failed, retrying", "stage", def.Name, "attempt", ss.Attempts, "backoff", wait.String(), "error", failure)
		ss.LastError = errString(failure)
		if err := e.Sleep(ctx, wait); err != nil {
			markFinished(ss, StageFailed, err.Error())
			return fmt.Errorf("stage %s: %w", def.Name, err)
		}
	}
}

func safeRun(def Stage, jc *jobrt.Context) (err error) {
	if def.Handler == nil {
		return fmt.Errorf("stage %q: handler is nil", def.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %q panicked: %v", def.Name, r)
		}
	}()
	if def.Timeout <= 0 {
		return def.Handler.Run(jc)
	}
	tctx, cancel := context.WithTimeout(jc.Ctx, def.Timeout)
	defer cancel()
	jc.Ctx = tctx
	if err := def.Handler.Run(jc); err != nil {
		return err
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && !jc.Succeeded() {
		return fmt.Errorf("stage %q timed out: %w", def.Name, tctx.Err())
	}
	return nil
}

// -------------------- validation --------------------

// validateStages checks names and dependencies and returns a topological
// order, stable by input order.
func validateStages(stages []Stage) ([]string, error) {
	seen := map[string]bool{}
	for _, s := range stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("stage missing Name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage name %q", name)
		}
		seen[name] = true
	}
	deg := map[string]int{}
	out := map[string][]string{}
	for _, s := range stages {
		for _, dep := range s.Deps {
			if !seen[dep] {
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", s.Name, dep)
			}
			deg[s.Name]++
			out[dep] = append(out[dep], s.Name)
		}
	}

	order := make([]string, 0, len(stages))
	added := map[string]bool{}
	for {
		progressed := false
		for _, s := range stages {
			if added[s.Name] || deg[s.Name] != 0 {
				continue
			}
			added[s.Name] = true
			order = append(order, s.Name)
			for _, n := range out[s.Name] {
				deg[n]--
			}
			progressed = true
		}
		if !progressed {
			break
		}
	}
	if len(order) != len(stages) {
		return nil, fmt.Errorf("stage dependencies contain a cycle")
	}
	return order, nil
}

// -------------------- retry/backoff --------------------

// RetryTransient retries oracle and persistence failures flagged retryable
// and deadline errors.
func RetryTransient(err error) bool {
	return fault.IsRetryable(err)
}

func shouldRetry(r RetryPolicy, attempts int, err error) bool {
	if r.MaxAttempts <= 0 || attempts >= r.MaxAttempts {
		return false
	}
	if r.Retryable == nil {
		return true
	}
	return r.Retryable(err)
}

func computeBackoff(r RetryPolicy, attempts int) time.Duration {
	minB := r.MinBackoff
	maxB := r.MaxBackoff
	j := r.JitterFrac
	if minB <= 0 {
		minB = time.Second
	}
	if maxB <= 0 {
		maxB = 30 * time.Second
	}
	if j <= 0 {
		j = 0.20
	}
	base := float64(minB) * math.Pow(2, float64(max(attempts-1, 0)))
	if base > float64(maxB) {
		base = float64(maxB)
	}
	jitter := base * j * (rand.Float64()*2 - 1)
	return clampDuration(time.Duration(base+jitter), minB, maxB)
}

func clampDuration(d, minD, maxD time.Duration) time.Duration {
	if d < minD {
		return minD
	}
	if d > maxD {
		return maxD
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
