package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/embers-fuse/internal/data/db"
	"github.com/yungbote/embers-fuse/internal/data/store"
	"github.com/yungbote/embers-fuse/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Files    *store.Store
	DB       *db.Service
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Registry *jobrt.Registry
	Engine   *orchestrator.Engine

	// unavailable records stages that could not be wired and why.
	unavailable map[string]error
	shutdown    func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(ctx, cfg, log)
}

// NewWithLogger wires every stage on top of an existing logger.
func NewWithLogger(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "embers-fuse",
		Environment: cfg.LogMode,
	})
	metrics := observability.NewMetrics()

	files := store.New(log, store.Layout{
		DataDir:         cfg.DataDir,
		IntegrationDir:  cfg.IntegrationDir,
		DocumentPattern: cfg.DocumentPattern,
	})

	dbs, err := db.Open(log, cfg.Registry.Driver, cfg.Registry.DSN)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open registry: %w", err)
	}
	reposet := wireRepos(dbs, log)

	clientset, unavailable := wireClients(log, cfg, metrics)

	a := &App{
		Log:         log,
		Cfg:         cfg,
		Files:       files,
		DB:          dbs,
		Metrics:     metrics,
		Clients:     clientset,
		Repos:       reposet,
		Registry:    jobrt.NewRegistry(),
		Engine:      orchestrator.NewEngine(log, reposet.StageRuns, metrics),
		unavailable: map[string]error{},
		shutdown:    shutdown,
	}
	if err := a.wireStages(unavailable); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// Stages lists the runnable stage names.
func (a *App) Stages() []string {
	return a.Registry.Types()
}

// RunStage runs one registered stage to completion and returns its failure, if any.
func (a *App) RunStage(ctx context.Context, name string, payload map[string]any) error {
	if a == nil || a.Registry == nil {
		return fmt.Errorf("app not initialized")
	}
	h, ok := a.Registry.Get(name)
	if !ok {
		if why, known := a.unavailable[name]; known {
			return fmt.Errorf("stage %s unavailable: %w", name, why)
		}
		return fmt.Errorf("unknown stage %q", name)
	}
	jc := jobrt.NewContext(ctx, a.Log, a.Repos.StageRuns, a.Metrics, "", name, payload)
	start := time.Now()
	if err := h.Run(jc); err != nil {
		return err
	}
	if err := jc.Err(); err != nil {
		return err
	}
	a.Log.Info("stage finished", "stage", name, "run_id", jc.Run.RunID, "duration", time.Since(start).String())
	return nil
}

// Close flushes metrics and traces and releases the registry connection.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Cfg.MetricsTextfile != "" {
		if err := a.Metrics.WriteTextfile(a.Log, a.Cfg.MetricsTextfile); err != nil {
			errs = append(errs, err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
