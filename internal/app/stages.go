package app

import (
	"github.com/yungbote/embers-fuse/internal/jobs/orchestrator"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/align_all"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/geo_harmonize"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/integration_build"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/key_cluster_build"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/key_encode"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/project_topic_build"
	"github.com/yungbote/embers-fuse/internal/jobs/pipeline/transform_apply"
	jobrt "github.com/yungbote/embers-fuse/internal/jobs/runtime"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/cluster"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/transform"
)

func (a *App) wireStages(errs clientErrors) error {
	a.Log.Info("Wiring stages...")
	cfg := a.Cfg
	var handlers []jobrt.Handler

	if a.Clients.Oracle != nil {
		sampler := cluster.NewDiversitySampler(cfg.Keys.SamplerComponents, cfg.Keys.SamplerClusters, cfg.Keys.Seed)
		executor := transform.NewExecutor(a.Log, transform.ExecutorOptions{
			FieldPrefix: cfg.Transform.FieldPrefix,
			Timeout:     cfg.Transform.Timeout,
			Workers:     cfg.Transform.Workers,
		})
		handlers = append(handlers,
			key_encode.New(a.Log, a.Files, a.Clients.AI, key_encode.Options{
				MaxExampleValues: cfg.Keys.MaxExampleValues,
				BatchSize:        cfg.Keys.EmbedBatchSize,
				Workers:          cfg.Workers,
				Seed:             cfg.Keys.Seed,
			}),
			key_cluster_build.New(a.Log, a.Files, a.Clients.Oracle, a.Clients.Oracle, sampler, a.Metrics, key_cluster_build.Options{
				EmbeddingDim:  cfg.Keys.EmbeddingDim,
				Purity:        cfg.PurityConfig(),
				RebuildCorpus: cfg.Keys.RebuildCorpus,
			}),
			transform_apply.New(a.Log, a.Files, a.Clients.Oracle, executor, a.Metrics, transform_apply.Options{
				TargetsFile:   cfg.Transform.TargetsFile,
				SampleRecords: cfg.Transform.SampleRecords,
				Workers:       cfg.Workers,
				Reset:         cfg.Transform.Reset,
			}),
			project_topic_build.New(a.Log, a.Files, a.Clients.Oracle, project_topic_build.Options{
				EmbeddingDim:   cfg.Projects.EmbeddingDim,
				MinClusterSize: cfg.Projects.MinClusterSize,
				Eps:            cfg.Projects.Eps,
				RebuildCorpus:  cfg.Keys.RebuildCorpus,
			}),
		)
	} else {
		for _, name := range []string{
			key_encode.StageName,
			key_cluster_build.StageName,
			transform_apply.StageName,
			project_topic_build.StageName,
		} {
			a.unavailable[name] = errs.ai
		}
	}

	handlers = append(handlers, integration_build.New(a.Repos.DB, a.Log, a.Files, a.Repos.CanonicalKeys))

	if a.Clients.Geo != nil {
		handlers = append(handlers, geo_harmonize.New(a.Log, a.Files, a.Clients.Geo, geo_harmonize.Options{
			TargetLabel: cfg.Geo.TargetLabel,
			FieldPrefix: cfg.Transform.FieldPrefix,
			Workers:     cfg.Workers,
		}))
	} else {
		a.unavailable[geo_harmonize.StageName] = errs.geo
	}

	handlers = append(handlers, align_all.New(a.Log, a.Files, a.Engine, a.Registry, align_all.Options{
		GeoEnabled: cfg.Geo.Enabled,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: cfg.Oracle.MaxRetries + 1,
			Retryable:   orchestrator.RetryTransient,
		},
	}))

	for _, h := range handlers {
		if err := a.Registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}
