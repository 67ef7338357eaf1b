package steps

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/cluster"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/vecmath"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type KeyClusterBuildDeps struct {
	Log     *logger.Logger
	Files   *store.Store
	Purity  oracle.PurityOracle
	Labels  oracle.LabelOracle
	Sampler cluster.Sampler
	Metrics *observability.Metrics
}

type KeyClusterBuildInput struct {
	EmbeddingDim int
	Purity       cluster.PurityConfig
	// RebuildCorpus ignores the cached corpus files and regathers per-document keys.
	RebuildCorpus bool
}

type KeyClusterBuildOutput struct {
	Records           int `json:"records"`
	PureClusters      int `json:"pure_clusters"`
	Labels            int `json:"labels"`
	Unaligned         int `json:"unaligned"`
	DroppedNodes      int `json:"dropped_nodes"`
	DroppedMembers    int `json:"dropped_members"`
	FailedEvaluations int `json:"failed_evaluations"`
	DuplicateLabels   int `json:"duplicate_labels"`
	LabelFailures     int `json:"label_failures"`
}

// KeyClusterBuild clusters every key record of the corpus into pure groups
// and labels them.
func KeyClusterBuild(ctx context.Context, deps KeyClusterBuildDeps, in KeyClusterBuildInput) (KeyClusterBuildOutput, error) {
	out := KeyClusterBuildOutput{}
	if deps.Log == nil || deps.Files == nil || deps.Purity == nil || deps.Labels == nil {
		return out, fmt.Errorf("key_cluster_build: missing deps")
	}
	log := deps.Log.With("step", "key_cluster_build")

	texts, embs, err := loadKeyCorpus(ctx, deps.Files, in.RebuildCorpus)
	if err != nil {
		return out, fmt.Errorf("key_cluster_build: %w", err)
	}
	out.Records = len(texts)
	vecs := vecmath.Prepare(embs, in.EmbeddingDim)
	descriptors := make([]string, len(texts))
	for i, t := range texts {
		descriptors[i] = t.Descriptor()
	}

	start := time.Now()
	sctx, span := observability.StartSpan(ctx, "cluster.purity", attribute.Int("records", len(vecs)))
	clusterer := cluster.NewPurityClusterer(log, deps.Purity, deps.Sampler, in.Purity)
	res, err := clusterer.Cluster(sctx, vecs, descriptors)
	observability.EndSpan(span, err)
	if err != nil {
		return out, fmt.Errorf("key_cluster_build: %w", err)
	}
	log.Info("purity traversal done",
		"records", len(vecs),
		"pure_clusters", len(res.Clusters),
		"unassigned", len(res.Unassigned),
		"dropped_nodes", res.DroppedNodes,
		"failed_evaluations", res.FailedEvaluations,
		"took", time.Since(start).String(),
	)

	labelled, err := LabelAssign(ctx, LabelAssignDeps{Log: deps.Log, Labels: deps.Labels}, LabelAssignInput{
		Clusters: res.Clusters,
		Records:  len(texts),
	})
	if err != nil {
		return out, fmt.Errorf("key_cluster_build: %w", err)
	}

	unaligned := 0
	for _, l := range labelled.Labels {
		if l == "" {
			unaligned++
		}
	}
	report := types.ClusterReport{
		Records:           len(texts),
		PureClusters:      len(res.Clusters),
		Unaligned:         unaligned,
		DroppedNodes:      res.DroppedNodes,
		DroppedMembers:    res.DroppedMembers,
		FailedEvaluations: res.FailedEvaluations,
		DuplicateLabels:   labelled.DuplicateLabels,
	}
	if err := deps.Files.SaveClusterResult(ctx, store.ClusterResult{
		PureClusters:      res.Clusters,
		Labels:            labelled.Labels,
		LabelDescriptions: labelled.LabelDescriptions,
		Report:            report,
	}); err != nil {
		return out, fmt.Errorf("key_cluster_build: %w", err)
	}

	recordClusterMetrics(deps.Metrics, res, len(res.Clusters), unaligned)

	out.PureClusters = len(res.Clusters)
	out.Labels = len(labelled.LabelDescriptions)
	out.Unaligned = unaligned
	out.DroppedNodes = res.DroppedNodes
	out.DroppedMembers = res.DroppedMembers
	out.FailedEvaluations = res.FailedEvaluations
	out.DuplicateLabels = labelled.DuplicateLabels
	out.LabelFailures = labelled.Failed
	return out, nil
}

func recordClusterMetrics(m *observability.Metrics, res *cluster.PurityResult, pure, unaligned int) {
	for i := 0; i < res.Pure; i++ {
		m.IncPurityEvaluation("pure")
	}
	for i := 0; i < res.Impure; i++ {
		m.IncPurityEvaluation("impure")
	}
	for i := 0; i < res.FailedEvaluations; i++ {
		m.IncPurityEvaluation("failed")
	}
	m.AddDroppedNodes(res.DroppedNodes)
	m.SetClusterSummary(pure, unaligned)
}

// loadKeyCorpus returns the corpus-wide key records and embeddings, building
// and caching them from per-document files when needed.
func loadKeyCorpus(ctx context.Context, files *store.Store, rebuild bool) ([]types.KeyRecord, [][]float32, error) {
	if !rebuild {
		texts, embs, ok, err := files.LoadKeyCorpus(ctx)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return texts, embs, nil
		}
	}
	docs, err := files.Documents(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list documents: %w", err)
	}
	var (
		texts []types.KeyRecord
		embs  [][]float32
	)
	for _, doc := range docs {
		if !files.HasDocumentKeys(doc) {
			continue
		}
		recs, err := files.LoadDocumentKeys(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range recs {
			if len(r.Embedding) == 0 {
				continue
			}
			embs = append(embs, r.Embedding)
			texts = append(texts, r.Text())
		}
	}
	if err := files.SaveKeyCorpus(ctx, texts, embs); err != nil {
		return nil, nil, err
	}
	return texts, embs, nil
}
