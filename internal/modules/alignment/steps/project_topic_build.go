package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/cluster"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/vecmath"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type ProjectTopicBuildDeps struct {
	Log    *logger.Logger
	Files  *store.Store
	Topics oracle.TopicOracle
}

type ProjectTopicBuildInput struct {
	EmbeddingDim   int
	MinClusterSize int
	// Eps is the density radius in the 2-D projection; 0 estimates it.
	Eps           float64
	RebuildCorpus bool
}

type ProjectTopicBuildOutput struct {
	Projects      int `json:"projects"`
	Clusters      int `json:"clusters"`
	Noise         int `json:"noise"`
	TopicFailures int `json:"topic_failures"`
}

// ProjectTopicBuild projects the documents' key-finding embeddings to 2-D,
// groups them by density and names every group.
func ProjectTopicBuild(ctx context.Context, deps ProjectTopicBuildDeps, in ProjectTopicBuildInput) (ProjectTopicBuildOutput, error) {
	out := ProjectTopicBuildOutput{}
	if deps.Log == nil || deps.Files == nil || deps.Topics == nil {
		return out, fmt.Errorf("project_topic_build: missing deps")
	}
	log := deps.Log.With("step", "project_topic_build")

	texts, embs, err := loadProjectCorpus(ctx, deps.Files, in.RebuildCorpus)
	if err != nil {
		return out, fmt.Errorf("project_topic_build: %w", err)
	}
	out.Projects = len(texts)
	if len(texts) == 0 {
		log.Info("no project embeddings")
		return out, nil
	}

	coords, err := cluster.PCA2D(vecmath.Prepare(embs, in.EmbeddingDim))
	if err != nil {
		return out, fmt.Errorf("project_topic_build: %w", err)
	}
	assign := cluster.DensityCluster(coords, in.MinClusterSize, in.Eps)

	members := map[int][]int{}
	for i, c := range assign {
		if c == cluster.Noise {
			out.Noise++
			continue
		}
		members[c] = append(members[c], i)
	}
	out.Clusters = len(members)

	labels := make([]string, len(texts))
	for i := range labels {
		labels[i] = types.UnlabelledProject
	}
	for c := 0; c < len(members); c++ {
		idx := members[c]
		findings := make([]string, len(idx))
		for j, i := range idx {
			findings[j] = texts[i].KeyFindings
		}
		topic, err := deps.Topics.SummarizeTopic(ctx, findings)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return out, fmt.Errorf("project_topic_build: %w", err)
			}
			out.TopicFailures++
			log.Warn("topic oracle failed, cluster left unlabelled", "cluster", c, "members", len(idx), "error", err)
			continue
		}
		for _, i := range idx {
			labels[i] = topic.Topic
		}
	}

	if err := deps.Files.SaveProjectClusterResult(ctx, store.ProjectClusterResult{
		Coords:         coords,
		ClusterIndices: assign,
		Labels:         labels,
	}); err != nil {
		return out, fmt.Errorf("project_topic_build: %w", err)
	}
	log.Info("projects clustered", "projects", out.Projects, "clusters", out.Clusters, "noise", out.Noise)
	return out, nil
}

func loadProjectCorpus(ctx context.Context, files *store.Store, rebuild bool) ([]types.ProjectText, [][]float32, error) {
	if !rebuild {
		texts, embs, ok, err := files.LoadProjectCorpus(ctx)
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
		texts []types.ProjectText
		embs  [][]float32
	)
	for _, doc := range docs {
		if !files.HasProjectEmbedding(doc) {
			continue
		}
		p, err := files.LoadProjectEmbedding(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		if len(p.Embedding) == 0 {
			continue
		}
		texts = append(texts, types.ProjectText{DocumentID: doc, KeyFindings: p.KeyFindings})
		embs = append(embs, p.Embedding)
	}
	if err := files.SaveProjectCorpus(ctx, texts, embs); err != nil {
		return nil, nil, err
	}
	return texts, embs, nil
}
