package steps

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/yungbote/embers-fuse/internal/data/repos/registry"
	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/pkg/dbctx"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type IntegrationBuildDeps struct {
	Log   *logger.Logger
	Files *store.Store
	// DB and Registry are optional; when set the registry table mirrors the files.
	DB       *gorm.DB
	Registry registry.CanonicalKeyRepo
}

type IntegrationBuildInput struct {
	RunID string
}

type IntegrationBuildOutput struct {
	CanonicalKeys int  `json:"canonical_keys"`
	Documents     int  `json:"documents"`
	RawKeys       int  `json:"raw_keys"`
	Mirrored      bool `json:"mirrored"`
}

// IntegrationBuild turns the per-record labels into the schema registry:
// label -> description and, per contributing document, its raw keys.
func IntegrationBuild(ctx context.Context, deps IntegrationBuildDeps, in IntegrationBuildInput) (IntegrationBuildOutput, error) {
	out := IntegrationBuildOutput{}
	if deps.Log == nil || deps.Files == nil {
		return out, fmt.Errorf("integration_build: missing deps")
	}
	texts, err := deps.Files.LoadKeyTexts(ctx)
	if err != nil {
		return out, fmt.Errorf("integration_build: %w", err)
	}
	labels, descs, err := deps.Files.LoadLabels(ctx)
	if err != nil {
		return out, fmt.Errorf("integration_build: %w", err)
	}
	if len(labels) != len(texts) {
		return out, fmt.Errorf("integration_build: %d labels for %d key records", len(labels), len(texts))
	}

	integ, variations := BuildIntegration(texts, labels, descs)
	if err := deps.Files.SaveIntegration(ctx, integ, variations); err != nil {
		return out, fmt.Errorf("integration_build: %w", err)
	}

	docs := map[string]bool{}
	for _, ck := range integ {
		for _, dk := range ck.OriginalKeys {
			docs[dk.DocumentID] = true
			out.RawKeys += len(dk.Keys)
		}
	}
	out.CanonicalKeys = len(integ)
	out.Documents = len(docs)

	if deps.Registry != nil && deps.DB != nil {
		if err := deps.Registry.ReplaceAll(dbctx.Context{Ctx: ctx}, in.RunID, integ, variations); err != nil {
			return out, fmt.Errorf("integration_build: mirror registry: %w", err)
		}
		out.Mirrored = true
	}
	deps.Log.Info("integration built",
		"step", "integration_build",
		"canonical_keys", out.CanonicalKeys,
		"documents", out.Documents,
		"raw_keys", out.RawKeys,
		"mirrored", out.Mirrored,
	)
	return out, nil
}

// BuildIntegration groups labelled key records by label and document. Each
// document appears once per label.
func BuildIntegration(texts []types.KeyRecord, labels []string, descs []types.LabelDescription) (types.Integration, types.KeyNameVariations) {
	labelDesc := make(map[string]string, len(descs))
	for _, d := range descs {
		if _, ok := labelDesc[d.Label]; !ok {
			labelDesc[d.Label] = d.Description
		}
	}

	byLabel := map[string]map[string]*types.DocumentKeys{}
	names := map[string][]string{}
	for i, label := range labels {
		if label == "" || i >= len(texts) {
			continue
		}
		rec := texts[i]
		docs, ok := byLabel[label]
		if !ok {
			docs = map[string]*types.DocumentKeys{}
			byLabel[label] = docs
		}
		dk, ok := docs[rec.DocumentID]
		if !ok {
			dk = &types.DocumentKeys{DocumentID: rec.DocumentID}
			docs[rec.DocumentID] = dk
		}
		dk.Keys = append(dk.Keys, rec.Key)
		dk.Descriptions = append(dk.Descriptions, rec.Description)
		names[label] = append(names[label], rec.Key)
	}

	integ := make(types.Integration, len(byLabel))
	variations := make(types.KeyNameVariations, len(byLabel))
	for label, docs := range byLabel {
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		ck := types.CanonicalKey{Description: labelDesc[label]}
		for _, id := range ids {
			ck.OriginalKeys = append(ck.OriginalKeys, *docs[id])
		}
		integ[label] = ck
		variations[label] = types.KeyNameVariation{
			KeyNames:    dedupeSorted(names[label]),
			Description: labelDesc[label],
		}
	}
	return integ, variations
}
