package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/transform"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type TransformApplyDeps struct {
	Log      *logger.Logger
	Files    *store.Store
	Samples  store.SampleStore
	Specs    store.SpecStore
	Oracle   oracle.TransformOracle
	Executor *transform.Executor
	Metrics  *observability.Metrics
}

type TransformApplyInput struct {
	// Targets restricts alignment to these labels and supplies their
	// descriptions; nil aligns every canonical key.
	Targets map[string]types.AlignTarget
	// Documents restricts the run; empty means every document in the registry.
	Documents     []string
	SampleRecords int
	// ResetSamples reseeds the aligned copy from the raw records first.
	ResetSamples bool
	Workers      int
}

type TransformApplyOutput struct {
	DocumentsTotal       int               `json:"documents_total"`
	DocumentsSaved       int               `json:"documents_saved"`
	SpecsSynthesized     int               `json:"specs_synthesized"`
	SpecsCached          int               `json:"specs_cached"`
	SpecsInfeasible      int               `json:"specs_infeasible"`
	SynthesisFailures    int               `json:"synthesis_failures"`
	RecordsConverted     int               `json:"records_converted"`
	RecordsUnconvertible int               `json:"records_unconvertible"`
	RecordsMissing       int               `json:"records_missing_reference"`
	Keys                 []KeyOutcome      `json:"keys"`
	Failures             []DocumentFailure `json:"failures,omitempty"`
}

// KeyOutcome is what one applied spec did to a document's records.
type KeyOutcome struct {
	DocumentID       string `json:"document_id"`
	Label            string `json:"label"`
	Converted        int    `json:"converted"`
	Unconvertible    int    `json:"unconvertible"`
	MissingReference int    `json:"missing_reference"`
}

type docTarget struct {
	label        string
	keys         []string
	descriptions map[string]string
	target       string
}

// TransformApply rewrites each document's sample records onto the canonical
// keys: it synthesizes (or reuses) one spec per (document, label) and applies
// it to every record. A document is saved only when a record changed.
func TransformApply(ctx context.Context, deps TransformApplyDeps, in TransformApplyInput) (TransformApplyOutput, error) {
	out := TransformApplyOutput{}
	if deps.Log == nil || deps.Files == nil || deps.Samples == nil || deps.Specs == nil || deps.Oracle == nil || deps.Executor == nil {
		return out, fmt.Errorf("transform_apply: missing deps")
	}
	log := deps.Log.With("step", "transform_apply")

	integ, err := deps.Files.LoadIntegration(ctx)
	if err != nil {
		return out, fmt.Errorf("transform_apply: %w", err)
	}
	plan := planTargets(integ, in.Targets)
	if in.Targets != nil {
		for label := range in.Targets {
			if _, ok := integ[label]; !ok {
				log.Warn("target label not in registry", "label", label)
			}
		}
	}

	docs := in.Documents
	if len(docs) == 0 {
		docs = make([]string, 0, len(plan))
		for doc := range plan {
			docs = append(docs, doc)
		}
		sort.Strings(docs)
	}
	out.DocumentsTotal = len(docs)

	var mu sync.Mutex
	failures, err := forEachDocument(ctx, log, docs, in.Workers, func(ctx context.Context, doc string) error {
		targets := plan[doc]
		if len(targets) == 0 {
			return nil
		}
		if _, err := deps.Files.SeedSamples(ctx, doc, in.ResetSamples); err != nil {
			return err
		}
		if !deps.Samples.HasSamples(doc) {
			log.Debug("document has no samples", "document_id", doc)
			return nil
		}
		records, err := deps.Samples.Load(ctx, doc)
		if err != nil {
			return err
		}

		var local TransformApplyOutput
		changed := false
		for _, t := range targets {
			syn, err := TransformSynthesize(ctx, TransformSynthesizeDeps{
				Log:    deps.Log,
				Specs:  deps.Specs,
				Oracle: deps.Oracle,
			}, TransformSynthesizeInput{
				DocumentID:            doc,
				Label:                 t.label,
				ReferenceKeys:         t.keys,
				ReferenceDescriptions: t.descriptions,
				TargetDescription:     t.target,
				Records:               records,
				SampleSize:            in.SampleRecords,
			})
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil || fault.Is(err, fault.KindPersistence) {
					return err
				}
				local.SynthesisFailures++
				log.Warn("transform synthesis failed", "document_id", doc, "label", t.label, "error", err)
				continue
			}
			if syn.Cached {
				local.SpecsCached++
			} else {
				local.SpecsSynthesized++
			}
			if !syn.Spec.Feasible() {
				local.SpecsInfeasible++
				continue
			}

			res, err := deps.Executor.Apply(ctx, doc, t.label, syn.Spec, records)
			if err != nil {
				return err
			}
			if res.Changed() {
				changed = true
			}
			local.RecordsConverted += res.Converted
			local.RecordsUnconvertible += res.Unconvertible
			local.RecordsMissing += res.MissingReference
			local.Keys = append(local.Keys, KeyOutcome{
				DocumentID:       doc,
				Label:            t.label,
				Converted:        res.Converted,
				Unconvertible:    res.Unconvertible,
				MissingReference: res.MissingReference,
			})
			log.Info("key aligned",
				"document_id", doc,
				"label", t.label,
				"converted", res.Converted,
				"unconvertible", res.Unconvertible,
				"missing_reference", res.MissingReference,
			)
			deps.Metrics.AddTransformRecords(types.StatusConverted, res.Converted)
			deps.Metrics.AddTransformRecords(types.StatusUnconvertible, res.Unconvertible)
			deps.Metrics.AddTransformRecords(types.StatusMissingReference, res.MissingReference)
			deps.Metrics.SetTransformFailures(doc, t.label, res.Unconvertible)
		}

		if changed {
			if err := deps.Samples.Save(ctx, doc, records); err != nil {
				return err
			}
			local.DocumentsSaved = 1
		}

		mu.Lock()
		out.DocumentsSaved += local.DocumentsSaved
		out.SpecsSynthesized += local.SpecsSynthesized
		out.SpecsCached += local.SpecsCached
		out.SpecsInfeasible += local.SpecsInfeasible
		out.SynthesisFailures += local.SynthesisFailures
		out.RecordsConverted += local.RecordsConverted
		out.RecordsUnconvertible += local.RecordsUnconvertible
		out.RecordsMissing += local.RecordsMissing
		out.Keys = append(out.Keys, local.Keys...)
		mu.Unlock()
		return nil
	})
	out.Failures = failures
	sort.Slice(out.Keys, func(i, j int) bool {
		if out.Keys[i].DocumentID != out.Keys[j].DocumentID {
			return out.Keys[i].DocumentID < out.Keys[j].DocumentID
		}
		return out.Keys[i].Label < out.Keys[j].Label
	})
	if err != nil {
		return out, fmt.Errorf("transform_apply: %w", err)
	}
	log.Info("documents aligned",
		"documents", out.DocumentsTotal,
		"saved", out.DocumentsSaved,
		"synthesized", out.SpecsSynthesized,
		"cached", out.SpecsCached,
		"converted", out.RecordsConverted,
		"unconvertible", out.RecordsUnconvertible,
		"missing_reference", out.RecordsMissing,
		"failures", len(out.Failures),
	)
	return out, nil
}

// planTargets lists, per document, the labels to align with the document's
// raw keys for each. Labels are sorted for a stable application order.
func planTargets(integ types.Integration, targets map[string]types.AlignTarget) map[string][]docTarget {
	labels := make([]string, 0, len(integ))
	for label := range integ {
		if targets != nil {
			if _, ok := targets[label]; !ok {
				continue
			}
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	plan := map[string][]docTarget{}
	for _, label := range labels {
		ck := integ[label]
		target := ck.Description
		if t, ok := targets[label]; ok && t.Instructions != "" {
			target = t.Instructions
		}
		for _, dk := range ck.OriginalKeys {
			descs := make(map[string]string, len(dk.Keys))
			for i, k := range dk.Keys {
				if i < len(dk.Descriptions) {
					descs[k] = dk.Descriptions[i]
				}
			}
			plan[dk.DocumentID] = append(plan[dk.DocumentID], docTarget{
				label:        label,
				keys:         dedupeSorted(dk.Keys),
				descriptions: descs,
				target:       target,
			})
		}
	}
	return plan
}
