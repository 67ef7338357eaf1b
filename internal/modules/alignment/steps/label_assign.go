package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type LabelAssignDeps struct {
	Log    *logger.Logger
	Labels oracle.LabelOracle
}

type LabelAssignInput struct {
	Clusters []types.PureCluster
	// Records is the number of key records the cluster indices refer to.
	Records int
}

type LabelAssignOutput struct {
	// Labels[i] is the label of record i, "" when unassigned.
	Labels            []string
	LabelDescriptions []types.LabelDescription
	// DuplicateLabels counts clusters merged into an earlier cluster's label.
	DuplicateLabels int
	// Failed counts clusters left unlabelled because the oracle failed.
	Failed int
}

// LabelAssign names every pure cluster. A label returned for two clusters is
// kept once: the later cluster's members join it and the first description
// wins.
func LabelAssign(ctx context.Context, deps LabelAssignDeps, in LabelAssignInput) (LabelAssignOutput, error) {
	out := LabelAssignOutput{Labels: make([]string, in.Records)}
	if deps.Log == nil || deps.Labels == nil {
		return out, fmt.Errorf("label_assign: missing deps")
	}
	log := deps.Log.With("step", "label_assign")

	seen := map[string]bool{}
	for ci, c := range in.Clusters {
		ld, err := deps.Labels.AssignLabel(ctx, c.Texts)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return out, fmt.Errorf("label_assign: %w", err)
			}
			out.Failed++
			log.Warn("label oracle failed, cluster left unaligned", "cluster", ci, "members", len(c.Indices), "error", err)
			continue
		}
		label := strings.TrimSpace(ld.Label)
		if seen[label] {
			out.DuplicateLabels++
			log.Warn("duplicate canonical label, merging clusters", "label", label, "cluster", ci)
		} else {
			seen[label] = true
			out.LabelDescriptions = append(out.LabelDescriptions, types.LabelDescription{
				Label:       label,
				Description: strings.TrimSpace(ld.Description),
			})
		}
		for _, idx := range c.Indices {
			if idx < 0 || idx >= in.Records {
				return out, fmt.Errorf("label_assign: cluster %d index %d out of range", ci, idx)
			}
			out.Labels[idx] = label
		}
	}
	return out, nil
}
