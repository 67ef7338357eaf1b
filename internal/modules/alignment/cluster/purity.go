package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type PurityEvaluator interface {
	EvaluatePurity(ctx context.Context, descriptors []string) (float64, error)
}

// ErrorPolicy decides what a failed purity evaluation does to its node.
type ErrorPolicy string

const (
	// PolicySkip leaves the node's members unassigned and keeps traversing.
	PolicySkip ErrorPolicy = "skip"
	// PolicyDescend treats the node as impure.
	PolicyDescend ErrorPolicy = "descend"
	// PolicyAbort stops the traversal with the oracle error.
	PolicyAbort ErrorPolicy = "abort"
)

func (p ErrorPolicy) Valid() bool {
	switch p {
	case PolicySkip, PolicyDescend, PolicyAbort:
		return true
	}
	return false
}

type PurityConfig struct {
	Threshold       float64
	MinSize         int
	SampleThreshold int
	ErrorPolicy     ErrorPolicy
}

func (c PurityConfig) withDefaults() PurityConfig {
	if c.MinSize < 1 {
		c.MinSize = 1
	}
	if c.SampleThreshold < 1 {
		c.SampleThreshold = 100
	}
	if c.ErrorPolicy == "" {
		c.ErrorPolicy = PolicySkip
	}
	return c
}

type PurityResult struct {
	Clusters []alignment.PureCluster
	// Unassigned lists record indices outside every emitted cluster, ascending.
	Unassigned        []int
	DroppedNodes      int
	DroppedMembers    int
	FailedEvaluations int
	// Pure and Impure count oracle verdicts; singleton leaves are not evaluated.
	Pure   int
	Impure int
}

type PurityClusterer struct {
	log     *logger.Logger
	oracle  PurityEvaluator
	sampler Sampler
	cfg     PurityConfig
}

func NewPurityClusterer(log *logger.Logger, oracle PurityEvaluator, sampler Sampler, cfg PurityConfig) *PurityClusterer {
	if log == nil {
		log = logger.NewNop()
	}
	if sampler == nil {
		sampler = NewDiversitySampler(0, 0, 0)
	}
	return &PurityClusterer{
		log:     log.With("component", "PurityClusterer"),
		oracle:  oracle,
		sampler: sampler,
		cfg:     cfg.withDefaults(),
	}
}

// Cluster builds the average-linkage hierarchy over vecs and walks it top
// down, emitting the first ancestor the oracle judges pure.
func (c *PurityClusterer) Cluster(ctx context.Context, vecs [][]float32, texts []string) (*PurityResult, error) {
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("purity cluster: %d vectors but %d texts", len(vecs), len(texts))
	}
	if c.oracle == nil {
		return nil, fmt.Errorf("purity cluster: missing oracle")
	}
	merges, err := AverageLinkage(ctx, vecs)
	if err != nil {
		return nil, fmt.Errorf("purity cluster: linkage: %w", err)
	}
	return c.Traverse(ctx, NewTree(len(vecs), merges), vecs, texts)
}

// Traverse walks tree breadth first. Children are only visited after their
// parent failed the purity gate.
func (c *PurityClusterer) Traverse(ctx context.Context, tree *Tree, vecs [][]float32, texts []string) (*PurityResult, error) {
	res := &PurityResult{}
	n := len(texts)
	if tree == nil || tree.Root < 0 || n == 0 {
		return res, nil
	}

	assigned := make([]bool, n)
	queue := []int{tree.Root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		node := tree.Nodes[id]

		if node.IsLeaf() {
			if c.cfg.MinSize > 1 {
				res.DroppedNodes++
				res.DroppedMembers++
				continue
			}
			assigned[node.Index] = true
			res.Clusters = append(res.Clusters, alignment.PureCluster{
				Indices: []int{node.Index},
				Texts:   []string{texts[node.Index]},
				Purity:  1,
			})
			continue
		}

		members := tree.Members(id)
		if len(members) < c.cfg.MinSize {
			res.DroppedNodes++
			res.DroppedMembers += len(members)
			c.log.Debug("node below minimum size", "node", id, "members", len(members))
			continue
		}

		sent := c.descriptors(members, vecs, texts)
		score, err := c.oracle.EvaluatePurity(ctx, sent)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil, err
			}
			res.FailedEvaluations++
			switch c.cfg.ErrorPolicy {
			case PolicyAbort:
				return nil, fmt.Errorf("evaluate node %d: %w", id, err)
			case PolicyDescend:
				c.log.Warn("purity evaluation failed, descending", "node", id, "members", len(members), "error", err)
				queue = append(queue, node.Left, node.Right)
			default:
				c.log.Warn("purity evaluation failed, skipping subtree", "node", id, "members", len(members), "error", err)
			}
			continue
		}

		if score >= c.cfg.Threshold {
			res.Pure++
			for _, m := range members {
				assigned[m] = true
			}
			res.Clusters = append(res.Clusters, alignment.PureCluster{
				Indices: members,
				Texts:   sent,
				Purity:  score,
			})
			c.log.Debug("pure node", "node", id, "members", len(members), "purity", score)
			continue
		}
		res.Impure++
		queue = append(queue, node.Left, node.Right)
	}

	for i, ok := range assigned {
		if !ok {
			res.Unassigned = append(res.Unassigned, i)
		}
	}
	sort.Ints(res.Unassigned)
	return res, nil
}

func (c *PurityClusterer) descriptors(members []int, vecs [][]float32, texts []string) []string {
	picked := members
	if len(members) > c.cfg.SampleThreshold && len(vecs) == len(texts) {
		sub := make([][]float32, len(members))
		for i, m := range members {
			sub[i] = vecs[m]
		}
		idx := c.sampler.Sample(sub, c.cfg.SampleThreshold)
		picked = make([]int, len(idx))
		for i, p := range idx {
			picked[i] = members[p]
		}
	}
	out := make([]string, len(picked))
	for i, m := range picked {
		out[i] = texts[m]
	}
	return out
}
