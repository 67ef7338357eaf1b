package cluster

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

type purityFunc func(ctx context.Context, descriptors []string) (float64, error)

func (f purityFunc) EvaluatePurity(ctx context.Context, descriptors []string) (float64, error) {
	return f(ctx, descriptors)
}

type callLog struct {
	mu    sync.Mutex
	sizes []int
}

func (c *callLog) wrap(score func(n int) (float64, error)) purityFunc {
	return func(_ context.Context, d []string) (float64, error) {
		c.mu.Lock()
		c.sizes = append(c.sizes, len(d))
		c.mu.Unlock()
		return score(len(d))
	}
}

func pureUpTo(limit int) func(int) (float64, error) {
	return func(n int) (float64, error) {
		if n <= limit {
			return 0.95, nil
		}
		return 0.3, nil
	}
}

var ageKeys = []string{
	"Key: Age  Description: age of host  Examples: [34]",
	"Key: host_age  Description: host age in years  Examples: [51]",
	"Key: age(years)  Description: age at collection  Examples: [\"40\"]",
}

func TestAllPureEmitsSingleCluster(t *testing.T) {
	vecs := [][]float32{{1, 0.01, 0}, {1, 0.02, 0}, {1, 0, 0.01}}
	calls := &callLog{}
	c := NewPurityClusterer(nil, calls.wrap(pureUpTo(100)), nil, PurityConfig{Threshold: 0.8, MinSize: 2})

	res, err := c.Cluster(context.Background(), vecs, ageKeys)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)

	got := append([]int(nil), res.Clusters[0].Indices...)
	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.InDelta(t, 0.95, res.Clusters[0].Purity, 1e-9)
	assert.ElementsMatch(t, ageKeys, res.Clusters[0].Texts)
	assert.Empty(t, res.Unassigned)
	assert.Equal(t, []int{3}, calls.sizes)
}

func TestImpureRootSplitsAndDropsSmallLeaf(t *testing.T) {
	vecs := [][]float32{{1, 0, 0}, {0.99, 0.1, 0}, {0.9, 0.4, 0}}
	calls := &callLog{}
	c := NewPurityClusterer(nil, calls.wrap(pureUpTo(2)), nil, PurityConfig{Threshold: 0.8, MinSize: 2})

	res, err := c.Cluster(context.Background(), vecs, ageKeys)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)

	got := append([]int(nil), res.Clusters[0].Indices...)
	sort.Ints(got)
	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, []int{2}, res.Unassigned)
	assert.Equal(t, 1, res.DroppedNodes)
	assert.Equal(t, 1, res.DroppedMembers)
	assert.Equal(t, 1, res.Pure)
	assert.Equal(t, 1, res.Impure)
	assert.Equal(t, []int{3, 2}, calls.sizes)
}

func TestPureNodeStopsDescent(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0.98, 0.05}, {0, 1}, {0.05, 0.98}}
	texts := []string{"a", "b", "c", "d"}
	calls := &callLog{}
	c := NewPurityClusterer(nil, calls.wrap(pureUpTo(2)), nil, PurityConfig{Threshold: 0.8, MinSize: 1})

	res, err := c.Cluster(context.Background(), vecs, texts)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 2)
	for _, pc := range res.Clusters {
		assert.Len(t, pc.Indices, 2)
	}
	// Root, then the two pure children; no leaf is ever reached.
	assert.Equal(t, []int{4, 2, 2}, calls.sizes)
	assert.Empty(t, res.Unassigned)
}

func TestNodesBelowMinimumSizeNeverCovered(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0.99, 0.02}, {0.98, 0.03}, {0, 1}, {0.02, 0.99}}
	texts := []string{"a", "b", "c", "d", "e"}
	c := NewPurityClusterer(nil, (&callLog{}).wrap(pureUpTo(3)), nil, PurityConfig{Threshold: 0.8, MinSize: 3})

	res, err := c.Cluster(context.Background(), vecs, texts)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	got := append([]int(nil), res.Clusters[0].Indices...)
	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, []int{3, 4}, res.Unassigned)
	assert.Equal(t, 1, res.DroppedNodes)
	assert.Equal(t, 2, res.DroppedMembers)
}

func TestSingletonLeavesEmittedWhenFloorIsOne(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}}
	c := NewPurityClusterer(nil, (&callLog{}).wrap(pureUpTo(1)), nil, PurityConfig{Threshold: 0.8, MinSize: 1})

	res, err := c.Cluster(context.Background(), vecs, []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 2)
	for _, pc := range res.Clusters {
		assert.Len(t, pc.Indices, 1)
		assert.Equal(t, 1.0, pc.Purity)
	}
	assert.Equal(t, 0, res.Pure)
	assert.Equal(t, 1, res.Impure)
}

func TestOracleFailurePolicies(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0.98, 0.05}, {0, 1}, {0.05, 0.98}}
	texts := []string{"a", "b", "c", "d"}
	failRoot := func(n int) (float64, error) {
		if n == 4 {
			return 0, fault.Oracle("purity", errors.New("missing Purity field"))
		}
		return 0.95, nil
	}

	t.Run("skip", func(t *testing.T) {
		c := NewPurityClusterer(nil, (&callLog{}).wrap(failRoot), nil, PurityConfig{Threshold: 0.8, MinSize: 1})
		res, err := c.Cluster(context.Background(), vecs, texts)
		require.NoError(t, err)
		assert.Empty(t, res.Clusters)
		assert.Equal(t, []int{0, 1, 2, 3}, res.Unassigned)
		assert.Equal(t, 1, res.FailedEvaluations)
	})

	t.Run("descend", func(t *testing.T) {
		c := NewPurityClusterer(nil, (&callLog{}).wrap(failRoot), nil, PurityConfig{Threshold: 0.8, MinSize: 1, ErrorPolicy: PolicyDescend})
		res, err := c.Cluster(context.Background(), vecs, texts)
		require.NoError(t, err)
		assert.Len(t, res.Clusters, 2)
		assert.Empty(t, res.Unassigned)
		assert.Equal(t, 1, res.FailedEvaluations)
	})

	t.Run("abort", func(t *testing.T) {
		c := NewPurityClusterer(nil, (&callLog{}).wrap(failRoot), nil, PurityConfig{Threshold: 0.8, MinSize: 1, ErrorPolicy: PolicyAbort})
		_, err := c.Cluster(context.Background(), vecs, texts)
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindOracle))
	})
}

func TestCancellationAlwaysReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	oracle := purityFunc(func(context.Context, []string) (float64, error) {
		cancel()
		return 0, context.Canceled
	})
	c := NewPurityClusterer(nil, oracle, nil, PurityConfig{Threshold: 0.8, MinSize: 1})
	_, err := c.Cluster(ctx, [][]float32{{1, 0}, {0, 1}}, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}

type fixedSampler struct{ called int }

func (s *fixedSampler) Sample(vecs [][]float32, n int) []int {
	s.called++
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestLargeNodesAreSampled(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0.99, 0.01}, {0.98, 0.02}, {0.97, 0.03}}
	texts := []string{"a", "b", "c", "d"}
	calls := &callLog{}
	sampler := &fixedSampler{}
	c := NewPurityClusterer(nil, calls.wrap(pureUpTo(10)), sampler, PurityConfig{Threshold: 0.8, MinSize: 1, SampleThreshold: 2})

	res, err := c.Cluster(context.Background(), vecs, texts)
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Len(t, res.Clusters[0].Indices, 4)
	assert.Len(t, res.Clusters[0].Texts, 2)
	assert.Equal(t, []int{2}, calls.sizes)
	assert.Equal(t, 1, sampler.called)
}

func TestClusterRejectsMismatchedInput(t *testing.T) {
	c := NewPurityClusterer(nil, (&callLog{}).wrap(pureUpTo(1)), nil, PurityConfig{})
	_, err := c.Cluster(context.Background(), [][]float32{{1}}, nil)
	assert.Error(t, err)

	res, err := c.Cluster(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Clusters)
}
