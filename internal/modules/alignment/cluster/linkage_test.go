package cluster

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageLinkageMergesClosestFirst(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.99, 0.01, 0},
		{0, 0.98, 0.02},
	}
	merges, err := AverageLinkage(context.Background(), vecs)
	require.NoError(t, err)
	require.Len(t, merges, 3)

	assert.Equal(t, Merge{A: 0, B: 2, Distance: merges[0].Distance, Size: 2}, merges[0])
	assert.Equal(t, 1, merges[1].A)
	assert.Equal(t, 3, merges[1].B)
	assert.Equal(t, 4, merges[2].A)
	assert.Equal(t, 5, merges[2].B)
	assert.Equal(t, 4, merges[2].Size)
	for i := 1; i < len(merges); i++ {
		assert.LessOrEqual(t, merges[i-1].Distance, merges[i].Distance)
	}
	// Average of the four cross distances, all ~1.
	assert.InDelta(t, 1.0, merges[2].Distance, 0.02)
}

func TestAverageLinkageUsesAverageNotSingle(t *testing.T) {
	// 0 and 1 pair first; 2 is close to 1 but far from 0.
	vecs := [][]float32{{1, 0}, {0.9, 0.1}, {0.6, 0.4}, {0, 1}}
	merges, err := AverageLinkage(context.Background(), vecs)
	require.NoError(t, err)
	tree := NewTree(len(vecs), merges)
	members := tree.Members(tree.Root)
	sort.Ints(members)
	assert.Equal(t, []int{0, 1, 2, 3}, members)
	assert.Equal(t, len(vecs), tree.Nodes[tree.Root].Size)
}

func TestTreeMembersUnionOfChildren(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0.95, 0.05}, {0, 1}, {0.05, 0.95}, {0.7, 0.7}}
	merges, err := AverageLinkage(context.Background(), vecs)
	require.NoError(t, err)
	tree := NewTree(len(vecs), merges)

	for id, node := range tree.Nodes {
		if node.IsLeaf() {
			assert.Equal(t, []int{node.Index}, tree.Members(id))
			continue
		}
		got := tree.Members(id)
		want := append(append([]int{}, tree.Members(node.Left)...), tree.Members(node.Right)...)
		sort.Ints(got)
		sort.Ints(want)
		assert.Equal(t, want, got)
	}
}

func TestAverageLinkageSmallInputs(t *testing.T) {
	merges, err := AverageLinkage(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, merges)

	tree := NewTree(1, nil)
	assert.Equal(t, 0, tree.Root)
	assert.Equal(t, []int{0}, tree.Members(0))

	empty := NewTree(0, nil)
	assert.Equal(t, -1, empty.Root)
	assert.Nil(t, empty.Members(empty.Root))
}

func TestAverageLinkageHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AverageLinkage(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	assert.ErrorIs(t, err, context.Canceled)
}
