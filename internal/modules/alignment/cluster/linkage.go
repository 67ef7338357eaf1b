package cluster

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/embers-fuse/internal/modules/alignment/vecmath"
)

// Merge is one row of a linkage matrix: clusters A and B (A < B) joined at
// Distance into a cluster of Size leaves. Cluster ids below n are leaves,
// merge i creates id n+i.
type Merge struct {
	A, B     int
	Distance float64
	Size     int
}

// condensed is the upper triangle of a symmetric distance matrix.
type condensed struct {
	n int
	d []float32
}

func (c *condensed) idx(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return c.n*i - i*(i+1)/2 + (j - i - 1)
}

func (c *condensed) get(i, j int) float64  { return float64(c.d[c.idx(i, j)]) }
func (c *condensed) set(i, j int, v float64) { c.d[c.idx(i, j)] = float32(v) }

func cosineCondensed(ctx context.Context, vecs [][]float32) (*condensed, error) {
	n := len(vecs)
	c := &condensed{n: n, d: make([]float32, n*(n-1)/2)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n-1; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			base := c.idx(i, i+1)
			for j := i + 1; j < n; j++ {
				c.d[base+j-i-1] = float32(vecmath.CosineDistance(vecs[i], vecs[j]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

// AverageLinkage builds an average-linkage hierarchy over vecs with cosine
// distance, using the nearest-neighbour chain algorithm. Rows are ordered by
// distance and labelled like scipy's linkage output.
func AverageLinkage(ctx context.Context, vecs [][]float32) ([]Merge, error) {
	n := len(vecs)
	if n < 2 {
		return nil, nil
	}
	dist, err := cosineCondensed(ctx, vecs)
	if err != nil {
		return nil, err
	}

	size := make([]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	raw := make([]Merge, 0, n-1)
	chain := make([]int, 0, n)

	for step := 0; step < n-1; step++ {
		if step%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(chain) == 0 {
			for i := 0; i < n; i++ {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}

		var x, y int
		var current float64
		for {
			x = chain[len(chain)-1]
			y = -1
			current = math.Inf(1)
			if len(chain) > 1 {
				y = chain[len(chain)-2]
				current = dist.get(x, y)
			}
			for i := 0; i < n; i++ {
				if !active[i] || i == x {
					continue
				}
				if d := dist.get(x, i); d < current {
					current = d
					y = i
				}
			}
			if len(chain) > 1 && y == chain[len(chain)-2] {
				break
			}
			chain = append(chain, y)
		}
		chain = chain[:len(chain)-2]

		if x > y {
			x, y = y, x
		}
		nx, ny := size[x], size[y]
		raw = append(raw, Merge{A: x, B: y, Distance: current, Size: nx + ny})

		// x leaves the active set, y becomes the merged cluster.
		active[x] = false
		size[y] = nx + ny
		for i := 0; i < n; i++ {
			if !active[i] || i == y {
				continue
			}
			d := (float64(nx)*dist.get(x, i) + float64(ny)*dist.get(y, i)) / float64(nx+ny)
			dist.set(y, i, d)
		}
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Distance < raw[j].Distance })
	return relabel(raw, n), nil
}

// relabel converts merges expressed in representative leaf ids into
// sequential cluster ids.
func relabel(raw []Merge, n int) []Merge {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			next := parent[x]
			parent[x] = root
			x = next
		}
		return root
	}

	out := make([]Merge, len(raw))
	for i, m := range raw {
		a, b := find(m.A), find(m.B)
		if a > b {
			a, b = b, a
		}
		next := n + i
		parent[a] = next
		parent[b] = next
		out[i] = Merge{A: a, B: b, Distance: m.Distance, Size: m.Size}
	}
	return out
}
