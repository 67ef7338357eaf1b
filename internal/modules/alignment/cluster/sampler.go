package cluster

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Sampler picks a representative subset of vectors, returning positions into
// vecs.
type Sampler interface {
	Sample(vecs [][]float32, n int) []int
}

const (
	defaultSamplerComponents = 50
	defaultSamplerClusters   = 10
	samplerMaxIter           = 100
)

// DiversitySampler standardises the vectors, projects them onto their leading
// principal components, partitions the projection with k-means and draws an
// even quota from every partition. Shortfalls are backfilled uniformly.
type DiversitySampler struct {
	components int
	clusters   int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDiversitySampler returns a sampler. A zero seed draws a random one.
func NewDiversitySampler(components, clusters int, seed uint64) *DiversitySampler {
	if components <= 0 {
		components = defaultSamplerComponents
	}
	if clusters <= 0 {
		clusters = defaultSamplerClusters
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &DiversitySampler{
		components: components,
		clusters:   clusters,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *DiversitySampler) Sample(vecs [][]float32, n int) []int {
	m := len(vecs)
	if n <= 0 || m == 0 {
		return nil
	}
	if m <= n {
		out := make([]int, m)
		for i := range out {
			out[i] = i
		}
		return out
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reduced, ok := s.project(vecs)
	if !ok {
		return s.rng.Perm(m)[:n]
	}

	k := min(s.clusters, m)
	assign := kmeans(reduced, k, s.rng, samplerMaxIter)
	groups := make([][]int, k)
	for i, c := range assign {
		groups[c] = append(groups[c], i)
	}

	quota := n / k
	chosen := make([]bool, m)
	out := make([]int, 0, n)
	for _, g := range groups {
		if len(g) <= quota {
			for _, idx := range g {
				chosen[idx] = true
				out = append(out, idx)
			}
			continue
		}
		perm := s.rng.Perm(len(g))
		for _, p := range perm[:quota] {
			chosen[g[p]] = true
			out = append(out, g[p])
		}
	}

	if len(out) < n {
		rest := make([]int, 0, m-len(out))
		for i := 0; i < m; i++ {
			if !chosen[i] {
				rest = append(rest, i)
			}
		}
		s.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		out = append(out, rest[:n-len(out)]...)
	}
	return out
}

func (s *DiversitySampler) project(vecs [][]float32) ([][]float64, bool) {
	x := standardize(vecs)
	rows, dim := x.Dims()

	var pc stat.PC
	if !pc.PrincipalComponents(x, nil) {
		return nil, false
	}
	var basis mat.Dense
	pc.VectorsTo(&basis)
	_, avail := basis.Dims()
	k := min(s.components, rows, dim, avail)
	if k < 1 {
		return nil, false
	}

	var proj mat.Dense
	proj.Mul(x, basis.Slice(0, dim, 0, k))
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, &proj)
	}
	return out, true
}

// standardize centres every column and scales it to unit population
// variance. Constant columns are only centred.
func standardize(vecs [][]float32) *mat.Dense {
	rows, dim := len(vecs), len(vecs[0])
	x := mat.NewDense(rows, dim, nil)
	for i, v := range vecs {
		for j := 0; j < dim && j < len(v); j++ {
			x.Set(i, j, float64(v[j]))
		}
	}
	col := make([]float64, rows)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, x)
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := 0; i < rows; i++ {
			x.Set(i, j, (col[i]-mean)/std)
		}
	}
	return x
}
