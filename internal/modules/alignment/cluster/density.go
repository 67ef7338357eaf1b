package cluster

import (
	"math"
	"sort"
)

// Noise is the density label of points outside every cluster.
const Noise = -1

// DensityCluster labels 2-D points with DBSCAN. minClusterSize is both the
// core-point neighbourhood size and the smallest cluster kept; smaller
// clusters become noise. A non-positive eps is estimated from the data.
// Cluster labels are numbered from 0 in order of first appearance.
func DensityCluster(points [][2]float64, minClusterSize int, eps float64) []int {
	n := len(points)
	if n == 0 {
		return nil
	}
	if minClusterSize < 1 {
		minClusterSize = 1
	}
	if eps <= 0 {
		eps = EstimateEps(points, minClusterSize)
	}
	raw := dbscan(points, eps, minClusterSize)

	sizes := map[int]int{}
	for _, l := range raw {
		if l != Noise {
			sizes[l]++
		}
	}
	remap := map[int]int{}
	out := make([]int, n)
	for i, l := range raw {
		if l == Noise || sizes[l] < minClusterSize {
			out[i] = Noise
			continue
		}
		next, ok := remap[l]
		if !ok {
			next = len(remap)
			remap[l] = next
		}
		out[i] = next
	}
	return out
}

// EstimateEps returns the median distance from each point to its k-th
// nearest neighbour (the point itself excluded).
func EstimateEps(points [][2]float64, k int) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}
	kth := make([]float64, n)
	dists := make([]float64, 0, n-1)
	for i := range points {
		dists = dists[:0]
		for j := range points {
			if i != j {
				dists = append(dists, euclid(points[i], points[j]))
			}
		}
		sort.Float64s(dists)
		kth[i] = dists[k-1]
	}
	sort.Float64s(kth)
	if n%2 == 1 {
		return kth[n/2]
	}
	return (kth[n/2-1] + kth[n/2]) / 2
}

func euclid(a, b [2]float64) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func dbscan(points [][2]float64, eps float64, minPts int) []int {
	const undefined = 0

	n := len(points)
	labels := make([]int, n)
	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != undefined {
			continue
		}
		neighbors := rangeQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = Noise
			continue
		}

		clusterID++
		labels[i] = clusterID
		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}
		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]
			if labels[q] == Noise {
				labels[q] = clusterID
			}
			if labels[q] != undefined {
				continue
			}
			labels[q] = clusterID
			if qn := rangeQuery(points, q, eps); len(qn) >= minPts {
				seed = append(seed, qn...)
			}
		}
	}
	return labels
}

// rangeQuery includes idx itself.
func rangeQuery(points [][2]float64, idx int, eps float64) []int {
	var out []int
	for i := range points {
		if euclid(points[idx], points[i]) <= eps {
			out = append(out, i)
		}
	}
	return out
}
