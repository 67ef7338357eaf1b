package vecmath

import "math"

// Truncate returns a copy of the first dim components of v (all of v when dim
// is not positive or exceeds its length).
func Truncate(v []float32, dim int) []float32 {
	if dim <= 0 || dim > len(v) {
		dim = len(v)
	}
	out := make([]float32, dim)
	copy(out, v[:dim])
	return out
}

// NormalizeL2 returns a unit-length copy of v. Zero vectors are returned unchanged.
func NormalizeL2(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range out {
		out[i] = float32(float64(out[i]) * inv)
	}
	return out
}

// Prepare truncates every vector to dim and L2-normalises it.
func Prepare(vecs [][]float32, dim int) [][]float32 {
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = NormalizeL2(Truncate(v, dim))
	}
	return out
}

func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CosineDistance is 1 - cosine similarity, clamped to [0, 2].
func CosineDistance(a, b []float32) float64 {
	d := 1 - CosineSimilarity(a, b)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

func ToFloat64(vecs [][]float32) [][]float64 {
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = float64(x)
		}
		out[i] = row
	}
	return out
}
