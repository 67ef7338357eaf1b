package cluster

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA2D projects vecs onto their first two principal components. Missing
// components (fewer than two samples or dimensions) are left as zero.
func PCA2D(vecs [][]float32) ([][2]float64, error) {
	n := len(vecs)
	if n == 0 {
		return nil, nil
	}
	out := make([][2]float64, n)
	if n == 1 {
		return out, nil
	}

	dim := len(vecs[0])
	x := mat.NewDense(n, dim, nil)
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("pca: vector %d has dimension %d, want %d", i, len(v), dim)
		}
		for j, f := range v {
			x.Set(i, j, float64(f))
		}
	}

	var pc stat.PC
	if !pc.PrincipalComponents(x, nil) {
		return nil, fmt.Errorf("pca: decomposition failed")
	}
	var basis mat.Dense
	pc.VectorsTo(&basis)
	_, avail := basis.Dims()
	k := min(2, avail)

	centred := mat.NewDense(n, dim, nil)
	means := make([]float64, dim)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			centred.Set(i, j, x.At(i, j)-means[j])
		}
	}

	var proj mat.Dense
	proj.Mul(centred, basis.Slice(0, dim, 0, k))
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			out[i][j] = proj.At(i, j)
		}
	}
	return out, nil
}
