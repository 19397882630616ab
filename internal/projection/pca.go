package projection

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ziadkadry99/neuronview/internal/normalize"
)

// PCA projects rows onto their first two principal components.
type PCA struct{}

// Name returns "pca".
func (PCA) Name() string { return MethodPCA }

// Reduce centres the columns of data and projects onto the top two right
// singular vectors. When the data has rank below two the missing component is zero.
func (PCA) Reduce(data *mat.Dense) ([]normalize.Point, error) {
	n, d := data.Dims()
	if n < 2 {
		return nil, fmt.Errorf("pca needs at least 2 rows, got %d", n)
	}

	centered := mat.NewDense(n, d, nil)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, data)
		m := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, col[i]-m)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return nil, errors.New("pca: SVD factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, nc := v.Dims()

	comps := nc
	if comps > 2 {
		comps = 2
	}
	var proj mat.Dense
	proj.Mul(centered, v.Slice(0, d, 0, comps))

	out := make([]normalize.Point, n)
	for i := range out {
		out[i].X = proj.At(i, 0)
		if comps > 1 {
			out[i].Y = proj.At(i, 1)
		}
	}
	return out, nil
}
