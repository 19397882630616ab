// Package projection lays out node explanation embeddings in 2D.
package projection

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ziadkadry99/neuronview/internal/normalize"
)

// Reducer maps the rows of a matrix to 2D points, one per row, in row order.
type Reducer interface {
	Reduce(data *mat.Dense) ([]normalize.Point, error)
	Name() string
}

const (
	MethodUMAP = "umap"
	MethodPCA  = "pca"
)

// NewReducer returns the reducer for method. The UMAP parameters are ignored by PCA.
func NewReducer(method string, params UMAP) (Reducer, error) {
	switch strings.ToLower(method) {
	case "", MethodUMAP:
		return params, nil
	case MethodPCA:
		return PCA{}, nil
	}
	return nil, fmt.Errorf("unknown projection method %q: must be umap or pca", method)
}
