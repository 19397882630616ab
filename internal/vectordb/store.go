package vectordb

import (
	"context"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
)

// NeuronSource streams every stored neuron. *neurondb.Store implements it.
type NeuronSource interface {
	AllNeurons(ctx context.Context, fn func(*neurondb.NeuronRecord) error) error
}

// NeighbourIndex finds neurons with similar explanations.
type NeighbourIndex interface {
	// Similar returns up to n neurons closest to the indexed neuron (layer, index),
	// excluding the neuron itself.
	Similar(ctx context.Context, layer, index, n int, filter *Filter) ([]Neighbour, error)

	// Search embeds query and returns the n closest neurons.
	Search(ctx context.Context, query string, n int, filter *Filter) ([]Neighbour, error)

	// Count returns the number of indexed neurons.
	Count() int
}
