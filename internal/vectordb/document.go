package vectordb

import "errors"

var (
	// ErrNotIndexed means the neuron has no entry in the index, usually
	// because it has no usable explanation embedding.
	ErrNotIndexed = errors.New("neuron not in neighbour index")

	// ErrSearchDisabled is returned by Search when no query embedder is configured.
	ErrSearchDisabled = errors.New("explanation search is not configured")

	// ErrDimensionMismatch means a query vector does not match the indexed dimension.
	ErrDimensionMismatch = errors.New("query embedding dimension does not match index")
)

// Neighbour is one search hit.
type Neighbour struct {
	Layer           int     `json:"layer_index"`
	Index           int     `json:"neuron_index"`
	ExplanationText string  `json:"explanation_text"`
	TopicID         int     `json:"explanation_topic_id"`
	Similarity      float32 `json:"similarity"`
}

// Filter narrows results by metadata.
type Filter struct {
	TopicID *int
	Layer   *int
}
