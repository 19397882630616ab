// Package neurondb is the read-mostly store of precomputed neuron metadata:
// explanations and their embeddings, activation statistics, topic
// assignments and example activating text.
package neurondb

import (
	"errors"
	"fmt"

	"github.com/ziadkadry99/neuronview/internal/palette"
)

var (
	// ErrNotFound is returned when no neuron exists at a layer/index.
	ErrNotFound = errors.New("neuron not found")
	// ErrInvalidCategory is returned for activation categories other than top and random.
	ErrInvalidCategory = errors.New("invalid activation category")
	// ErrUndecodableEmbedding is returned when a stored embedding cannot be
	// decoded. It wraps ErrNotFound: for projection purposes the two are the same.
	ErrUndecodableEmbedding = fmt.Errorf("%w: undecodable embedding", ErrNotFound)
)

// NeuronRecord is one row of the neurons table.
type NeuronRecord struct {
	ID              int64     `json:"id"`
	Layer           int       `json:"layer_index"`
	Index           int       `json:"neuron_index"`
	ExplanationText string    `json:"explanation_text"`
	Embedding       []float32 `json:"explanation_embedding,omitempty"`

	EVCorrelationScore        float64 `json:"explanation_ev_correlation_score"`
	RSquaredScore             float64 `json:"explanation_rsquared_score"`
	AbsoluteDevExplainedScore float64 `json:"explanation_absolute_dev_explained_score"`

	ActivationMean     float64 `json:"activation_mean"`
	ActivationVariance float64 `json:"activation_variance"`
	ActivationSkewness float64 `json:"activation_skewness"`
	ActivationKurtosis float64 `json:"activation_kurtosis"`

	TopicID int `json:"explanation_topic_id"`
}

// Category selects which activation examples to list.
type Category string

const (
	CategoryTop    Category = "top"
	CategoryRandom Category = "random"
)

// ParseCategory validates an activation category. The empty string means top.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case "":
		return CategoryTop, nil
	case CategoryTop, CategoryRandom:
		return c, nil
	}
	return "", fmt.Errorf("%w %q: must be top or random", ErrInvalidCategory, s)
}

// DefaultActivationLimit is used when a lookup does not set a limit.
const DefaultActivationLimit = 10

// ActivationSample is one example text with per-token activations. Tokens and
// Values have equal length.
type ActivationSample struct {
	ID       string    `json:"id"`
	Category Category  `json:"category"`
	Tokens   []string  `json:"tokens"`
	Values   []float64 `json:"activation_values"`
}

// MaxActivation returns the largest activation in the sample, or 0 when empty.
func (a ActivationSample) MaxActivation() float64 {
	if len(a.Values) == 0 {
		return 0
	}
	m := a.Values[0]
	for _, v := range a.Values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Topic is an entry in the topic catalog.
type Topic struct {
	ID       int           `json:"id"`
	Title    string        `json:"title"`
	TopWords []string      `json:"top_words"`
	Color    palette.Color `json:"color"`
}
