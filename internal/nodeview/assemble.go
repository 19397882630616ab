// Package nodeview builds the projected node view for an inference run and
// owns its lifecycle: fetching, projecting, committing, and the snapshot that
// rank lookups read from.
package nodeview

import (
	"errors"
	"fmt"
	"math"

	"github.com/ziadkadry99/neuronview/internal/inference"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/normalize"
	"github.com/ziadkadry99/neuronview/internal/palette"
)

// ErrMissingMetadata means a surviving node has no metadata. The projector
// only keeps nodes it fetched metadata for, so this is a bug, not a data problem.
var ErrMissingMetadata = errors.New("missing metadata for projected node")

// MissingMetadataError names the node without metadata.
type MissingMetadataError struct {
	Identity nodes.NodeIdentity
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingMetadata, e.Identity)
}

func (e *MissingMetadataError) Unwrap() error { return ErrMissingMetadata }

// UnknownTopic stands in for topic ids missing from the catalog.
var UnknownTopic = neurondb.Topic{
	ID:       palette.UnknownTopicID,
	Title:    "Unknown",
	TopWords: []string{},
	Color:    palette.TopicColor(palette.UnknownTopicID),
}

// DefaultSizeRange is the rendered radius range, relative to the base node size.
var DefaultSizeRange = normalize.Range{Min: 0.3, Max: 1.2}

// MetricSet holds one node's value for each tracked metric group.
type MetricSet struct {
	Activation     float64 `json:"activation"`
	WriteNorm      float64 `json:"write_norm"`
	DirectionWrite float64 `json:"direction_write"`
	ActTimesGrad   float64 `json:"act_times_grad"`
}

// Shape is the marker a node is drawn with.
type Shape string

const (
	ShapeCircle  Shape = "circle"
	ShapeDiamond Shape = "diamond"
)

// Record is one node ready for rendering. Metadata omits the embedding.
type Record struct {
	Identity   nodes.NodeIdentity     `json:"identity"`
	Coordinate normalize.Point        `json:"coordinate"`
	Metadata   *neurondb.NeuronRecord `json:"metadata"`
	Metrics    MetricSet              `json:"metrics"`
	Topic      neurondb.Topic         `json:"topic"`
	Size       float64                `json:"size"`
	Shape      Shape                  `json:"shape"`
}

// AssembleInput gathers everything Assemble zips together. Identities,
// Positions and Coordinates are parallel: Positions[i] is the index of
// Identities[i] in the backend's node list, which is what MetricsByGroup
// arrays are aligned to.
type AssembleInput struct {
	MetricsByGroup map[string][]float64
	Positions      []int
	Coordinates    []normalize.Point
	Identities     []nodes.NodeIdentity
	Metadata       map[nodes.NodeIdentity]*neurondb.NeuronRecord
	Topics         map[int]neurondb.Topic
	SizeRange      normalize.Range
}

// Assemble builds one Record per identity. A missing metric group reads as
// zeros; an identity without metadata fails the whole batch with a
// *MissingMetadataError. Inputs are not modified.
func Assemble(in AssembleInput) ([]Record, error) {
	n := len(in.Identities)
	if len(in.Positions) != n || len(in.Coordinates) != n {
		return nil, fmt.Errorf("assemble: %d identities, %d positions, %d coordinates",
			n, len(in.Positions), len(in.Coordinates))
	}
	sizeRange := in.SizeRange
	if sizeRange == (normalize.Range{}) {
		sizeRange = DefaultSizeRange
	}

	groups := make(map[string][]float64, len(inference.Groups))
	for _, g := range inference.Groups {
		vals, ok := in.MetricsByGroup[g]
		if !ok {
			continue
		}
		aligned, err := nodes.Realign(vals, in.Positions)
		if err != nil {
			return nil, fmt.Errorf("assemble: metric group %q: %w", g, err)
		}
		groups[g] = aligned
	}
	at := func(group string, i int) float64 {
		if vals, ok := groups[group]; ok {
			return vals[i]
		}
		return 0
	}

	records := make([]Record, n)
	maxAbs := 0.0
	for i, id := range in.Identities {
		meta, ok := in.Metadata[id]
		if !ok || meta == nil {
			return nil, &MissingMetadataError{Identity: id}
		}
		slim := *meta
		slim.Embedding = nil

		topic, ok := in.Topics[meta.TopicID]
		if !ok {
			topic = UnknownTopic
		}

		m := MetricSet{
			Activation:     at(inference.GroupActivation, i),
			WriteNorm:      at(inference.GroupWriteNorm, i),
			DirectionWrite: at(inference.GroupDirectionWrite, i),
			ActTimesGrad:   at(inference.GroupActTimesGrad, i),
		}
		maxAbs = math.Max(maxAbs, math.Abs(m.ActTimesGrad))

		shape := ShapeCircle
		if m.ActTimesGrad < 0 {
			shape = ShapeDiamond
		}
		records[i] = Record{
			Identity:   id,
			Coordinate: in.Coordinates[i],
			Metadata:   &slim,
			Metrics:    m,
			Topic:      topic,
			Shape:      shape,
		}
	}

	valueRange := normalize.Range{Min: 0, Max: maxAbs}
	for i := range records {
		records[i].Size = normalize.InterpolateSize(math.Abs(records[i].Metrics.ActTimesGrad), valueRange, sizeRange)
	}
	return records, nil
}
