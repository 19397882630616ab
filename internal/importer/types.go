package importer

import (
	"fmt"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
)

// Kind tags each JSONL line.
type Kind string

const (
	KindNeuron      Kind = "neuron"
	KindActivations Kind = "activations"
	KindTopic       Kind = "topic"
)

// envelope is decoded first to dispatch on Kind; the full line is then
// decoded into the matching line type.
type envelope struct {
	Kind Kind `json:"type"`
}

// ActivationsLine holds example texts for one neuron.
type ActivationsLine struct {
	Layer   int                         `json:"layer_index"`
	Index   int                         `json:"neuron_index"`
	Samples []neurondb.ActivationSample `json:"samples"`
}

// TopicLine is one topic catalog entry.
type TopicLine struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	TopWords []string `json:"top_words"`
}

// Stats summarises an import.
type Stats struct {
	Files       int `json:"files"`
	Neurons     int `json:"neurons"`
	Activations int `json:"activations"`
	Topics      int `json:"topics"`
	Skipped     int `json:"skipped"`
}

// LineError locates a line that could not be imported.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
