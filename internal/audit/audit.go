// Package audit keeps a persistent history of view runs.
package audit

import (
	"time"

	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/nodeview"
)

// Entry is one finished view run.
type Entry struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	RequestID   uint64           `json:"request_id"`
	Outcome     nodeview.Outcome `json:"outcome"`
	Prompt      string           `json:"prompt"`
	NodeType    nodes.NodeType   `json:"node_type"`
	Nodes       int              `json:"nodes"`
	Failed      int              `json:"failed"`
	Mismatched  int              `json:"mismatched"`
	Unsupported int              `json:"unsupported"`
	Error       string           `json:"error,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
}

func entryFromSummary(sum nodeview.RunSummary) Entry {
	return Entry{
		RequestID:   sum.RequestID,
		Outcome:     sum.Outcome,
		Prompt:      sum.Prompt,
		NodeType:    sum.NodeType,
		Nodes:       sum.Nodes,
		Failed:      sum.Failed,
		Mismatched:  sum.Mismatched,
		Unsupported: sum.Unsupported,
		Error:       sum.Error,
		DurationMS:  sum.Duration.Milliseconds(),
	}
}
