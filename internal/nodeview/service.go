package nodeview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ziadkadry99/neuronview/internal/inference"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/metrics"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/normalize"
	"github.com/ziadkadry99/neuronview/internal/projection"
	"github.com/ziadkadry99/neuronview/internal/rank"
)

// ErrNodeNotInView is returned when ranking a node the committed view does not contain.
var ErrNodeNotInView = errors.New("node not in current view")

// TopicSource lists the topic catalog. *neurondb.Store implements it.
type TopicSource interface {
	ListTopics(ctx context.Context) ([]neurondb.Topic, error)
}

// Params are the user-facing inputs of a view run.
type Params struct {
	Prompt           string         `json:"prompt"`
	TargetTokens     []string       `json:"target_tokens,omitempty"`
	DistractorTokens []string       `json:"distractor_tokens,omitempty"`
	NodeType         nodes.NodeType `json:"node_type,omitempty"`
	TopAndBottomK    int            `json:"top_and_bottom_k,omitempty"`
}

// Options configures a Service.
type Options struct {
	NodeType      nodes.NodeType
	TopAndBottomK int
	SizeRange     normalize.Range
	// Recorder, if set, receives a summary of every finished run.
	Recorder RunRecorder
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeReady      Outcome = "ready"
	OutcomeError      Outcome = "error"
	OutcomeSuperseded Outcome = "superseded"
)

// RunSummary describes one finished run. Node counts are zero unless the run
// reached assembly.
type RunSummary struct {
	RequestID   uint64
	Outcome     Outcome
	Prompt      string
	NodeType    nodes.NodeType
	Nodes       int
	Failed      int
	Mismatched  int
	Unsupported int
	Error       string
	Duration    time.Duration
}

// RunRecorder persists run summaries. *audit.Store implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, sum RunSummary) error
}

// Service runs the inference → resolve → project → assemble pipeline and
// commits results to its View.
type Service struct {
	view      *View
	backend   inference.Backend
	projector *projection.Projector
	topicSrc  TopicSource
	opts      Options

	topicsMu sync.Mutex
	topics   map[int]neurondb.Topic
}

// NewService wires a pipeline. Zero options fall back to MLP neurons, 50 nodes
// per end and DefaultSizeRange.
func NewService(view *View, backend inference.Backend, projector *projection.Projector, topics TopicSource, opts Options) *Service {
	if opts.NodeType == "" {
		opts.NodeType = nodes.MLPNeuron
	}
	if opts.TopAndBottomK <= 0 {
		opts.TopAndBottomK = 50
	}
	if opts.SizeRange == (normalize.Range{}) {
		opts.SizeRange = DefaultSizeRange
	}
	return &Service{view: view, backend: backend, projector: projector, topicSrc: topics, opts: opts}
}

// View returns the view the service commits to.
func (s *Service) View() *View { return s.view }

// Run executes one pipeline run. It returns ErrSuperseded if a newer run
// began before this one finished; the view then reflects the newer run only.
func (s *Service) Run(ctx context.Context, p Params) (Snapshot, error) {
	id, runCtx := s.view.Begin(ctx)
	return s.finish(runCtx, id, p)
}

// Start begins a run and completes it in the background. It returns the run's
// request id; progress is observable through the view.
func (s *Service) Start(ctx context.Context, p Params) uint64 {
	id, runCtx := s.view.Begin(ctx)
	go s.finish(runCtx, id, p)
	return id
}

func (s *Service) finish(runCtx context.Context, id uint64, p Params) (Snapshot, error) {
	start := time.Now()
	snap, err := s.run(runCtx, id, p)
	out, outcome, err := s.settle(runCtx, id, snap, err)
	metrics.ViewRuns.WithLabelValues(string(outcome)).Inc()
	s.record(id, p, outcome, snap, err, time.Since(start))
	return out, err
}

// settle commits or fails the run and reports how it ended.
func (s *Service) settle(runCtx context.Context, id uint64, snap Snapshot, err error) (Snapshot, Outcome, error) {
	log := logger.Log.With("nodeview")
	if err != nil {
		if errors.Is(err, ErrSuperseded) || (runCtx.Err() != nil && s.view.Latest() != id) {
			log.Debug("discarding superseded run", "request_id", id)
			return Snapshot{}, OutcomeSuperseded, ErrSuperseded
		}
		var missing *MissingMetadataError
		if errors.As(err, &missing) {
			log.Error("view assembly invariant violated", "request_id", id, "node", missing.Identity.String(), "error", err)
		} else {
			log.Warn("view run failed", "request_id", id, "error", err)
		}
		if ferr := s.view.Fail(id, err); ferr != nil {
			return Snapshot{}, OutcomeSuperseded, ErrSuperseded
		}
		return s.view.Snapshot(), OutcomeError, err
	}

	if err := s.view.Commit(id, snap); err != nil {
		log.Debug("discarding superseded run", "request_id", id)
		return Snapshot{}, OutcomeSuperseded, err
	}
	metrics.ViewNodes.Set(float64(len(snap.Records)))
	log.Info("view ready", "request_id", id, "nodes", len(snap.Records),
		"failed", snap.Failed, "mismatched", snap.Mismatched, "unsupported", snap.Unsupported)
	return s.view.Snapshot(), OutcomeReady, nil
}

// record hands the run summary to the recorder, if any. The run context is
// already cancelled by now, so recording gets its own deadline.
func (s *Service) record(id uint64, p Params, outcome Outcome, snap Snapshot, err error, elapsed time.Duration) {
	if s.opts.Recorder == nil {
		return
	}
	nodeType := p.NodeType
	if nodeType == "" {
		nodeType = s.opts.NodeType
	}
	sum := RunSummary{
		RequestID:   id,
		Outcome:     outcome,
		Prompt:      p.Prompt,
		NodeType:    nodeType,
		Nodes:       len(snap.Records),
		Failed:      snap.Failed,
		Mismatched:  snap.Mismatched,
		Unsupported: snap.Unsupported,
		Duration:    elapsed,
	}
	if outcome == OutcomeError && err != nil {
		sum.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := s.opts.Recorder.RecordRun(ctx, sum); rerr != nil {
		logger.Log.With("nodeview").Warn("recording view run failed", "request_id", id, "error", rerr)
	}
}

func (s *Service) run(ctx context.Context, id uint64, p Params) (Snapshot, error) {
	nodeType := p.NodeType
	if nodeType == "" {
		nodeType = s.opts.NodeType
	}
	topK := p.TopAndBottomK
	if topK <= 0 {
		topK = s.opts.TopAndBottomK
	}

	resp, err := s.backend.Infer(ctx, inference.Request{
		Prompt:           p.Prompt,
		TargetTokens:     p.TargetTokens,
		DistractorTokens: p.DistractorTokens,
		TopAndBottomK:    topK,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("inference: %w", err)
	}
	if err := resp.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("inference: %w", err)
	}
	if err := s.view.Advance(id, StateProjecting); err != nil {
		return Snapshot{}, err
	}

	filtered := nodes.FilterByType(resp.NodeIndices, nodeType)
	ids, positions, unsupported, err := nodes.ResolveAll(filtered)
	if err != nil {
		return Snapshot{}, err
	}
	if unsupported > 0 {
		metrics.ProjectionExcluded.WithLabelValues(metrics.ReasonUnsupportedType).Add(float64(unsupported))
	}

	res, err := s.projector.Project(ctx, ids)
	if err != nil {
		return Snapshot{}, err
	}

	topics, err := s.loadTopics(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	survivorPositions := make([]int, len(res.Indices))
	for i, idx := range res.Indices {
		survivorPositions[i] = positions[idx]
	}
	records, err := Assemble(AssembleInput{
		MetricsByGroup: resp.ActivationsByGroupID,
		Positions:      survivorPositions,
		Coordinates:    res.Coordinates,
		Identities:     res.Identities,
		Metadata:       res.Records,
		Topics:         topics,
		SizeRange:      s.opts.SizeRange,
	})
	if err != nil {
		return Snapshot{}, err
	}

	sample := make([]*neurondb.NeuronRecord, 0, len(res.Records))
	seen := make(map[nodes.NodeIdentity]bool, len(res.Records))
	for _, id := range res.Identities {
		if seen[id] {
			continue
		}
		seen[id] = true
		sample = append(sample, res.Records[id])
	}

	return Snapshot{
		Prompt:          p.Prompt,
		Tokens:          resp.Tokens,
		Records:         records,
		ReferenceSample: sample,
		Excluded:        res.Excluded,
		Failed:          res.Failed,
		Mismatched:      res.Mismatched,
		Unsupported:     unsupported,
		NextTokens:      resp.NextTokens(),
	}, nil
}

// loadTopics fetches the topic catalog once and caches it. A failed fetch is
// retried on the next run.
func (s *Service) loadTopics(ctx context.Context) (map[int]neurondb.Topic, error) {
	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	if s.topics != nil {
		return s.topics, nil
	}
	if s.topicSrc == nil {
		return map[int]neurondb.Topic{}, nil
	}
	list, err := s.topicSrc.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading topics: %w", err)
	}
	s.topics = neurondb.TopicsByID(list)
	return s.topics, nil
}

// Ranked is a node from the committed view with its statistic ranks.
type Ranked struct {
	Record Record      `json:"record"`
	Ranks  []rank.Rank `json:"ranks"`
}

// Ranks ranks a node of the committed view against that view's reference sample.
func (s *Service) Ranks(id nodes.NodeIdentity) (*Ranked, error) {
	snap := s.view.Snapshot()
	for _, r := range snap.Records {
		if r.Identity == id {
			return &Ranked{Record: r, Ranks: rank.RankRecord(r.Metadata, snap.ReferenceSample)}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotInView, id)
}
