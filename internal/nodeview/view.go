package nodeview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ziadkadry99/neuronview/internal/inference"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/projection"
)

// ErrSuperseded is returned when a run tries to change the view after a newer
// run has begun.
var ErrSuperseded = errors.New("view run superseded by a newer request")

// State is the view lifecycle stage.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProjecting State = "projecting"
	StateReady      State = "ready"
	StateError      State = "error"
)

// Snapshot is a consistent copy of the view. Records and ReferenceSample
// always come from the same completed run.
type Snapshot struct {
	RequestID       uint64                       `json:"request_id"`
	State           State                        `json:"state"`
	Prompt          string                       `json:"prompt,omitempty"`
	Tokens          []string                     `json:"tokens,omitempty"`
	Records         []Record                     `json:"records"`
	ReferenceSample []*neurondb.NeuronRecord     `json:"-"`
	Excluded        []projection.Exclusion       `json:"excluded,omitempty"`
	Failed          int                          `json:"failed"`
	Mismatched      int                          `json:"mismatched"`
	Unsupported     int                          `json:"unsupported"`
	NextTokens      []inference.TokenProbability `json:"next_tokens,omitempty"`
	Error           string                       `json:"error,omitempty"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

// View holds the committed node view. Only the most recently begun run may
// change it.
type View struct {
	mu     sync.Mutex
	latest uint64
	cancel context.CancelFunc
	snap   Snapshot
	subs   map[chan Snapshot]struct{}
}

// NewView returns an idle view.
func NewView() *View {
	return &View{
		snap: Snapshot{State: StateIdle, Records: []Record{}, UpdatedAt: time.Now().UTC()},
		subs: make(map[chan Snapshot]struct{}),
	}
}

// Begin starts a new run and returns its id and a context that is cancelled
// as soon as another run begins. The previous run's context is cancelled.
// Records from the last committed run stay visible until the new run commits or fails.
func (v *View) Begin(ctx context.Context) (uint64, context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.latest++

	v.snap.RequestID = v.latest
	v.snap.State = StateFetching
	v.snap.Error = ""
	v.snap.UpdatedAt = time.Now().UTC()
	v.publishLocked()
	logger.Log.With("nodeview").Debug("view run started", "request_id", v.latest)
	return v.latest, runCtx
}

// Advance moves run id to state.
func (v *View) Advance(id uint64, state State) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id != v.latest {
		return ErrSuperseded
	}
	v.snap.State = state
	v.snap.UpdatedAt = time.Now().UTC()
	v.publishLocked()
	logger.Log.With("nodeview").Debug("view state changed", "request_id", id, "state", string(state))
	return nil
}

// Commit replaces the view with the result of run id and marks it ready.
func (v *View) Commit(id uint64, snap Snapshot) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id != v.latest {
		return ErrSuperseded
	}
	snap.RequestID = id
	snap.State = StateReady
	snap.Error = ""
	snap.UpdatedAt = time.Now().UTC()
	if snap.Records == nil {
		snap.Records = []Record{}
	}
	v.snap = snap
	v.releaseLocked()
	v.publishLocked()
	return nil
}

// Fail moves run id to the error state and discards the view's records.
func (v *View) Fail(id uint64, err error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id != v.latest {
		return ErrSuperseded
	}
	v.snap = Snapshot{
		RequestID: id,
		State:     StateError,
		Prompt:    v.snap.Prompt,
		Records:   []Record{},
		Error:     err.Error(),
		UpdatedAt: time.Now().UTC(),
	}
	v.releaseLocked()
	v.publishLocked()
	return nil
}

// Latest returns the id of the most recently begun run.
func (v *View) Latest() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest
}

// Snapshot returns the current view. Slices are shared with the view but are
// never modified after commit.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Subscribe returns a channel that receives the view after every change,
// starting with the current one. Slow subscribers miss updates rather than
// block the pipeline. Call the returned func to unsubscribe.
func (v *View) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	v.mu.Lock()
	v.subs[ch] = struct{}{}
	ch <- v.snap
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, ch)
			v.mu.Unlock()
			close(ch)
		})
	}
}

func (v *View) publishLocked() {
	for ch := range v.subs {
		select {
		case ch <- v.snap:
		default:
		}
	}
}

// releaseLocked cancels the finished run's context to release its resources.
func (v *View) releaseLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}
