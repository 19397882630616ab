package projection

import (
	"context"
	"errors"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/metrics"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/normalize"
)

// MetadataSource looks up a node's stored metadata. *neurondb.Store implements it.
type MetadataSource interface {
	GetNeuron(ctx context.Context, layer, index int) (*neurondb.NeuronRecord, error)
}

// DefaultConcurrency bounds in-flight metadata fetches when none is configured.
const DefaultConcurrency = 8

// Projector fetches embeddings for a batch of nodes and lays them out in 2D.
type Projector struct {
	source      MetadataSource
	reducer     Reducer
	concurrency int
}

// NewProjector creates a projector. A non-positive concurrency uses DefaultConcurrency.
func NewProjector(source MetadataSource, reducer Reducer, concurrency int) *Projector {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Projector{
		source:      source,
		reducer:     reducer,
		concurrency: concurrency,
	}
}

// Exclusion records why a node was left out of a projection.
type Exclusion struct {
	Identity nodes.NodeIdentity `json:"identity"`
	Reason   string             `json:"reason"`
}

// Result is a completed projection. Identities are the surviving nodes in
// input order and Coordinates[i] belongs to Identities[i]; callers must zip
// against Identities, not the requested list.
type Result struct {
	Identities []nodes.NodeIdentity
	// Indices[i] is the position of Identities[i] in the requested list.
	Indices     []int
	Coordinates []normalize.Point
	Records     map[nodes.NodeIdentity]*neurondb.NeuronRecord
	Excluded    []Exclusion
	// Failed counts nodes whose fetch failed, was not found or had no usable embedding.
	Failed int
	// Mismatched counts nodes whose embedding dimension disagreed with the majority.
	Mismatched int
	Dimension  int
}

type fetched struct {
	rec    *neurondb.NeuronRecord
	reason string
}

// Project fetches every node's metadata concurrently, drops failures and
// dimension outliers, and reduces the remaining embeddings to normalized 2D
// coordinates. Fetch failures never surface as errors; fewer than two
// survivors yields an *InputTooSmallError.
func (p *Projector) Project(ctx context.Context, ids []nodes.NodeIdentity) (*Result, error) {
	log := logger.Log.With("projection")
	results := p.fetchAll(ctx, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Records: make(map[nodes.NodeIdentity]*neurondb.NeuronRecord)}
	exclude := func(id nodes.NodeIdentity, reason string) {
		res.Excluded = append(res.Excluded, Exclusion{Identity: id, Reason: reason})
		metrics.ProjectionExcluded.WithLabelValues(reason).Inc()
		if reason == metrics.ReasonDimensionMismatch {
			res.Mismatched++
		} else {
			res.Failed++
		}
	}

	dims := make([]int, 0, len(results))
	for i, f := range results {
		if f.reason != "" {
			exclude(ids[i], f.reason)
			continue
		}
		dims = append(dims, len(f.rec.Embedding))
	}
	res.Dimension = majorityDimension(dims)

	var survivors []int
	for i, f := range results {
		if f.reason != "" {
			continue
		}
		if len(f.rec.Embedding) != res.Dimension {
			exclude(ids[i], metrics.ReasonDimensionMismatch)
			continue
		}
		survivors = append(survivors, i)
	}

	if res.Failed+res.Mismatched > 0 {
		log.Warn("excluded nodes from projection",
			"failed", res.Failed, "mismatched", res.Mismatched, "requested", len(ids))
	}
	if len(survivors) < MinSurvivors {
		return nil, &InputTooSmallError{Survivors: len(survivors), Requested: len(ids)}
	}

	data := mat.NewDense(len(survivors), res.Dimension, nil)
	for row, i := range survivors {
		for col, v := range results[i].rec.Embedding {
			data.Set(row, col, float64(v))
		}
		res.Identities = append(res.Identities, ids[i])
		res.Indices = append(res.Indices, i)
		res.Records[ids[i]] = results[i].rec
	}

	start := time.Now()
	raw, err := p.reducer.Reduce(data)
	metrics.ProjectionDuration.WithLabelValues(p.reducer.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	res.Coordinates = normalize.NormalizeCoordinates(raw)

	log.Debug("projected nodes", "count", len(survivors), "dimension", res.Dimension,
		"reducer", p.reducer.Name(), "elapsed", time.Since(start).String())
	return res, nil
}

// fetchAll looks up every identity with at most p.concurrency requests in
// flight. Results are indexed by input position.
func (p *Projector) fetchAll(ctx context.Context, ids []nodes.NodeIdentity) []fetched {
	results := make([]fetched, len(ids))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		if !id.Type.Valid() || !id.Type.SupportsEmbeddingLookup() {
			results[i] = fetched{reason: metrics.ReasonUnsupportedType}
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = fetched{reason: metrics.ReasonFetchFailed}
			continue
		}

		wg.Add(1)
		go func(i int, id nodes.NodeIdentity) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.fetchOne(ctx, id)
		}(i, id)
	}

	wg.Wait()
	return results
}

func (p *Projector) fetchOne(ctx context.Context, id nodes.NodeIdentity) fetched {
	rec, err := p.source.GetNeuron(ctx, id.Layer, id.Index)
	switch {
	case errors.Is(err, neurondb.ErrNotFound):
		return fetched{reason: metrics.ReasonNotFound}
	case err != nil:
		logger.Log.With("projection").Debug("metadata fetch failed", "node", id.String(), "error", err)
		return fetched{reason: metrics.ReasonFetchFailed}
	case rec == nil:
		return fetched{reason: metrics.ReasonNotFound}
	case len(rec.Embedding) == 0:
		return fetched{reason: metrics.ReasonEmptyEmbedding}
	}
	return fetched{rec: rec}
}

// majorityDimension returns the most common value in dims. Ties go to the
// larger dimension. It returns 0 for no input.
func majorityDimension(dims []int) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, d := range dims {
		counts[d]++
	}
	for d, c := range counts {
		if c > bestCount || (c == bestCount && d > best) {
			best, bestCount = d, c
		}
	}
	return best
}
