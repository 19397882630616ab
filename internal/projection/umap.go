package projection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ziadkadry99/neuronview/internal/normalize"
)

// UMAP reduces embeddings to two dimensions with Uniform Manifold
// Approximation and Projection (McInnes, Healy & Melville, 2018): a fuzzy
// k-nearest-neighbour graph is built in the input space and a 2D layout with
// similar fuzzy structure is found by stochastic gradient descent.
type UMAP struct {
	NNeighbors         int
	MinDist            float64
	Spread             float64
	NEpochs            int
	LearningRate       float64
	NegativeSampleRate float64
	Seed               int64
}

// DefaultUMAP returns the layout parameters used by the dashboard.
func DefaultUMAP() UMAP {
	return UMAP{
		NNeighbors:         15,
		MinDist:            0.1,
		Spread:             1.0,
		NEpochs:            200,
		LearningRate:       1.0,
		NegativeSampleRate: 5,
		Seed:               42,
	}
}

// Name returns "umap".
func (u UMAP) Name() string { return MethodUMAP }

// spectralMinPoints is the batch size from which the layout is seeded with the
// graph Laplacian's eigenvectors instead of random positions.
const spectralMinPoints = 50

// Reduce lays out the rows of data in 2D. Duplicate rows are allowed and may
// land on the same point.
func (u UMAP) Reduce(data *mat.Dense) ([]normalize.Point, error) {
	n, _ := data.Dims()
	if n < 2 {
		return nil, fmt.Errorf("umap needs at least 2 rows, got %d", n)
	}
	if u.Spread <= 0 || u.MinDist < 0 || u.MinDist > u.Spread {
		return nil, fmt.Errorf("umap: min_dist must lie in [0, spread] and spread must be positive")
	}

	// Small batches shrink the neighbourhood rather than fail.
	k := u.NNeighbors
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}
	epochs := u.NEpochs
	if epochs <= 0 {
		epochs = 200
	}

	knn := nearestNeighbours(data, k)
	sigmas, rhos := smoothKNNDist(knn.dists, float64(k))
	graph := fuzzyUnion(membershipStrengths(knn, sigmas, rhos))
	a, b := fitAB(u.Spread, u.MinDist)

	rng := rand.New(rand.NewSource(u.Seed))
	layout := initialLayout(graph, n, rng)
	optimizeLayout(layout, graph, a, b, epochs, u.LearningRate, u.NegativeSampleRate, rng)

	out := make([]normalize.Point, n)
	for i, p := range layout {
		out[i] = normalize.Point{X: p[0], Y: p[1]}
	}
	return out, nil
}

type knnGraph struct {
	indices [][]int
	dists   [][]float64
}

// nearestNeighbours is an exact O(n²) search; batches are bounded by one
// inference response so an approximate index is not worth it here.
func nearestNeighbours(data *mat.Dense, k int) knnGraph {
	n, _ := data.Dims()
	g := knnGraph{indices: make([][]int, n), dists: make([][]float64, n)}

	type cand struct {
		dist float64
		idx  int
	}
	for i := 0; i < n; i++ {
		row := data.RawRowView(i)
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, cand{floats.Distance(row, data.RawRowView(j), 2), j})
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })

		g.indices[i] = make([]int, k)
		g.dists[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			g.indices[i][j] = cands[j].idx
			g.dists[i][j] = cands[j].dist
		}
	}
	return g
}

// smoothKNNDist finds, per point, rho (distance to the nearest non-identical
// neighbour) and sigma such that the memberships sum to log2(k).
func smoothKNNDist(distances [][]float64, k float64) (sigmas, rhos []float64) {
	const (
		nIter     = 64
		tolerance = 1e-5
		minScale  = 1e-3
	)
	n := len(distances)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(k)

	var meanAll float64
	var count int
	for _, ds := range distances {
		for _, d := range ds {
			meanAll += d
			count++
		}
	}
	if count > 0 {
		meanAll /= float64(count)
	}

	for i, dists := range distances {
		for _, d := range dists {
			if d > 0 {
				rhos[i] = d
				break
			}
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < nIter; iter++ {
			psum := 0.0
			for _, d := range dists {
				if r := d - rhos[i]; r > 0 {
					psum += math.Exp(-r / mid)
				} else {
					psum++
				}
			}
			if math.Abs(psum-target) < tolerance {
				break
			}
			if psum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}
		sigmas[i] = mid

		floor := minScale * meanAll
		if rhos[i] > 0 {
			floor = minScale * mean(dists)
		}
		if sigmas[i] < floor {
			sigmas[i] = floor
		}
	}
	return sigmas, rhos
}

type edge struct{ from, to int }

type weightedGraph struct {
	edges   []edge
	weights []float64
}

func membershipStrengths(knn knnGraph, sigmas, rhos []float64) map[edge]float64 {
	m := make(map[edge]float64)
	for i, nbrs := range knn.indices {
		for j, nb := range nbrs {
			d := knn.dists[i][j]
			w := 1.0
			if d-rhos[i] > 0 && sigmas[i] > 0 {
				w = math.Exp(-(d - rhos[i]) / sigmas[i])
			}
			m[edge{i, nb}] = w
		}
	}
	return m
}

// fuzzyUnion symmetrises the directed membership graph with the probabilistic
// t-conorm w + wᵀ - w·wᵀ. Edges come out sorted so layouts are reproducible.
func fuzzyUnion(directed map[edge]float64) weightedGraph {
	union := make(map[edge]float64, 2*len(directed))
	for e, w := range directed {
		wt := directed[edge{e.to, e.from}]
		v := w + wt - w*wt
		union[e] = v
		union[edge{e.to, e.from}] = v
	}

	g := weightedGraph{edges: make([]edge, 0, len(union))}
	for e, w := range union {
		if w > 0 {
			g.edges = append(g.edges, e)
		}
	}
	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].from != g.edges[j].from {
			return g.edges[i].from < g.edges[j].from
		}
		return g.edges[i].to < g.edges[j].to
	})
	g.weights = make([]float64, len(g.edges))
	for i, e := range g.edges {
		g.weights[i] = union[e]
	}
	return g
}

// fitAB fits 1/(1+a·x^(2b)) to the target low-dimensional membership curve
// by least squares.
func fitAB(spread, minDist float64) (a, b float64) {
	const nPoints = 300
	xs := make([]float64, nPoints)
	ys := make([]float64, nPoints)
	for i := range xs {
		xs[i] = float64(i+1) / nPoints * spread * 3
		if xs[i] < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(xs[i] - minDist) / spread)
		}
	}

	loss := func(p []float64) float64 {
		if p[0] <= 0 || p[1] <= 0 {
			return math.Inf(1)
		}
		var sum float64
		for i, x := range xs {
			d := 1/(1+p[0]*math.Pow(x, 2*p[1])) - ys[i]
			sum += d * d
		}
		return sum
	}

	res, err := optimize.Minimize(optimize.Problem{Func: loss}, []float64{1, 1}, nil, &optimize.NelderMead{})
	if err != nil || res == nil || math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		// Parameters for the default spread 1, min_dist 0.1.
		return 1.577, 0.895
	}
	return res.X[0], res.X[1]
}

func initialLayout(g weightedGraph, n int, rng *rand.Rand) [][]float64 {
	if n >= spectralMinPoints {
		if layout := spectralLayout(g, n); layout != nil {
			for _, p := range layout {
				p[0] += rng.NormFloat64() * 1e-4
				p[1] += rng.NormFloat64() * 1e-4
			}
			return layout
		}
	}
	layout := make([][]float64, n)
	for i := range layout {
		layout[i] = []float64{rng.Float64()*20 - 10, rng.Float64()*20 - 10}
	}
	return layout
}

// spectralLayout uses the eigenvectors of the two smallest non-trivial
// eigenvalues of the normalized graph Laplacian, scaled to [0,10].
func spectralLayout(g weightedGraph, n int) [][]float64 {
	degrees := make([]float64, n)
	for i, e := range g.edges {
		degrees[e.from] += g.weights[i]
	}

	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		lap.SetSym(i, i, 1)
	}
	for i, e := range g.edges {
		if e.from >= e.to || degrees[e.from] == 0 || degrees[e.to] == 0 {
			continue
		}
		lap.SetSym(e.from, e.to, -g.weights[i]/math.Sqrt(degrees[e.from]*degrees[e.to]))
	}

	var eig mat.EigenSym
	if !eig.Factorize(lap, true) {
		return nil
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back ascending; column 0 is the trivial one.
	layout := make([][]float64, n)
	for i := range layout {
		layout[i] = []float64{vecs.At(i, 1), vecs.At(i, 2)}
	}
	for d := 0; d < 2; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range layout {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		if hi-lo == 0 {
			return nil
		}
		for _, p := range layout {
			p[d] = (p[d] - lo) / (hi - lo) * 10
		}
	}
	return layout
}

// optimizeLayout runs the SGD phase in place. Each edge is sampled in
// proportion to its weight; every positive sample is followed by a number of
// random negative samples that push unrelated points apart.
func optimizeLayout(layout [][]float64, g weightedGraph, a, b float64, epochs int, alpha0, negRate float64, rng *rand.Rand) {
	n := len(layout)
	if len(g.edges) == 0 || n < 2 {
		return
	}

	maxW := floats.Max(g.weights)
	epochsPerSample := make([]float64, len(g.weights))
	next := make([]float64, len(g.weights))
	for i, w := range g.weights {
		epochsPerSample[i] = maxW / w
		next[i] = epochsPerSample[i]
	}
	if alpha0 <= 0 {
		alpha0 = 1
	}
	negPerPos := int(math.Max(1, negRate))

	for epoch := 1; epoch <= epochs; epoch++ {
		alpha := alpha0 * (1 - float64(epoch-1)/float64(epochs))
		for i, e := range g.edges {
			if next[i] > float64(epoch) {
				continue
			}
			cur, other := layout[e.from], layout[e.to]

			if d2 := sqDist(cur, other); d2 > 0 {
				coeff := -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
				for d := range cur {
					grad := clip(coeff * (cur[d] - other[d]))
					cur[d] += grad * alpha
					other[d] -= grad * alpha
				}
			}

			for s := 0; s < negPerPos; s++ {
				k := rng.Intn(n)
				if k == e.from {
					continue
				}
				neg := layout[k]
				d2 := sqDist(cur, neg)
				if d2 <= 0 {
					continue
				}
				coeff := 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				for d := range cur {
					cur[d] += clip(coeff*(cur[d]-neg[d])) * alpha
				}
			}
			next[i] += epochsPerSample[i]
		}
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clip(v float64) float64 {
	return math.Max(-4, math.Min(4, v))
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return floats.Sum(vals) / float64(len(vals))
}
