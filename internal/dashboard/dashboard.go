package dashboard

import (
	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodeview"
	"github.com/ziadkadry99/neuronview/internal/vectordb"
)

// Dashboard serves the node view page, its JSON API and the live view stream.
type Dashboard struct {
	service         *nodeview.Service
	store           *neurondb.Store
	index           vectordb.NeighbourIndex
	activationLimit int
}

// New creates a Dashboard. index may be nil, which disables neighbour and
// search routes.
func New(service *nodeview.Service, store *neurondb.Store, index vectordb.NeighbourIndex, activationLimit int) *Dashboard {
	if activationLimit <= 0 {
		activationLimit = neurondb.DefaultActivationLimit
	}
	return &Dashboard{
		service:         service,
		store:           store,
		index:           index,
		activationLimit: activationLimit,
	}
}

// RegisterRoutes mounts all dashboard routes onto the given router.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Get("/", d.ServeIndex)
	r.Post("/api/view/run", d.handleRun)
	r.Get("/api/view", d.handleView)
	r.Get("/api/view/nodes/{type}/{layer}/{neuron}", d.handleNode)
	r.Get("/api/view/nodes/{type}/{layer}/{neuron}/similar", d.handleSimilar)
	r.Get("/api/search", d.handleSearch)
	r.Get("/ws/view", d.handleWebSocket)
}
