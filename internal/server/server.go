package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ziadkadry99/neuronview/internal/db"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/metrics"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server hosts the metadata API, metrics and the routes feature packages
// register on Router.
type Server struct {
	cfg        Config
	db         *db.DB
	store      *neurondb.Store
	router     chi.Router
	httpServer *http.Server
}

// New creates a server over an open database.
func New(cfg Config, database *db.DB, store *neurondb.Store) *Server {
	s := &Server{
		cfg:   cfg,
		db:    database,
		store: store,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Store lookups are short; long-running view and websocket routes are
	// registered by the dashboard without a timeout.
	if s.store != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			neurondb.RegisterRoutes(r, s.store)
		})
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if err := s.db.PingContext(r.Context()); err != nil {
		body["status"] = "unavailable"
		body["error"] = err.Error()
		status = http.StatusServiceUnavailable
	} else if s.store != nil {
		if n, err := s.store.CountNeurons(r.Context()); err == nil {
			body["neurons"] = n
		}
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// Store returns the metadata store.
func (s *Server) Store() *neurondb.Store { return s.store }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Log.With("server").Info("neuronview server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
