package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/neuronview/internal/audit"
	"github.com/ziadkadry99/neuronview/internal/dashboard"
	"github.com/ziadkadry99/neuronview/internal/inference"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/nodeview"
	"github.com/ziadkadry99/neuronview/internal/projection"
	"github.com/ziadkadry99/neuronview/internal/server"
)

var (
	serverPort   int
	rebuildIndex bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the dashboard server",
	Long:  `Starts the neuronview dashboard with its REST API, live view WebSocket and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}
		log := logger.Log.With("server")

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err := loadIndex(ctx, cfg, store, embedder, rebuildIndex)
		if err != nil {
			return err
		}

		backend := inference.NewHTTPClient(cfg.InferenceURL, cfg.InferenceTimeout())
		infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if info, err := backend.ModelInfo(infoCtx); err != nil {
			log.Warn("inference backend unreachable; runs will fail until it is up", "url", cfg.InferenceURL, "error", err)
		} else {
			log.Info("inference backend ready", "url", cfg.InferenceURL, "model", info.ModelName, "layers", info.NLayers)
		}
		cancel()

		reducer, err := cfg.Projection.Reducer()
		if err != nil {
			return err
		}
		nodeType, err := nodes.ParseNodeType(cfg.NodeType)
		if err != nil {
			return err
		}
		auditStore := audit.NewStore(database)
		if cfg.AuditRetentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -cfg.AuditRetentionDays)
			if n, err := auditStore.DeleteBefore(ctx, cutoff); err != nil {
				log.Warn("pruning run history failed", "error", err)
			} else if n > 0 {
				log.Info("pruned run history", "deleted", n, "before", cutoff.Format(time.DateOnly))
			}
		}

		projector := projection.NewProjector(store, reducer, cfg.FetchConcurrency)
		service := nodeview.NewService(nodeview.NewView(), backend, projector, store, nodeview.Options{
			NodeType:      nodeType,
			TopAndBottomK: cfg.TopAndBottomK,
			SizeRange:     cfg.SizeRange,
			Recorder:      auditStore,
		})

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: true,
		}, database, store)

		r := srv.Router()
		audit.RegisterRoutes(r, auditStore)
		dash := dashboard.New(service, store, index, cfg.ActivationLimit)
		dash.RegisterRoutes(r)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		neurons, _ := store.CountNeurons(ctx)
		fmt.Fprintf(os.Stderr, "neuronview server %s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s (%d neurons)\n", cfg.DatabasePath, neurons)
		fmt.Fprintf(os.Stderr, "  Inference: %s\n", cfg.InferenceURL)
		fmt.Fprintf(os.Stderr, "  Neighbour index: %d neurons\n", index.Count())

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides the config file)")
	serverCmd.Flags().BoolVar(&rebuildIndex, "rebuild-index", false, "Rebuild the neighbour index even if a saved one exists")
	rootCmd.AddCommand(serverCmd)
}
