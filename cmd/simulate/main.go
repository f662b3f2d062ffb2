// Command simulate throws air showers from a precomputed ground-particle
// dataset onto a detector cluster and stores the station responses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/RaoOfPhysics/sapphire/cluster"
	"github.com/RaoOfPhysics/sapphire/corsika"
	"github.com/RaoOfPhysics/sapphire/internal/config"
	"github.com/RaoOfPhysics/sapphire/internal/logging"
	"github.com/RaoOfPhysics/sapphire/internal/observability"
	"github.com/RaoOfPhysics/sapphire/internal/queue"
	"github.com/RaoOfPhysics/sapphire/internal/storage"
	"github.com/RaoOfPhysics/sapphire/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dataset := flag.String("dataset", "", "ground-particle dataset file (required)")
	clusterPath := flag.String("cluster", "", "cluster definition JSON (overrides -layout)")
	layout := flag.String("layout", "station", "builtin layout: station or simple")
	layoutSize := flag.Float64("size", 10, "builtin layout size in meters")
	showers := flag.Int("n", cfg.Simulation.Showers, "number of showers to simulate")
	maxCoreDistance := flag.Float64("max-core-distance", cfg.Simulation.MaxCoreDistance,
		"maximum core distance from the cluster center (m)")
	model := flag.String("model", cfg.Simulation.DetectionModel,
		"detection model: square, polygon, or momentum")
	seed := flag.Int64("seed", cfg.Simulation.Seed, "random seed, 0 seeds from the wall clock")
	metricsAddr := flag.String("metrics-addr", cfg.Metrics.Addr, "prometheus listen address, empty disables")
	flag.Parse()

	if *dataset == "" {
		return errors.New("-dataset is required")
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	metrics, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if *metricsAddr != "" {
		go serveMetrics(ctx, log, *metricsAddr, metrics)
	}

	clu, err := buildCluster(*clusterPath, *layout, *layoutSize)
	if err != nil {
		return err
	}

	src, err := corsika.OpenDataset(*dataset)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	var sink sim.ResultSink = storage.NewSink(store)
	if cfg.Queue.Enabled {
		pub := queue.NewPublisher(cfg.Queue.Brokers, cfg.Queue.Topic)
		defer pub.Close()
		sink = queue.FanOut{sink, queue.NewSink(pub)}
	}

	bar := progressbar.NewOptions(*showers,
		progressbar.OptionSetDescription("simulating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
	)

	simulation, err := sim.New(clu, src, sink, sim.Options{
		Showers:         *showers,
		MaxCoreDistance: *maxCoreDistance,
		Model:           *model,
		Seed:            *seed,
		Progress:        func(done, total int) { _ = bar.Set(done) },
		Logger:          log,
		Metrics:         metrics,
	})
	if err != nil {
		return err
	}

	if err := simulation.Run(ctx); err != nil {
		return err
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	fmt.Printf("run %s: %d showers stored\n", simulation.RunID(), *showers)
	return nil
}

// buildCluster resolves the cluster geometry from a definition file or a
// builtin layout.
func buildCluster(path, layout string, size float64) (*cluster.Cluster, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open cluster definition: %w", err)
		}
		defer f.Close()
		return cluster.LoadClusterDefinition(f)
	}

	switch layout {
	case "station":
		return cluster.NewSingleStation(size)
	case "simple":
		return cluster.NewSimpleCluster(size)
	default:
		return nil, fmt.Errorf("unknown layout %q, want station or simple", layout)
	}
}

func serveMetrics(ctx context.Context, log logging.Logger, addr string, metrics *observability.SimCollector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "metrics listening", logging.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "metrics server failed", logging.String("error", err.Error()))
	}
}
