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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/routeloom/routeloom/internal/api"
	"github.com/routeloom/routeloom/internal/cache"
	"github.com/routeloom/routeloom/internal/config"
	"github.com/routeloom/routeloom/internal/embedder"
	"github.com/routeloom/routeloom/internal/enrich"
	"github.com/routeloom/routeloom/internal/ingest"
	"github.com/routeloom/routeloom/internal/recommend"
	"github.com/routeloom/routeloom/internal/route"
	"github.com/routeloom/routeloom/internal/searcher"
	"github.com/routeloom/routeloom/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		seedPath    = flag.String("ingest", "", "ingest the given seed file and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("routeloom %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	log.Info().
		Str("version", version).
		Str("build_mode", storage.BuildMode).
		Str("sqlite_driver", storage.DriverName).
		Msg("routeloom starting")

	if err := run(cfg, *seedPath, log); err != nil {
		log.Fatal().Err(err).Msg("routeloom exited with error")
	}
}

func run(cfg *config.Config, seedPath string, log zerolog.Logger) error {
	store, err := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer store.Close()

	emb, err := embedder.New(embedder.Config{
		Provider: cfg.Embedder.Provider,
		APIKey:   cfg.Embedder.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer emb.Close()

	if seedPath != "" {
		return runIngest(cfg, seedPath, store, emb, log)
	}

	index := searcher.New(store, emb, searcher.Config{
		TextWeight:   cfg.Search.TextWeight,
		VectorWeight: cfg.Search.VectorWeight,
		QueryTimeout: cfg.Search.QueryTimeout,
	})

	var durable cache.DurableStore
	if cfg.Cache.DurableDir != "" {
		badgerStore, err := cache.OpenBadger(cfg.Cache.DurableDir, cfg.Cache.DurableTTL)
		if err != nil {
			// Degraded but serviceable: the memory tier still works.
			log.Warn().Err(err).Str("dir", cfg.Cache.DurableDir).Msg("durable cache unavailable, running memory-only")
		} else {
			durable = badgerStore
		}
	}
	results := cache.NewLayer(cache.Config{
		MemorySize:     cfg.Cache.MemorySize,
		MemoryTTL:      cfg.Cache.MemoryTTL,
		DurableTimeout: cfg.Cache.DurableTimeout,
		ComputeTimeout: cfg.Cache.ComputeTimeout,
	}, durable, log)
	defer results.Close()

	builder := route.NewBuilder(route.Config{
		Steps:           cfg.Route.Steps,
		MinStepDistance: cfg.Route.MinStepDistance,
		MaxStepDistance: cfg.Route.MaxStepDistance,
		MinRelevance:    cfg.Route.MinRelevance,
		MatchWeight:     cfg.Route.MatchWeight,
		GeoWeight:       cfg.Route.GeoWeight,
		RatingWeight:    cfg.Route.RatingWeight,
		DiversityWeight: cfg.Route.DiversityWeight,
	})

	coordinator := recommend.NewCoordinator(index, builder, results,
		recommend.Config{MaxResults: cfg.Search.MaxResults}, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := api.NewServer(coordinator, store, registry, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		errChan <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}

	log.Info().Msg("routeloom stopped")
	return nil
}

func runIngest(cfg *config.Config, seedPath string, store storage.Storage, emb embedder.Embedder, log zerolog.Logger) error {
	enricher, err := enrich.New(enrich.Config{Provider: cfg.Ingest.Enricher})
	if err != nil {
		return fmt.Errorf("failed to create enricher: %w", err)
	}

	pipeline := ingest.New(store, emb, enricher, ingest.Config{
		Workers: cfg.Ingest.Workers,
		City:    cfg.Ingest.City,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stats, err := pipeline.LoadFile(ctx, seedPath)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	log.Info().
		Int("loaded", stats.Loaded).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("seed file ingested")
	return nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
