package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polylake/goldsky-mirror/cursor"
	"github.com/polylake/goldsky-mirror/dataset"
	"github.com/polylake/goldsky-mirror/gamma"
	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/markets"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/scraper"
	"github.com/polylake/goldsky-mirror/storage"
	"github.com/polylake/goldsky-mirror/subgraph"
)

const version = "v1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	pageSize := flag.Int("page-size", 0, "Rows per subgraph page (overrides config)")
	datasetPath := flag.String("dataset", "", "Fill dataset path (overrides config)")
	flag.Parse()

	// Initialize component logger
	logger := logging.NewComponentLogger("goldsky-mirror", version)

	config, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
		os.Exit(1)
	}
	if *pageSize > 0 {
		config.PageSize = *pageSize
	}
	if *datasetPath != "" {
		config.FillsPath = *datasetPath
	}
	logging.SetGlobalLevel(config.Logging.Level)

	logger.LogStartup(logging.StartupConfig{
		SubgraphURL:      config.SubgraphURL,
		DatasetPath:      config.FillsPath,
		CursorPath:       config.CursorPath,
		PageSize:         config.PageSize,
		FlushEveryPages:  config.FlushEveryPages,
		ReconcileMarkets: config.ReconcileMarkets,
	})

	// The process start time identifies this run; it is passed down
	// explicitly instead of being read from ambient state.
	startedAt := time.Now()

	collector := metrics.NewCollector(logger)
	if err := collector.StartMetricsServer(config.MetricsPort); err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to start metrics server")
		os.Exit(1)
	}

	cursorStore, err := cursor.NewStore(logger, config.CursorPath)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("Failed to create cursor store")
		os.Exit(1)
	}

	fillStore := storage.NewParquetFillStore(logger, config.FillsPath)
	acc := dataset.NewAccumulator(logger, collector, fillStore, config.FlushEveryPages)
	fetcher := subgraph.NewClient(logger, collector, config.SubgraphURL)
	scr := scraper.New(logger, collector, fetcher, cursorStore, acc, config.PageSize, startedAt)

	go startHealthServer(config.HealthPort, scr, config, logger)

	// Cancel the run on SIGINT/SIGTERM; the loop resumes from the persisted
	// cursor on the next start.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scr.Run(ctx); err != nil {
		logger.Error().
			Err(err).
			Msg("Scrape failed")
		os.Exit(1)
	}

	if config.ReconcileMarkets {
		if err := reconcileMarkets(ctx, config, logger, collector, fillStore); err != nil {
			logger.Error().
				Err(err).
				Msg("Market reconciliation failed")
			os.Exit(1)
		}
	}

	logger.Info().
		Dur("run_time", time.Since(startedAt)).
		Msg("Mirror run complete")
}

// reconcileMarkets runs the catalog reconciliation pass: derive the token
// coverage gap from the freshly mirrored fills and fetch the missing
// markets.
func reconcileMarkets(ctx context.Context, config Config, logger *logging.ComponentLogger, collector *metrics.Collector, fillStore *storage.ParquetFillStore) error {
	fills, err := fillStore.Load(ctx)
	if err != nil {
		return err
	}

	mainStore := storage.NewParquetMarketStore(logger, config.MarketsPath)
	missingStore := storage.NewParquetMarketStore(logger, config.MissingMarketsPath)
	lookup := gamma.NewClient(logger, collector, config.GammaURL)
	reconciler := markets.NewReconciler(logger, collector, mainStore, missingStore, lookup)

	tokens, err := reconciler.MissingTokens(ctx, fills)
	if err != nil {
		return err
	}
	return reconciler.FetchMissing(ctx, tokens)
}

// startHealthServer starts the HTTP health check endpoint
func startHealthServer(port int, scr *scraper.Scraper, config Config, logger *logging.ComponentLogger) {
	mux := http.NewServeMux()

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := scr.GetStats()

		health := map[string]interface{}{
			"status":    "healthy",
			"service":   "goldsky-mirror",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"stats": map[string]interface{}{
				"pages_processed":  stats.PagesProcessed,
				"rows_fetched":     stats.RowsFetched,
				"dataset_rows":     stats.TotalRows,
				"cursor_timestamp": stats.CursorTimestamp,
				"cursor_pinned":    stats.Pinned,
			},
			"config": map[string]interface{}{
				"subgraph_url":      config.SubgraphURL,
				"fills_path":        config.FillsPath,
				"page_size":         config.PageSize,
				"flush_every_pages": config.FlushEveryPages,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	// Ready endpoint (for k8s readiness probes)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ready")
	})

	// Live endpoint (for k8s liveness probes)
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "live")
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info().
		Int("port", port).
		Msg("Health server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().
			Err(err).
			Msg("Health server error")
	}
}
