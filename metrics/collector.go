package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polylake/goldsky-mirror/logging"
)

// Collector manages all metrics for the mirror service
type Collector struct {
	logger *logging.ComponentLogger

	// Counters
	pagesFetched    prometheus.Counter
	rowsFetched     prometheus.Counter
	rowsDeduped     prometheus.Counter
	fetchRetries    prometheus.Counter
	flushesTotal    prometheus.Counter
	cursorSaves     prometheus.Counter
	catalogLookups  prometheus.Counter
	catalogErrors   prometheus.Counter
	catalogSkipped  prometheus.Counter
	rateLimitHits   prometheus.Counter

	// Gauges
	datasetRows     prometheus.Gauge
	bufferedPages   prometheus.Gauge
	cursorTimestamp prometheus.Gauge

	// Histograms
	fetchDuration  prometheus.Histogram
	flushDuration  prometheus.Histogram
	lookupDuration prometheus.Histogram

	// Custom registerer
	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector
func NewCollector(logger *logging.ComponentLogger) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		logger:   logger,
		registry: registry,

		// Initialize counters
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_pages_fetched_total",
			Help: "Total number of subgraph pages fetched",
		}),

		rowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_rows_fetched_total",
			Help: "Total number of fill rows returned by the subgraph",
		}),

		rowsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_rows_deduped_total",
			Help: "Total number of fill rows dropped as duplicates",
		}),

		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_fetch_retries_total",
			Help: "Total number of transient fetch failures retried",
		}),

		flushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_flushes_total",
			Help: "Total number of dataset flushes",
		}),

		cursorSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_cursor_saves_total",
			Help: "Total number of cursor checkpoint saves",
		}),

		catalogLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_catalog_lookups_total",
			Help: "Total number of market catalog lookups",
		}),

		catalogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_catalog_errors_total",
			Help: "Total number of market lookups that gave up after retries",
		}),

		catalogSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_catalog_skipped_total",
			Help: "Total number of catalog records skipped as missing or malformed",
		}),

		rateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsky_mirror_catalog_rate_limits_total",
			Help: "Total number of HTTP 429 responses from the catalog",
		}),

		// Initialize gauges
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldsky_mirror_dataset_rows",
			Help: "Rows in the persisted fill dataset after the last flush",
		}),

		bufferedPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldsky_mirror_buffered_pages",
			Help: "Pages buffered in memory awaiting flush",
		}),

		cursorTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldsky_mirror_cursor_timestamp",
			Help: "Last fully consumed feed timestamp in the cursor",
		}),

		// Initialize histograms
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goldsky_mirror_fetch_duration_seconds",
			Help:    "Time spent fetching one subgraph page",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),

		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goldsky_mirror_flush_duration_seconds",
			Help:    "Time spent merging and writing the dataset",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),

		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goldsky_mirror_catalog_lookup_duration_seconds",
			Help:    "Time spent on one market catalog lookup including retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	// Register all metrics
	registry.MustRegister(
		c.pagesFetched,
		c.rowsFetched,
		c.rowsDeduped,
		c.fetchRetries,
		c.flushesTotal,
		c.cursorSaves,
		c.catalogLookups,
		c.catalogErrors,
		c.catalogSkipped,
		c.rateLimitHits,
		c.datasetRows,
		c.bufferedPages,
		c.cursorTimestamp,
		c.fetchDuration,
		c.flushDuration,
		c.lookupDuration,
	)

	// Register Go runtime metrics
	registry.MustRegister(prometheus.NewGoCollector())

	logger.Info().
		Msg("Metrics collector initialized")

	return c
}

// StartMetricsServer starts the Prometheus metrics HTTP server
func (c *Collector) StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	c.logger.Info().
		Int("port", port).
		Msg("Starting Prometheus metrics server")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error().
				Err(err).
				Msg("Metrics server failed")
		}
	}()

	return nil
}

// RecordPage records one fetched page and its row count
func (c *Collector) RecordPage(rows int, duration time.Duration) {
	c.pagesFetched.Inc()
	c.rowsFetched.Add(float64(rows))
	c.fetchDuration.Observe(duration.Seconds())
}

// RecordDuplicates records rows dropped by deduplication
func (c *Collector) RecordDuplicates(count int) {
	c.rowsDeduped.Add(float64(count))
}

// RecordFetchRetry increments the transient-failure retry counter
func (c *Collector) RecordFetchRetry() {
	c.fetchRetries.Inc()
}

// RecordFlush records a dataset flush and the resulting dataset size
func (c *Collector) RecordFlush(totalRows int, duration time.Duration) {
	c.flushesTotal.Inc()
	c.flushDuration.Observe(duration.Seconds())
	c.datasetRows.Set(float64(totalRows))
}

// RecordCursorSave records a checkpoint save and the cursor position
func (c *Collector) RecordCursorSave(lastTimestamp int64) {
	c.cursorSaves.Inc()
	c.cursorTimestamp.Set(float64(lastTimestamp))
}

// UpdateBufferedPages updates the buffered pages gauge
func (c *Collector) UpdateBufferedPages(pages int) {
	c.bufferedPages.Set(float64(pages))
}

// RecordCatalogLookup records one catalog lookup attempt chain
func (c *Collector) RecordCatalogLookup(duration time.Duration) {
	c.catalogLookups.Inc()
	c.lookupDuration.Observe(duration.Seconds())
}

// RecordCatalogError records a lookup that gave up after retries
func (c *Collector) RecordCatalogError() {
	c.catalogErrors.Inc()
}

// RecordCatalogSkip records a missing or malformed catalog record
func (c *Collector) RecordCatalogSkip() {
	c.catalogSkipped.Inc()
}

// RecordRateLimit records an HTTP 429 from the catalog
func (c *Collector) RecordRateLimit() {
	c.rateLimitHits.Inc()
}
