package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger provides structured logging for the mirror services
type ComponentLogger struct {
	logger zerolog.Logger
}

// NewComponentLogger creates a component-specific logger with consistent context
func NewComponentLogger(componentName, version string) *ComponentLogger {
	// Configure zerolog globally
	zerolog.TimeFieldFormat = time.RFC3339

	// Set log level from environment
	SetGlobalLevel(os.Getenv("LOG_LEVEL"))

	// Console output for development
	if os.Getenv("ENVIRONMENT") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		})
	}

	// Create component-specific logger
	logger := log.With().
		Str("component", componentName).
		Str("version", version).
		Logger()

	return &ComponentLogger{
		logger: logger,
	}
}

// SetGlobalLevel applies a named log level globally, defaulting to info.
func SetGlobalLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (cl *ComponentLogger) Info() *zerolog.Event {
	return cl.logger.Info()
}

func (cl *ComponentLogger) Error() *zerolog.Event {
	return cl.logger.Error()
}

func (cl *ComponentLogger) Warn() *zerolog.Event {
	return cl.logger.Warn()
}

func (cl *ComponentLogger) Debug() *zerolog.Event {
	return cl.logger.Debug()
}

// LogStartup logs service startup with structured fields
func (cl *ComponentLogger) LogStartup(config StartupConfig) {
	cl.Info().
		Str("subgraph_url", config.SubgraphURL).
		Str("dataset", config.DatasetPath).
		Str("cursor_file", config.CursorPath).
		Int("page_size", config.PageSize).
		Int("flush_every_pages", config.FlushEveryPages).
		Bool("reconcile_markets", config.ReconcileMarkets).
		Msg("Starting goldsky mirror")
}

// LogPage logs one processed page of the fill stream
func (cl *ComponentLogger) LogPage(batch int, rows int, firstTS, lastTS int64, pinned bool) {
	evt := cl.Info().
		Int("batch", batch).
		Int("records", rows).
		Int64("first_timestamp", firstTS).
		Int64("last_timestamp", lastTS).
		Str("last_time_utc", time.Unix(lastTS, 0).UTC().Format("2006-01-02 15:04:05 MST"))
	if pinned {
		evt = evt.Str("mode", "sticky")
	}
	evt.Msg("Page processed")
}

// LogFlush logs a dataset flush with structured fields
func (cl *ComponentLogger) LogFlush(flushedRows, totalRows int, duration time.Duration) {
	cl.Info().
		Int("flushed_rows", flushedRows).
		Int("total_rows", totalRows).
		Dur("flush_time", duration).
		Msg("Dataset checkpoint written")
}

// StartupConfig represents service startup configuration
type StartupConfig struct {
	SubgraphURL      string
	DatasetPath      string
	CursorPath       string
	PageSize         int
	FlushEveryPages  int
	ReconcileMarkets bool
}
