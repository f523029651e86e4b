package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/polylake/goldsky-mirror/gamma"
	"github.com/polylake/goldsky-mirror/subgraph"
)

// Config holds all configuration for the mirror service
type Config struct {
	// Subgraph endpoint serving orderFilledEvents
	SubgraphURL string `yaml:"subgraph_url"`

	// Market catalog endpoint
	GammaURL string `yaml:"gamma_url"`

	// Rows requested per page
	PageSize int `yaml:"page_size"`

	// Pages buffered between dataset flushes
	FlushEveryPages int `yaml:"flush_every_pages"`

	// Fill dataset and cursor checkpoint paths
	FillsPath  string `yaml:"fills_path"`
	CursorPath string `yaml:"cursor_path"`

	// Market reference dataset paths
	MarketsPath        string `yaml:"markets_path"`
	MissingMarketsPath string `yaml:"missing_markets_path"`

	// Run the catalog reconciliation pass after the scrape
	ReconcileMarkets bool `yaml:"reconcile_markets"`

	// Health and metrics endpoint ports
	HealthPort  int `yaml:"health_port"`
	MetricsPort int `yaml:"metrics_port"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	cfg := Config{
		SubgraphURL:        subgraph.DefaultEndpoint,
		GammaURL:           gamma.DefaultEndpoint,
		PageSize:           1000,
		FlushEveryPages:    10,
		FillsPath:          "goldsky/orderFilled.parquet",
		CursorPath:         "goldsky/cursor_state.json",
		MarketsPath:        "data/markets.parquet",
		MissingMarketsPath: "data/missing_markets.parquet",
		ReconcileMarkets:   true,
		HealthPort:         8088,
		MetricsPort:        9090,
	}
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig loads configuration: defaults, then the YAML file at path (if
// it exists), then environment variable overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults plus env only.
	case err != nil:
		return cfg, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.SubgraphURL = getEnv("SUBGRAPH_URL", cfg.SubgraphURL)
	cfg.GammaURL = getEnv("GAMMA_URL", cfg.GammaURL)
	cfg.PageSize = getIntEnv("PAGE_SIZE", cfg.PageSize)
	cfg.FlushEveryPages = getIntEnv("FLUSH_EVERY_PAGES", cfg.FlushEveryPages)
	cfg.FillsPath = getEnv("FILLS_PATH", cfg.FillsPath)
	cfg.CursorPath = getEnv("CURSOR_PATH", cfg.CursorPath)
	cfg.MarketsPath = getEnv("MARKETS_PATH", cfg.MarketsPath)
	cfg.MissingMarketsPath = getEnv("MISSING_MARKETS_PATH", cfg.MissingMarketsPath)
	cfg.HealthPort = getIntEnv("HEALTH_PORT", cfg.HealthPort)
	cfg.MetricsPort = getIntEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)

	return cfg, cfg.Validate()
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	if c.SubgraphURL == "" {
		return fmt.Errorf("subgraph_url is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.FlushEveryPages <= 0 {
		return fmt.Errorf("flush_every_pages must be positive")
	}
	if c.FillsPath == "" {
		return fmt.Errorf("fills_path is required")
	}
	if c.CursorPath == "" {
		return fmt.Errorf("cursor_path is required")
	}
	if c.CursorPath == c.FillsPath {
		return fmt.Errorf("cursor_path must differ from fills_path")
	}
	if c.ReconcileMarkets {
		if c.GammaURL == "" {
			return fmt.Errorf("gamma_url is required when reconcile_markets is set")
		}
		if c.MarketsPath == "" || c.MissingMarketsPath == "" {
			return fmt.Errorf("market dataset paths are required when reconcile_markets is set")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
