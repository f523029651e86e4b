package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PageSize != 1000 {
		t.Errorf("PageSize = %d, want 1000", cfg.PageSize)
	}
	if cfg.FlushEveryPages != 10 {
		t.Errorf("FlushEveryPages = %d, want 10", cfg.FlushEveryPages)
	}
	if !cfg.ReconcileMarkets {
		t.Error("ReconcileMarkets = false, want true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
subgraph_url: http://localhost:9000/graphql
page_size: 250
reconcile_markets: false
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SubgraphURL != "http://localhost:9000/graphql" {
		t.Errorf("SubgraphURL = %q", cfg.SubgraphURL)
	}
	if cfg.PageSize != 250 {
		t.Errorf("PageSize = %d, want 250", cfg.PageSize)
	}
	if cfg.ReconcileMarkets {
		t.Error("ReconcileMarkets = true, want false from file")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// File did not touch the flush policy, defaults stay.
	if cfg.FlushEveryPages != 10 {
		t.Errorf("FlushEveryPages = %d, want default 10", cfg.FlushEveryPages)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PAGE_SIZE", "42")
	t.Setenv("CURSOR_PATH", "/tmp/other_cursor.json")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PageSize != 42 {
		t.Errorf("PageSize = %d, want 42 from env", cfg.PageSize)
	}
	if cfg.CursorPath != "/tmp/other_cursor.json" {
		t.Errorf("CursorPath = %q, want env override", cfg.CursorPath)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.PageSize = 0 }},
		{"zero flush pages", func(c *Config) { c.FlushEveryPages = 0 }},
		{"missing subgraph url", func(c *Config) { c.SubgraphURL = "" }},
		{"missing fills path", func(c *Config) { c.FillsPath = "" }},
		{"cursor path collides with fills path", func(c *Config) { c.CursorPath = c.FillsPath }},
		{"reconcile without gamma url", func(c *Config) { c.GammaURL = "" }},
		{"reconcile without market paths", func(c *Config) { c.MarketsPath = "" }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate passed, want error", tc.name)
		}
	}
}
