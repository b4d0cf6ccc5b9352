package config

import (
	"os"
	"path/filepath"
	"testing"
)

func loadTestConfig(t *testing.T) (*Config, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg, path
}

func TestLoad_CreatesDefaultConfig(t *testing.T) {
	cfg, path := loadTestConfig(t)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected default config written to disk: %v", err)
	}

	if cfg.Download.ChunkSizeBytes != 2<<20 {
		t.Errorf("Expected 2 MiB default chunk size, got %d", cfg.Download.ChunkSizeBytes)
	}
	if cfg.Download.MinCompleteRatio != 0.90 {
		t.Errorf("Expected 0.90 default completion ratio, got %f", cfg.Download.MinCompleteRatio)
	}
	if cfg.Sync.IntervalSeconds != 600 {
		t.Errorf("Expected 600s sync interval, got %d", cfg.Sync.IntervalSeconds)
	}
	if cfg.Sync.CooldownSeconds != 30 {
		t.Errorf("Expected 30s sync cooldown, got %d", cfg.Sync.CooldownSeconds)
	}
	if cfg.Sync.InitialDelaySeconds != 15 {
		t.Errorf("Expected 15s initial delay, got %d", cfg.Sync.InitialDelaySeconds)
	}
	if cfg.Cache.MaxSizeBytes != int64(4)<<30 {
		t.Errorf("Expected 4 GiB cache budget, got %d", cfg.Cache.MaxSizeBytes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoad_MalformedConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	// A present-but-broken file must fail loudly, not fall back to defaults
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoad_ReadsExistingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	content := `{
		"server": {"base_url": "http://media.local:8080", "api_key": "secret"},
		"download": {"chunk_size_bytes": 1048576}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.BaseURL != "http://media.local:8080" {
		t.Errorf("Expected base url from file, got %s", cfg.Server.BaseURL)
	}
	if cfg.Download.ChunkSizeBytes != 1<<20 {
		t.Errorf("Expected 1 MiB chunk size from file, got %d", cfg.Download.ChunkSizeBytes)
	}
	// Unset fields fall back to defaults
	if cfg.Download.MinCompleteRatio != 0.90 {
		t.Errorf("Expected default completion ratio, got %f", cfg.Download.MinCompleteRatio)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny chunk size", func(c *Config) { c.Download.ChunkSizeBytes = 1024 }},
		{"zero completion ratio", func(c *Config) { c.Download.MinCompleteRatio = 0 }},
		{"ratio above one", func(c *Config) { c.Download.MinCompleteRatio = 1.5 }},
		{"negative debounce", func(c *Config) { c.Download.DebounceMS = -1 }},
		{"negative cache budget", func(c *Config) { c.Cache.MaxSizeBytes = -1 }},
		{"zero sync interval", func(c *Config) { c.Sync.IntervalSeconds = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _ := loadTestConfig(t)
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	cfg, path := loadTestConfig(t)

	cfg.Server.BaseURL = "http://changed:9000"
	cfg.Download.BandwidthLimit = 512000
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if reloaded.Server.BaseURL != "http://changed:9000" {
		t.Errorf("Expected saved base url, got %s", reloaded.Server.BaseURL)
	}
	if reloaded.Download.BandwidthLimit != 512000 {
		t.Errorf("Expected saved bandwidth limit, got %d", reloaded.Download.BandwidthLimit)
	}
}

func TestChunkSizeFallback(t *testing.T) {
	dc := DownloadConfig{}
	if got := dc.ChunkSize(); got != 2<<20 {
		t.Errorf("Expected 2 MiB fallback, got %d", got)
	}

	dc.ChunkSizeBytes = 4 << 20
	if got := dc.ChunkSize(); got != 4<<20 {
		t.Errorf("Expected configured size, got %d", got)
	}
}
