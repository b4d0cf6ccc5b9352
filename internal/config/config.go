package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	Download DownloadConfig `json:"download" mapstructure:"download"`
	Sync     SyncConfig     `json:"sync" mapstructure:"sync"`
	Playback PlaybackConfig `json:"playback" mapstructure:"playback"`
	Network  NetworkConfig  `json:"network" mapstructure:"network"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains the remote media server settings
type ServerConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	// APIKey is the credential sent with every request. When APIKeyEncrypted
	// is set, APIKey holds ciphertext produced by the security package.
	APIKey          string `json:"api_key" mapstructure:"api_key"`
	APIKeyEncrypted bool   `json:"api_key_encrypted" mapstructure:"api_key_encrypted"`
}

// CacheConfig contains content cache settings
type CacheConfig struct {
	// MaxSizeBytes is the storage budget the janitor evicts toward. Zero
	// disables pressure-driven eviction.
	MaxSizeBytes int64 `json:"max_size_bytes" mapstructure:"max_size_bytes"`
	// EvictCheckSeconds is how often the janitor compares cache size to the budget
	EvictCheckSeconds int `json:"evict_check_seconds" mapstructure:"evict_check_seconds"`
	// CoverArtMaxPixels is the longest edge cover art is downscaled to before persisting
	CoverArtMaxPixels int `json:"cover_art_max_pixels" mapstructure:"cover_art_max_pixels"`
}

// DownloadConfig contains download orchestration settings
type DownloadConfig struct {
	// ChunkSizeBytes is the byte-range size used by the chunked transfer fallback
	ChunkSizeBytes int64 `json:"chunk_size_bytes" mapstructure:"chunk_size_bytes"`
	// MinCompleteRatio is the fraction of the declared total size below which
	// a finished transfer is treated as incomplete and failed
	MinCompleteRatio float64 `json:"min_complete_ratio" mapstructure:"min_complete_ratio"`
	// DebounceMS collapses a burst of enqueues into one worker-loop wake
	DebounceMS int `json:"debounce_ms" mapstructure:"debounce_ms"`
	// BandwidthLimit caps transfer throughput in bytes per second (0 = unlimited)
	BandwidthLimit int `json:"bandwidth_limit" mapstructure:"bandwidth_limit"`
}

// SyncConfig contains playlist reconciliation settings
type SyncConfig struct {
	InitialDelaySeconds int `json:"initial_delay_seconds" mapstructure:"initial_delay_seconds"`
	IntervalSeconds     int `json:"interval_seconds" mapstructure:"interval_seconds"`
	CooldownSeconds     int `json:"cooldown_seconds" mapstructure:"cooldown_seconds"`
}

// PlaybackConfig contains playback engine settings
type PlaybackConfig struct {
	// PositionReportSeconds throttles steady-state now-playing position updates
	PositionReportSeconds int `json:"position_report_seconds" mapstructure:"position_report_seconds"`
}

// NetworkConfig contains network-related settings
type NetworkConfig struct {
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries" mapstructure:"max_retries"`
	ProxyURL       string `json:"proxy_url" mapstructure:"proxy_url"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	Output     string `json:"output" mapstructure:"output"`
	FilePath   string `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// Load loads configuration from file or creates default
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Read config file if it exists. With an explicit config file viper
	// surfaces a missing file as a plain *fs.PathError, not its own
	// ConfigFileNotFoundError, so both are treated as first run.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found, create with defaults
			if err := v.WriteConfigAs(configPath); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Allow environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("PLAYVAULT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Download.ChunkSizeBytes < 64*1024 {
		return fmt.Errorf("chunk size must be at least 64 KiB")
	}

	if c.Download.MinCompleteRatio <= 0 || c.Download.MinCompleteRatio > 1 {
		return fmt.Errorf("min complete ratio must be in (0, 1]")
	}

	if c.Download.DebounceMS < 0 {
		return fmt.Errorf("debounce cannot be negative")
	}

	if c.Cache.MaxSizeBytes < 0 {
		return fmt.Errorf("cache size budget cannot be negative")
	}

	if c.Sync.IntervalSeconds < 1 {
		return fmt.Errorf("sync interval must be at least 1 second")
	}

	if c.Sync.CooldownSeconds < 0 {
		return fmt.Errorf("sync cooldown cannot be negative")
	}

	if c.Playback.PositionReportSeconds < 1 {
		return fmt.Errorf("position report interval must be at least 1 second")
	}

	if c.Network.TimeoutSeconds < 1 {
		return fmt.Errorf("network timeout must be at least 1 second")
	}

	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}

	validOutputs := map[string]bool{"file": true, "console": true, "both": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s (must be file, console, or both)", c.Logging.Output)
	}

	if c.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("log max size must be at least 1 MB")
	}

	return nil
}

// Save saves the configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.Set("server", c.Server)
	v.Set("cache", c.Cache)
	v.Set("download", c.Download)
	v.Set("sync", c.Sync)
	v.Set("playback", c.Playback)
	v.Set("network", c.Network)
	v.Set("logging", c.Logging)

	return v.WriteConfig()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Cache defaults
	v.SetDefault("cache.max_size_bytes", int64(4)<<30)
	v.SetDefault("cache.evict_check_seconds", 300)
	v.SetDefault("cache.cover_art_max_pixels", 600)

	// Download defaults
	v.SetDefault("download.chunk_size_bytes", int64(2)<<20)
	v.SetDefault("download.min_complete_ratio", 0.90)
	v.SetDefault("download.debounce_ms", 250)
	v.SetDefault("download.bandwidth_limit", 0)

	// Sync defaults
	v.SetDefault("sync.initial_delay_seconds", 15)
	v.SetDefault("sync.interval_seconds", 600)
	v.SetDefault("sync.cooldown_seconds", 30)

	// Playback defaults
	v.SetDefault("playback.position_report_seconds", 5)

	// Network defaults
	v.SetDefault("network.timeout_seconds", 30)
	v.SetDefault("network.max_retries", 3)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "file")
	v.SetDefault("logging.file_path", filepath.Join(GetDataDir(), "logs", "app.log"))
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

// getDefaultConfigPath returns the default configuration file path
func getDefaultConfigPath() string {
	return filepath.Join(GetDataDir(), "settings.json")
}

// ensureConfigDir ensures the configuration directory exists
func ensureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

// GetDataDir returns the application data directory
func GetDataDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = os.Getenv("HOME")
	}
	return filepath.Join(appData, "PlayVault")
}

// GetDefaultDBPath returns the default database path
func GetDefaultDBPath() string {
	return filepath.Join(GetDataDir(), "data", "vault.db")
}

// ChunkSize returns the chunk size, falling back to 2 MiB when unset
func (c *DownloadConfig) ChunkSize() int64 {
	if c.ChunkSizeBytes <= 0 {
		return 2 << 20
	}
	return c.ChunkSizeBytes
}
