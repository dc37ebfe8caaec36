package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	FileServer FileServerConfig `yaml:"file_server" mapstructure:"file_server" json:"file_server"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database" json:"database"`
	Log        LogConfig        `yaml:"log" mapstructure:"log" json:"log,omitempty"`
	Admin      AdminConfig      `yaml:"admin" mapstructure:"admin" json:"admin"`

	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache" json:"cache"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation" json:"validation"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog" json:"catalog"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search" json:"search"`
	Providers  []ProviderConfig `yaml:"providers" mapstructure:"providers" json:"providers"`
	SABnzbd    SABnzbdConfig    `yaml:"sabnzbd" mapstructure:"sabnzbd" json:"sabnzbd"`
	Streaming  StreamingConfig  `yaml:"streaming" mapstructure:"streaming" json:"streaming"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage" json:"storage"`
}

// FileServerConfig configures the HTTP listener that serves the catalog,
// stream and error-video endpoints, and the upstream file server client
// (internal/usenet/fileserver) that lists/serves/deletes the files SABnzbd
// materializes on disk.
type FileServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port" json:"port"`
	Prefix      string `yaml:"prefix" mapstructure:"prefix" json:"prefix"`
	UpstreamURL string `yaml:"upstream_url" mapstructure:"upstream_url" json:"upstream_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key" json:"-"`
}

// DatabaseConfig points at the SQLite database backing the URLCache and
// download-handle audit log.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path" json:"path"`
}

// LogConfig mirrors the teacher's rotation settings (lumberjack-backed).
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file" json:"file,omitempty"`
	Level      string `yaml:"level" mapstructure:"level" json:"level,omitempty"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size" json:"max_size,omitempty"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age" json:"max_age,omitempty"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups" json:"max_backups,omitempty"`
	Compress   bool   `yaml:"compress" mapstructure:"compress" json:"compress,omitempty"`
}

// AdminConfig gates the management endpoints (queue pause/resume/priority).
type AdminConfig struct {
	Password string `yaml:"password" mapstructure:"password" json:"-"`
}

// CacheConfig configures URLCache (§4.1).
type CacheConfig struct {
	Disabled    bool `yaml:"disabled" mapstructure:"disabled" json:"disabled"`
	TTLMs       int  `yaml:"ttl_ms" mapstructure:"ttl_ms" json:"ttl_ms"`
	MaxResolved int  `yaml:"max_resolved" mapstructure:"max_resolved" json:"max_resolved"`
	MaxPending  int  `yaml:"max_pending" mapstructure:"max_pending" json:"max_pending"`
	PersistToDB bool `yaml:"persist_to_db" mapstructure:"persist_to_db" json:"persist_to_db"`
}

// ValidationConfig configures RangeValidator (§4.2).
type ValidationConfig struct {
	DisableURLValidation  bool `yaml:"disable_url_validation" mapstructure:"disable_url_validation" json:"disable_url_validation"`
	DisableSeekValidation bool `yaml:"disable_seek_validation" mapstructure:"disable_seek_validation" json:"disable_seek_validation"`
	TimeoutMs             int  `yaml:"timeout_ms" mapstructure:"timeout_ms" json:"timeout_ms"`
	BatchSize             int  `yaml:"batch_size" mapstructure:"batch_size" json:"batch_size"`
	TrustedHosts          []string `yaml:"trusted_hosts" mapstructure:"trusted_hosts" json:"trusted_hosts,omitempty"`
	CapriciousHosts       []string `yaml:"capricious_hosts" mapstructure:"capricious_hosts" json:"capricious_hosts,omitempty"`
}

// CatalogConfig points at the metadata catalog used for title/season/episode lookups.
type CatalogConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms" mapstructure:"timeout_ms" json:"timeout_ms"`
}

// SearchConfig configures SearchOrchestrator (§4.4) and the request/retry
// policy shared by provider HTTP clients.
type SearchConfig struct {
	RequestTimeoutMs    int `yaml:"request_timeout_ms" mapstructure:"request_timeout_ms" json:"request_timeout_ms"`
	RequestMaxRetries   int `yaml:"request_max_retries" mapstructure:"request_max_retries" json:"request_max_retries"`
	RequestRetryDelayMs int `yaml:"request_retry_delay_ms" mapstructure:"request_retry_delay_ms" json:"request_retry_delay_ms"`
	ScraperTimeoutMs    int `yaml:"scraper_timeout_ms" mapstructure:"scraper_timeout_ms" json:"scraper_timeout_ms"`
	DomainCacheTTLMs    int `yaml:"domain_cache_ttl_ms" mapstructure:"domain_cache_ttl_ms" json:"domain_cache_ttl_ms"`
	Max4KHDHubLinks     int `yaml:"max_4khdhub_links" mapstructure:"max_4khdhub_links" json:"max_4khdhub_links"`
	// HostBlocklist and SuspiciousPatterns back §4.4 step 8's post-filter.
	HostBlocklist      []string `yaml:"host_blocklist" mapstructure:"host_blocklist" json:"host_blocklist,omitempty"`
	SuspiciousPatterns []string `yaml:"suspicious_patterns" mapstructure:"suspicious_patterns" json:"suspicious_patterns,omitempty"`
}

// ProviderConfig represents one search provider participating in fan-out.
type ProviderConfig struct {
	Name    string `yaml:"name" mapstructure:"name" json:"name"`
	Kind    string `yaml:"kind" mapstructure:"kind" json:"kind"` // "hdhub" | "offcloud"
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key" json:"-"`
	Enabled *bool  `yaml:"enabled" mapstructure:"enabled" json:"enabled,omitempty"`
}

// SABnzbdConfig configures the downloader collaborator client (§6).
type SABnzbdConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key" json:"-"`
	Category string `yaml:"category" mapstructure:"category" json:"category"`
}

// StreamingConfig configures RangeStreamer (§4.7).
type StreamingConfig struct {
	FileServerAPIKey   string  `yaml:"file_server_api_key" mapstructure:"file_server_api_key" json:"-"`
	SeekAheadTimeoutMs int     `yaml:"seek_ahead_timeout_ms" mapstructure:"seek_ahead_timeout_ms" json:"seek_ahead_timeout_ms"`
	PollIntervalMs     int     `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms" json:"poll_interval_ms"`
	MKVExtractionGate  float64 `yaml:"mkv_extraction_gate" mapstructure:"mkv_extraction_gate" json:"mkv_extraction_gate"`
}

// StorageConfig configures StorageManager (§4.8).
type StorageConfig struct {
	CriticalThresholdGB float64 `yaml:"critical_threshold_gb" mapstructure:"critical_threshold_gb" json:"critical_threshold_gb"`
	NormalThresholdGB   float64 `yaml:"normal_threshold_gb" mapstructure:"normal_threshold_gb" json:"normal_threshold_gb"`
	CleanupYieldMs      int     `yaml:"cleanup_yield_ms" mapstructure:"cleanup_yield_ms" json:"cleanup_yield_ms"`
}

// DeepCopy returns a deep copy of the configuration using the copier library.
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}

	copyCfg := &Config{}
	if err := copier.CopyWithOption(copyCfg, c, copier.Option{DeepCopy: true}); err != nil {
		shallowCopy := *c
		return &shallowCopy
	}

	return copyCfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.FileServer.Port <= 0 || c.FileServer.Port > 65535 {
		return fmt.Errorf("file_server port must be between 1 and 65535")
	}

	if c.Cache.MaxResolved <= 0 {
		return fmt.Errorf("cache max_resolved must be greater than 0")
	}

	if c.Cache.MaxPending <= 0 {
		return fmt.Errorf("cache max_pending must be greater than 0")
	}

	if c.SABnzbd.BaseURL == "" {
		return fmt.Errorf("sabnzbd base_url must be configured")
	}

	if c.Streaming.MKVExtractionGate <= 0 || c.Streaming.MKVExtractionGate > 1 {
		return fmt.Errorf("streaming mkv_extraction_gate must be in (0, 1]")
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	return nil
}

// ChangeCallback is invoked after a successful UpdateConfig.
type ChangeCallback func(oldConfig, newConfig *Config)

// ConfigGetter returns the current configuration.
type ConfigGetter func() *Config

// Manager manages configuration state and persistence, mirroring the
// teacher's mutex-guarded hot-reload pattern.
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager.
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration (thread-safe).
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// GetConfigGetter returns a function that provides the current configuration.
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig updates the current configuration (thread-safe) and notifies
// registered callbacks with before/after snapshots.
func (m *Manager) UpdateConfig(config *Config) error {
	m.mutex.Lock()
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback invoked on configuration change.
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ValidateConfigUpdate validates configuration updates with additional
// restrictions protecting settings that require a restart to change safely.
func (m *Manager) ValidateConfigUpdate(newConfig *Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	m.mutex.RLock()
	currentConfig := m.current
	m.mutex.RUnlock()

	if currentConfig != nil {
		if newConfig.FileServer.Port != currentConfig.FileServer.Port {
			return fmt.Errorf("file_server port cannot be changed via API - requires server restart")
		}
		if newConfig.Database.Path != currentConfig.Database.Path {
			return fmt.Errorf("database path cannot be changed via API - requires server restart")
		}
	}

	return nil
}

// ReloadConfig reloads configuration from file.
func (m *Manager) ReloadConfig() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	viper.SetConfigFile(m.configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", m.configFile, err)
	}

	config := DefaultConfig()
	applyEnvOverrides(config)
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.current = config
	return nil
}

// SaveConfig saves the current configuration to file.
func (m *Manager) SaveConfig() error {
	m.mutex.RLock()
	config := m.current
	m.mutex.RUnlock()

	if config == nil {
		return fmt.Errorf("no configuration to save")
	}

	return SaveToFile(config, m.configFile)
}

// isRunningInDocker detects if the application is running inside a Docker container.
func isRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// DefaultConfig returns a config with default values. If configDir is
// provided, it is used for database and log file paths.
func DefaultConfig(configDir ...string) *Config {
	var dbPath, logPath string

	if len(configDir) > 0 && configDir[0] != "" {
		dbPath = filepath.Join(configDir[0], "streamgate.db")
		logPath = filepath.Join(configDir[0], "streamgate.log")
	} else if isRunningInDocker() {
		dbPath = "/config/streamgate.db"
		logPath = "/config/streamgate.log"
	} else {
		dbPath = "./streamgate.db"
		logPath = "./streamgate.log"
	}

	cfg := &Config{
		FileServer: FileServerConfig{
			Port:   8080,
			Prefix: "/api",
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Log: LogConfig{
			File:       logPath,
			Level:      "info",
			MaxSize:    5,
			MaxAge:     14,
			MaxBackups: 5,
		},
		Cache: CacheConfig{
			TTLMs:       30 * 60 * 1000,
			MaxResolved: 500,
			MaxPending:  100,
			PersistToDB: true,
		},
		Validation: ValidationConfig{
			TimeoutMs: 8000,
			BatchSize: 5,
		},
		Catalog: CatalogConfig{
			TimeoutMs: 10000,
		},
		Search: SearchConfig{
			RequestTimeoutMs:    15000,
			RequestMaxRetries:   2,
			RequestRetryDelayMs: 500,
			ScraperTimeoutMs:    15000,
			DomainCacheTTLMs:    10 * 60 * 1000,
			Max4KHDHubLinks:     5,
			HostBlocklist:       []string{"ads.example", "tracker.example"},
			SuspiciousPatterns:  []string{"amp-redirect", "/go/track", "/ads/"},
		},
		SABnzbd: SABnzbdConfig{
			Category: "movies",
		},
		Streaming: StreamingConfig{
			SeekAheadTimeoutMs: 5 * 60 * 1000,
			PollIntervalMs:     2000,
			MKVExtractionGate:  0.8,
		},
		Storage: StorageConfig{
			CriticalThresholdGB: 20,
			NormalThresholdGB:   10,
			CleanupYieldMs:      100,
		},
	}

	applyEnvOverrides(cfg)
	return cfg
}

// SaveToFile writes the configuration as YAML.
func SaveToFile(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil && filepath.Dir(filename) != "." {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from a YAML file, applying environment
// variable overrides on top (see applyEnvOverrides for the recognized set).
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig(filepath.Dir(configFile))

	if _, err := os.Stat(configFile); err == nil {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		if err := viper.Unmarshal(config); err != nil {
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// GetConfigFilePath resolves the config file path, preferring the CONFIG_FILE
// environment variable.
func GetConfigFilePath() string {
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		return v
	}
	return "./streamgate.yaml"
}
