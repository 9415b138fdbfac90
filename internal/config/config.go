package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

// Config is the complete edm configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Crawl   CrawlConfig   `yaml:"crawl" json:"crawl"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IndexConfig locates the document index and the source catalog.
type IndexConfig struct {
	// DataDir holds the catalog database and lock files (default ~/.edm).
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Path is the bleve index directory. Empty means <data_dir>/index.bleve.
	Path string `yaml:"path" json:"path"`
}

// CrawlConfig tunes the traversal engine.
type CrawlConfig struct {
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSizeMB is the upload ceiling. Files strictly larger are skipped.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// MaxUploadsPerSecond throttles index writes. Zero is unlimited.
	MaxUploadsPerSecond float64 `yaml:"max_uploads_per_second" json:"max_uploads_per_second"`

	// UploadRetries is how often a retryable upsert failure is retried.
	UploadRetries int `yaml:"upload_retries" json:"upload_retries"`

	// DefaultExclusion applies when --exclude is not given.
	DefaultExclusion string `yaml:"default_exclusion" json:"default_exclusion"`

	// DatedReportSuffixes enables the file date override for report files
	// named "<yyyy><suffix>". Empty disables it.
	DatedReportSuffixes []string `yaml:"dated_report_suffixes" json:"dated_report_suffixes"`

	// RelativePaths stores node paths relative to the crawl root.
	RelativePaths bool `yaml:"relative_paths" json:"relative_paths"`
}

// SearchConfig tunes queries and facets.
type SearchConfig struct {
	// TopTermsExclusionRegex removes administrative tokens from top terms.
	TopTermsExclusionRegex string `yaml:"top_terms_exclusion_regex" json:"top_terms_exclusion_regex"`

	SuggestLimit       int `yaml:"suggest_limit" json:"suggest_limit"`
	MaxResults         int `yaml:"max_results" json:"max_results"`
	ExtensionFacetSize int `yaml:"extension_facet_size" json:"extension_facet_size"`
	TopTermsSize       int `yaml:"top_terms_size" json:"top_terms_size"`
	CategoryCacheSize  int `yaml:"category_cache_size" json:"category_cache_size"`
}

// SyncConfig tunes the snapshot/sweep synchronizer.
type SyncConfig struct {
	PageSize int `yaml:"page_size" json:"page_size"`
}

type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			DataDir: defaultDataDir(),
		},
		Crawl: CrawlConfig{
			Workers:             runtime.NumCPU(),
			MaxFileSizeMB:       100,
			MaxUploadsPerSecond: 0,
			UploadRetries:       3,
		},
		Search: SearchConfig{
			SuggestLimit:       10,
			MaxResults:         20,
			ExtensionFacetSize: 20,
			TopTermsSize:       10,
			CategoryCacheSize:  256,
		},
		Sync: SyncConfig{
			PageSize: 10,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".edm")
	}
	return filepath.Join(home, ".edm")
}

// IndexPath returns the bleve index directory.
func (c *Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.Index.DataDir, "index.bleve")
}

// CatalogPath returns the sqlite catalog file.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Index.DataDir, "catalog.db")
}

// LockDir returns the directory for per-source crawl locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Index.DataDir, "locks")
}

// MaxFileSizeBytes converts the MB ceiling to bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Crawl.MaxFileSizeMB) * 1024 * 1024
}

// DebounceDuration parses watch.debounce. Validate guarantees it parses.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetUserConfigPath follows XDG:
//   - $XDG_CONFIG_HOME/edm/config.yaml
//   - ~/.config/edm/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "edm", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "edm", "config.yaml")
	}
	return filepath.Join(home, ".config", "edm", "config.yaml")
}

func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig returns nil, nil when there is no user config.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load builds the configuration for a command run from dir, in order of
// increasing precedence:
//  1. Built-in defaults
//  2. User config (~/.config/edm/config.yaml)
//  3. Project config (.edm.yaml in dir)
//  4. Environment variables (EDM_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile merges .edm.yaml (or .edm.yml) from dir when present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".edm.yaml", ".edm.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return edmerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.DataDir != "" {
		c.Index.DataDir = other.Index.DataDir
	}
	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}

	if other.Crawl.Workers != 0 {
		c.Crawl.Workers = other.Crawl.Workers
	}
	if other.Crawl.MaxFileSizeMB != 0 {
		c.Crawl.MaxFileSizeMB = other.Crawl.MaxFileSizeMB
	}
	if other.Crawl.MaxUploadsPerSecond != 0 {
		c.Crawl.MaxUploadsPerSecond = other.Crawl.MaxUploadsPerSecond
	}
	if other.Crawl.UploadRetries != 0 {
		c.Crawl.UploadRetries = other.Crawl.UploadRetries
	}
	if other.Crawl.DefaultExclusion != "" {
		c.Crawl.DefaultExclusion = other.Crawl.DefaultExclusion
	}
	if len(other.Crawl.DatedReportSuffixes) > 0 {
		c.Crawl.DatedReportSuffixes = other.Crawl.DatedReportSuffixes
	}
	if other.Crawl.RelativePaths {
		c.Crawl.RelativePaths = true
	}

	if other.Search.TopTermsExclusionRegex != "" {
		c.Search.TopTermsExclusionRegex = other.Search.TopTermsExclusionRegex
	}
	if other.Search.SuggestLimit != 0 {
		c.Search.SuggestLimit = other.Search.SuggestLimit
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.ExtensionFacetSize != 0 {
		c.Search.ExtensionFacetSize = other.Search.ExtensionFacetSize
	}
	if other.Search.TopTermsSize != 0 {
		c.Search.TopTermsSize = other.Search.TopTermsSize
	}
	if other.Search.CategoryCacheSize != 0 {
		c.Search.CategoryCacheSize = other.Search.CategoryCacheSize
	}

	if other.Sync.PageSize != 0 {
		c.Sync.PageSize = other.Sync.PageSize
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies EDM_* variables. Unparseable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EDM_DATA_DIR"); v != "" {
		c.Index.DataDir = v
	}
	if v := os.Getenv("EDM_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("EDM_CRAWL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.Workers = n
		}
	}
	if v := os.Getenv("EDM_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Crawl.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("EDM_MAX_UPLOADS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Crawl.MaxUploadsPerSecond = f
		}
	}
	if v := os.Getenv("EDM_DEFAULT_EXCLUSION"); v != "" {
		c.Crawl.DefaultExclusion = v
	}
	if v := os.Getenv("EDM_DATED_REPORT_SUFFIXES"); v != "" {
		c.Crawl.DatedReportSuffixes = splitList(v)
	}
	if v := os.Getenv("EDM_RELATIVE_PATHS"); v != "" {
		c.Crawl.RelativePaths = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("EDM_TOP_TERMS_EXCLUSION"); v != "" {
		c.Search.TopTermsExclusionRegex = v
	}
	if v := os.Getenv("EDM_SUGGEST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.SuggestLimit = n
		}
	}
	if v := os.Getenv("EDM_SYNC_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.PageSize = n
		}
	}
	if v := os.Getenv("EDM_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("EDM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations that would fail later at crawl or query
// time. Regexes are compiled here so a bad admin pattern stops startup.
func (c *Config) Validate() error {
	if c.Index.DataDir == "" {
		return edmerrors.ConfigError("index.data_dir must not be empty", nil)
	}
	if c.Crawl.Workers <= 0 {
		return edmerrors.ConfigError(fmt.Sprintf("crawl.workers must be positive, got %d", c.Crawl.Workers), nil)
	}
	if c.Crawl.MaxFileSizeMB <= 0 {
		return edmerrors.ConfigError(fmt.Sprintf("crawl.max_file_size_mb must be positive, got %d", c.Crawl.MaxFileSizeMB), nil)
	}
	if c.Crawl.MaxUploadsPerSecond < 0 {
		return edmerrors.ConfigError("crawl.max_uploads_per_second must be non-negative", nil)
	}
	if c.Crawl.UploadRetries < 0 {
		return edmerrors.ConfigError("crawl.upload_retries must be non-negative", nil)
	}
	if err := validateRegex("crawl.default_exclusion", c.Crawl.DefaultExclusion); err != nil {
		return err
	}
	if err := validateRegex("search.top_terms_exclusion_regex", c.Search.TopTermsExclusionRegex); err != nil {
		return err
	}
	for _, suffix := range c.Crawl.DatedReportSuffixes {
		if suffix == "" {
			return edmerrors.ConfigError("crawl.dated_report_suffixes must not contain empty entries", nil)
		}
	}

	if c.Search.SuggestLimit <= 0 || c.Search.MaxResults <= 0 {
		return edmerrors.ConfigError("search.suggest_limit and search.max_results must be positive", nil)
	}
	if c.Search.ExtensionFacetSize <= 0 || c.Search.TopTermsSize <= 0 {
		return edmerrors.ConfigError("search facet sizes must be positive", nil)
	}
	if c.Search.CategoryCacheSize <= 0 {
		return edmerrors.ConfigError("search.category_cache_size must be positive", nil)
	}
	if c.Sync.PageSize <= 0 {
		return edmerrors.ConfigError(fmt.Sprintf("sync.page_size must be positive, got %d", c.Sync.PageSize), nil)
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d <= 0 {
		return edmerrors.ConfigError(fmt.Sprintf("watch.debounce must be a positive duration, got %q", c.Watch.Debounce), err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return edmerrors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}
	return nil
}

func validateRegex(field, pattern string) error {
	if pattern == "" {
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return edmerrors.ConfigError(fmt.Sprintf("%s is not a valid regular expression", field), err).
			WithDetail("pattern", pattern)
	}
	return nil
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
