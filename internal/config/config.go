// Package config loads and validates knowmcp configuration.
//
// Configuration is applied in order of increasing precedence: hardcoded
// defaults, the user config (~/.config/knowmcp/config.yaml), the project
// config (.knowmcp.yaml), and KNOWMCP_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete knowmcp configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Budget   BudgetConfig   `yaml:"budget" json:"budget"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Watcher  WatcherConfig  `yaml:"watcher" json:"watcher"`
}

// StorageConfig configures the relational store.
type StorageConfig struct {
	// Path is the SQLite database file location.
	Path string `yaml:"path" json:"path"`
}

// IndexConfig configures the on-disk inverted indices.
type IndexConfig struct {
	// Dir is the root directory holding the chunks/ and items/
	// index subdirectories.
	Dir string `yaml:"dir" json:"dir"`

	// StopWords replaces the built-in stop word list when non-empty.
	StopWords []string `yaml:"stop_words,omitempty" json:"stop_words,omitempty"`

	// MinTokenLength is the shortest token the indices keep (default: 2).
	MinTokenLength int `yaml:"min_token_length,omitempty" json:"min_token_length,omitempty"`
}

// SearchConfig configures the two-phase search pipeline.
type SearchConfig struct {
	// MinRelevance is the minimum combined score for a result (0.0-1.0).
	MinRelevance float64 `yaml:"min_relevance" json:"min_relevance"`

	// MaxResults is the default result cap per search.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// KeywordWeight is the weight of the normalized keyword score when
	// merging with the semantic score. Semantic weight is the complement.
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`

	// EnableSemantic toggles the TF-IDF vector search source.
	EnableSemantic bool `yaml:"enable_semantic" json:"enable_semantic"`

	// EnableKeyword toggles the inverted-index search source.
	EnableKeyword bool `yaml:"enable_keyword" json:"enable_keyword"`

	// ResultGrouping partitions results by first category name.
	ResultGrouping bool `yaml:"result_grouping" json:"result_grouping"`

	// HighlightMatches includes highlight snippets in results.
	HighlightMatches bool `yaml:"highlight_matches" json:"highlight_matches"`
}

// ChunkingConfig configures the three-tier content chunker.
type ChunkingConfig struct {
	MinChunkSize int     `yaml:"min_chunk_size" json:"min_chunk_size"`
	MaxChunkSize int     `yaml:"max_chunk_size" json:"max_chunk_size"`
	OverlapRatio float64 `yaml:"overlap_ratio" json:"overlap_ratio"`
}

// BudgetConfig holds the result-size caps applied at serialization time.
// Budget overflow silently truncates, it never errors.
type BudgetConfig struct {
	MaxChunkContentSize  int `yaml:"max_chunk_content_size" json:"max_chunk_content_size"`
	MaxMatchedChunks     int `yaml:"max_matched_chunks" json:"max_matched_chunks"`
	MaxContextChunks     int `yaml:"max_context_chunks" json:"max_context_chunks"`
	MaxResultContentSize int `yaml:"max_result_content_size" json:"max_result_content_size"`
	MaxTotalContentSize  int `yaml:"max_total_content_size" json:"max_total_content_size"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// WatcherConfig configures the source-directory watcher.
type WatcherConfig struct {
	// Enabled enables file watching (default: false, opt-in).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Paths are the directories watched for document changes.
	Paths []string `yaml:"paths" json:"paths"`
	// DebounceMS is the event debounce window in milliseconds.
	DebounceMS int `yaml:"debounce_ms" json:"debounce_ms"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Path: filepath.Join(DefaultDataDir(), "knowledge.db"),
		},
		Index: IndexConfig{
			Dir: filepath.Join(DefaultDataDir(), "index"),
		},
		Search: SearchConfig{
			MinRelevance:     0.1,
			MaxResults:       50,
			KeywordWeight:    0.6,
			EnableSemantic:   true,
			EnableKeyword:    true,
			ResultGrouping:   false,
			HighlightMatches: false,
		},
		Chunking: ChunkingConfig{
			MinChunkSize: 100,
			MaxChunkSize: 1500,
			OverlapRatio: 0.2,
		},
		Budget: BudgetConfig{
			MaxChunkContentSize:  1500,
			MaxMatchedChunks:     5,
			MaxContextChunks:     3,
			MaxResultContentSize: 30_000,
			MaxTotalContentSize:  100_000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Watcher: WatcherConfig{
			Enabled:    false,
			Paths:      nil,
			DebounceMS: 500,
		},
	}
}

// DefaultDataDir returns the default data directory (~/.knowmcp).
// Falls back to temp directory if home directory is unavailable.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".knowmcp")
	}
	return filepath.Join(home, ".knowmcp")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/knowmcp/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/knowmcp/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "knowmcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "knowmcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "knowmcp", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the given directory.
// Precedence, lowest first: defaults, user config, project config
// (.knowmcp.yaml), KNOWMCP_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .knowmcp.yaml or .knowmcp.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".knowmcp.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".knowmcp.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.Index.Dir != "" {
		c.Index.Dir = other.Index.Dir
	}
	if len(other.Index.StopWords) > 0 {
		c.Index.StopWords = other.Index.StopWords
	}
	if other.Index.MinTokenLength != 0 {
		c.Index.MinTokenLength = other.Index.MinTokenLength
	}

	// Search. Zero is not a practical value for the float knobs, so
	// only non-zero values merge.
	if other.Search.MinRelevance != 0 {
		c.Search.MinRelevance = other.Search.MinRelevance
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.ResultGrouping {
		c.Search.ResultGrouping = true
	}
	if other.Search.HighlightMatches {
		c.Search.HighlightMatches = true
	}

	// Chunking
	if other.Chunking.MinChunkSize != 0 {
		c.Chunking.MinChunkSize = other.Chunking.MinChunkSize
	}
	if other.Chunking.MaxChunkSize != 0 {
		c.Chunking.MaxChunkSize = other.Chunking.MaxChunkSize
	}
	if other.Chunking.OverlapRatio != 0 {
		c.Chunking.OverlapRatio = other.Chunking.OverlapRatio
	}

	// Budget
	if other.Budget.MaxChunkContentSize != 0 {
		c.Budget.MaxChunkContentSize = other.Budget.MaxChunkContentSize
	}
	if other.Budget.MaxMatchedChunks != 0 {
		c.Budget.MaxMatchedChunks = other.Budget.MaxMatchedChunks
	}
	if other.Budget.MaxContextChunks != 0 {
		c.Budget.MaxContextChunks = other.Budget.MaxContextChunks
	}
	if other.Budget.MaxResultContentSize != 0 {
		c.Budget.MaxResultContentSize = other.Budget.MaxResultContentSize
	}
	if other.Budget.MaxTotalContentSize != 0 {
		c.Budget.MaxTotalContentSize = other.Budget.MaxTotalContentSize
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Watcher
	if other.Watcher.Enabled {
		c.Watcher.Enabled = true
	}
	if len(other.Watcher.Paths) > 0 {
		c.Watcher.Paths = other.Watcher.Paths
	}
	if other.Watcher.DebounceMS != 0 {
		c.Watcher.DebounceMS = other.Watcher.DebounceMS
	}
}

// applyEnvOverrides applies KNOWMCP_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KNOWMCP_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("KNOWMCP_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("KNOWMCP_MIN_RELEVANCE"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.MinRelevance = f
		}
	}
	if v := os.Getenv("KNOWMCP_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("KNOWMCP_KEYWORD_WEIGHT"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.KeywordWeight = f
		}
	}
	if v := os.Getenv("KNOWMCP_ENABLE_SEMANTIC"); v != "" {
		c.Search.EnableSemantic = isTruthy(v)
	}
	if v := os.Getenv("KNOWMCP_ENABLE_KEYWORD"); v != "" {
		c.Search.EnableKeyword = isTruthy(v)
	}
	if v := os.Getenv("KNOWMCP_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("KNOWMCP_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

func isTruthy(s string) bool {
	return strings.ToLower(s) == "true" || s == "1"
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.MinRelevance < 0 || c.Search.MinRelevance > 1 {
		return fmt.Errorf("search.min_relevance must be between 0 and 1, got %f", c.Search.MinRelevance)
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("search.keyword_weight must be between 0 and 1, got %f", c.Search.KeywordWeight)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	if c.Index.MinTokenLength < 0 {
		return fmt.Errorf("index.min_token_length must be non-negative, got %d", c.Index.MinTokenLength)
	}

	if c.Chunking.MinChunkSize <= 0 {
		return fmt.Errorf("chunking.min_chunk_size must be positive, got %d", c.Chunking.MinChunkSize)
	}
	if c.Chunking.MaxChunkSize < c.Chunking.MinChunkSize {
		return fmt.Errorf("chunking.max_chunk_size must be >= min_chunk_size, got %d < %d",
			c.Chunking.MaxChunkSize, c.Chunking.MinChunkSize)
	}
	if c.Chunking.OverlapRatio < 0 || c.Chunking.OverlapRatio >= 1 {
		return fmt.Errorf("chunking.overlap_ratio must be in [0, 1), got %f", c.Chunking.OverlapRatio)
	}

	if c.Budget.MaxChunkContentSize <= 0 || c.Budget.MaxResultContentSize <= 0 ||
		c.Budget.MaxTotalContentSize <= 0 {
		return fmt.Errorf("budget sizes must be positive")
	}
	if c.Budget.MaxMatchedChunks <= 0 || c.Budget.MaxContextChunks < 0 {
		return fmt.Errorf("budget chunk caps out of range")
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Watcher.DebounceMS < 0 {
		return fmt.Errorf("watcher.debounce_ms must be non-negative, got %d", c.Watcher.DebounceMS)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
