package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Writer strategies
const (
	StrategySequential = "sequential"
	StrategyPooled     = "pooled"
)

// StoreConfig is the remote content store connection
type StoreConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterConfig selects and tunes the batch-write strategy
type WriterConfig struct {
	Strategy    string `yaml:"strategy"`     // "sequential" or "pooled"
	BatchSize   int    `yaml:"batch_size"`   // operations per physical batch
	ThreadCount int    `yaml:"thread_count"` // pooled workers
}

// SourceConfig is the filesystem document source
type SourceConfig struct {
	Roots           []string `yaml:"roots"`
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	TemplatesDir    string   `yaml:"templates_dir"`
	Collections     []string `yaml:"collections"`
	// Permissions as role -> capabilities, e.g. rest-reader: [read]
	Permissions map[string][]string `yaml:"permissions"`
}

// AuditConfig is the optional ClickHouse load-audit mirror
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// Config holds all configuration for the loader
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Writer WriterConfig `yaml:"writer"`
	Source SourceConfig `yaml:"source"`
	Audit  AuditConfig  `yaml:"audit"`

	// ValidationTarget is the database the atomic validated insert runs
	// against; empty disables server-side validation
	ValidationTarget string `yaml:"validation_target"`

	// ManifestPath enables skip-unchanged tracking when set
	ManifestPath string `yaml:"manifest_path"`

	LogLevel       string `yaml:"log_level"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

// Load reads the yaml config file (if path is non-empty), applies
// environment overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := &Config{
		Writer: WriterConfig{
			Strategy:    StrategySequential,
			BatchSize:   100,
			ThreadCount: 10,
		},
		Audit: AuditConfig{
			Port:     9000,
			Database: "schemaload",
		},
		LogLevel: "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides file values with environment variables
func applyEnv(cfg *Config) {
	cfg.Store.URL = getEnv("STORE_URL", cfg.Store.URL)
	cfg.Store.Username = getEnv("STORE_USERNAME", cfg.Store.Username)
	cfg.Store.Password = getEnv("STORE_PASSWORD", cfg.Store.Password)

	cfg.Writer.Strategy = getEnv("WRITER_STRATEGY", cfg.Writer.Strategy)
	cfg.Writer.BatchSize = getEnvInt("WRITER_BATCH_SIZE", cfg.Writer.BatchSize)
	cfg.Writer.ThreadCount = getEnvInt("WRITER_THREAD_COUNT", cfg.Writer.ThreadCount)

	if roots := getEnv("SOURCE_ROOTS", ""); roots != "" {
		cfg.Source.Roots = parsePathList(roots)
	}

	cfg.ValidationTarget = getEnv("VALIDATION_TARGET", cfg.ValidationTarget)
	cfg.ManifestPath = getEnv("MANIFEST_PATH", cfg.ManifestPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.TracingEnabled = getEnvBool("TRACING_ENABLED", cfg.TracingEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.Writer.Strategy != StrategySequential && c.Writer.Strategy != StrategyPooled {
		return fmt.Errorf("writer.strategy must be %q or %q", StrategySequential, StrategyPooled)
	}
	if c.Writer.BatchSize <= 0 {
		return fmt.Errorf("writer.batch_size must be greater than 0")
	}
	if c.Writer.ThreadCount < 1 {
		return fmt.Errorf("writer.thread_count must be at least 1")
	}
	if len(c.Source.Roots) == 0 {
		return fmt.Errorf("source.roots must list at least one directory")
	}
	if c.Audit.Enabled {
		if c.Audit.Host == "" {
			return fmt.Errorf("audit.host is required when audit is enabled")
		}
		if c.Audit.Port <= 0 || c.Audit.Port > 65535 {
			return fmt.Errorf("audit.port must be between 1 and 65535")
		}
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parsePathList parses a semicolon-separated list of paths
func parsePathList(pathsStr string) []string {
	paths := strings.Split(pathsStr, ";")
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
