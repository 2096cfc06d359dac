package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the enrichment tool
type Config struct {
	// Hosted chat service used for definitions
	Chat ChatConfig `yaml:"chat" json:"chat"`

	// Batch enrichment settings
	Enrich EnrichConfig `yaml:"enrich" json:"enrich"`

	// Chunk checkpoint settings
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Category statistics settings
	Stats StatsConfig `yaml:"stats" json:"stats"`

	// Where the final tables are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Request pacing towards the chat service
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behaviour for chat queries
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Credential sources
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ChatConfig holds chat service configuration
type ChatConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	CookieDir string        `yaml:"cookie_dir" json:"cookie_dir"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	// Model pins a model id; empty uses the first one the service lists
	Model     string        `yaml:"model" json:"model"`
	WebSearch bool          `yaml:"web_search" json:"web_search"`
}

// EnrichConfig holds the batch runner configuration
type EnrichConfig struct {
	Input       string `yaml:"input" json:"input"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	LabelColumn string `yaml:"label_column" json:"label_column"`
	ChunkSize   int    `yaml:"chunk_size" json:"chunk_size"`
	Chunked     bool   `yaml:"chunked" json:"chunked"`
	Resume      bool   `yaml:"resume" json:"resume"`
	// Limit bounds single-pass runs to the first N rows; 0 processes all rows
	Limit int `yaml:"limit" json:"limit"`
}

// CheckpointConfig holds chunk checkpoint configuration
type CheckpointConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Cleanup   bool   `yaml:"cleanup" json:"cleanup"`
}

// StatsConfig holds the category statistics configuration
type StatsConfig struct {
	Input        string `yaml:"input" json:"input"`
	Encoding     string `yaml:"encoding" json:"encoding"`
	LabelColumn  string `yaml:"label_column" json:"label_column"`
	DatingColumn string `yaml:"dating_column" json:"dating_column"`
	FileName     string `yaml:"file_name" json:"file_name"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	FileName  string `yaml:"file_name" json:"file_name"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration for chat queries
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// CredentialsConfig holds where account credentials are looked up
type CredentialsConfig struct {
	EnvFile string `yaml:"env_file" json:"env_file"`
	Account string `yaml:"account" json:"account"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	// Pretty selects the colored console writer instead of JSON lines
	Pretty bool `yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			BaseURL:   "https://huggingface.co/chat",
			CookieDir: "./cookies/",
			Timeout:   120 * time.Second,
			UserAgent: "fortidsminder/1.0",
			WebSearch: true,
		},
		Enrich: EnrichConfig{
			Input:       filepath.Join("data", "output", "anlaegsbetydning_value_counts.csv"),
			LabelColumn: "anlaegsbetydning",
			ChunkSize:   4,
			Chunked:     true,
		},
		Checkpoint: CheckpointConfig{
			Directory: filepath.Join("data", "checkpoints"),
			Prefix:    "chunk_",
			Cleanup:   true,
		},
		Stats: StatsConfig{
			Input:        filepath.Join("data", "anlaeg_all_25832.csv"),
			Encoding:     "ISO-8859-1",
			LabelColumn:  "anlaegsbetydning",
			DatingColumn: "datering",
			FileName:     "anlaegsbetydning_value_counts.csv",
		},
		Output: OutputConfig{
			Directory: filepath.Join("data", "output"),
			FileName:  "anlaegsbetydning_with_definitions.csv",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
		},
		Retry: RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Credentials: CredentialsConfig{
			EnvFile: filepath.Join("data", "hf_creds.env"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// LoadFromEnv loads configuration from FORTIDSMINDER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("FORTIDSMINDER_CHAT_URL"); v != "" {
		c.Chat.BaseURL = v
	}
	if v := os.Getenv("FORTIDSMINDER_COOKIE_DIR"); v != "" {
		c.Chat.CookieDir = v
	}
	if v := os.Getenv("FORTIDSMINDER_CHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("FORTIDSMINDER_WEB_SEARCH"); v != "" {
		c.Chat.WebSearch = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("FORTIDSMINDER_INPUT"); v != "" {
		c.Enrich.Input = v
	}
	if v := os.Getenv("FORTIDSMINDER_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FORTIDSMINDER_CHUNK_SIZE: %w", err))
		} else if n > 0 {
			c.Enrich.ChunkSize = n
		}
	}
	if v := os.Getenv("FORTIDSMINDER_CHECKPOINT_DIR"); v != "" {
		c.Checkpoint.Directory = v
	}
	if v := os.Getenv("FORTIDSMINDER_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("FORTIDSMINDER_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FORTIDSMINDER_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("FORTIDSMINDER_CREDENTIALS_FILE"); v != "" {
		c.Credentials.EnvFile = v
	}
	if v := os.Getenv("FORTIDSMINDER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // nothing to load
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"fortidsminder.yaml",
		"fortidsminder.yml",
		".fortidsminder.yaml",
		filepath.Join(home, ".config", "fortidsminder", "config.yaml"),
		filepath.Join(home, ".fortidsminder.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Chat.BaseURL == "" {
		errs = append(errs, errors.New("chat base URL is required"))
	} else if u, err := url.Parse(c.Chat.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("chat base URL %q is not an absolute URL", c.Chat.BaseURL))
	}
	if c.Chat.Timeout <= 0 {
		errs = append(errs, errors.New("chat timeout must be positive"))
	}

	if c.Enrich.LabelColumn == "" {
		errs = append(errs, errors.New("label column is required"))
	}
	if c.Enrich.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Enrich.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}

	if c.Checkpoint.Directory == "" {
		errs = append(errs, errors.New("checkpoint directory is required"))
	}
	if c.Checkpoint.Prefix == "" {
		errs = append(errs, errors.New("checkpoint prefix is required"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["input"].(string); ok && v != "" {
		c.Enrich.Input = v
	}
	if v, ok := flags["encoding"].(string); ok && v != "" {
		c.Enrich.Encoding = v
	}
	if v, ok := flags["label-column"].(string); ok && v != "" {
		c.Enrich.LabelColumn = v
	}
	if v, ok := flags["chunk-size"].(int); ok {
		c.Enrich.ChunkSize = v
	}
	if v, ok := flags["chunked"].(bool); ok {
		c.Enrich.Chunked = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Enrich.Resume = v
	}
	if v, ok := flags["limit"].(int); ok {
		c.Enrich.Limit = v
	}
	if v, ok := flags["web-search"].(bool); ok {
		c.Chat.WebSearch = v
	}
	if v, ok := flags["checkpoint-dir"].(string); ok && v != "" {
		c.Checkpoint.Directory = v
	}
	if v, ok := flags["cleanup"].(bool); ok {
		c.Checkpoint.Cleanup = v
	}
	if v, ok := flags["output-dir"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["output-name"].(string); ok && v != "" {
		c.Output.FileName = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Credentials.Account = v
	}
	if v, ok := flags["stats-input"].(string); ok && v != "" {
		c.Stats.Input = v
	}
	if v, ok := flags["stats-encoding"].(string); ok && v != "" {
		c.Stats.Encoding = v
	}
	if v, ok := flags["stats-label-column"].(string); ok && v != "" {
		c.Stats.LabelColumn = v
	}
	if v, ok := flags["dating-column"].(string); ok && v != "" {
		c.Stats.DatingColumn = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fortidsminder.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
