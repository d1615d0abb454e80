// Package config loads service configuration from a YAML file, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fmuoria/recruit-crm/internal/mapping"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Memory   MemoryConfig   `yaml:"memory"`
	Vertex   VertexConfig   `yaml:"vertex"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 or postgres
	DSN    string `yaml:"dsn"`
}

// UploadsConfig holds upload session settings
type UploadsConfig struct {
	Dir           string        `yaml:"dir"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	CacheSize     int           `yaml:"cache_size"`
	CacheDriver   string        `yaml:"cache_driver"` // memory or redis
	RedisURL      string        `yaml:"redis_url"`
}

// MappingConfig tunes header resolution
type MappingConfig struct {
	Precedence         []string `yaml:"precedence"`
	NormalizeCacheSize int      `yaml:"normalize_cache_size"`
	Scorer             string   `yaml:"scorer"` // fuzzy or vertex
}

// MemoryConfig holds the learned mapping reinforcement constants
type MemoryConfig struct {
	InitialConfidence float64 `yaml:"initial_confidence"`
	ConfidenceStep    float64 `yaml:"confidence_step"`
}

// VertexConfig configures the Gemini semantic scorer
type VertexConfig struct {
	Project         string `yaml:"project"`
	Location        string `yaml:"location"`
	Model           string `yaml:"model"`
	CredentialsFile string `yaml:"credentials_file"`
}

// NotifyConfig configures import summary notifications
type NotifyConfig struct {
	Driver               string   `yaml:"driver"` // log, gmail or ses
	Recipients           []string `yaml:"recipients"`
	Sender               string   `yaml:"sender"`
	GmailCredentialsFile string   `yaml:"gmail_credentials_file"`
	GmailTokenFile       string   `yaml:"gmail_token_file"`
	SESRegion            string   `yaml:"ses_region"`
	MaxRetries           int      `yaml:"max_retries"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // json or console
	Service string `yaml:"service"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: storage.DriverSQLite,
			DSN:    "recruit.db",
		},
		Uploads: UploadsConfig{
			Dir:           "uploads",
			SessionTTL:    2 * time.Hour,
			SweepInterval: 15 * time.Minute,
			CacheSize:     128,
			CacheDriver:   "memory",
		},
		Mapping: MappingConfig{
			Precedence:         append([]string(nil), mapping.DefaultPrecedence...),
			NormalizeCacheSize: mapping.DefaultNormalizeCacheSize,
			Scorer:             "fuzzy",
		},
		Memory: MemoryConfig{
			InitialConfidence: storage.DefaultInitialConfidence,
			ConfidenceStep:    storage.DefaultConfidenceStep,
		},
		Vertex: VertexConfig{
			Location: "us-central1",
			Model:    "gemini-1.5-flash",
		},
		Notify: NotifyConfig{
			Driver:         "log",
			GmailTokenFile: "token.json",
			SESRegion:      "us-east-1",
			MaxRetries:     3,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Service: "recruit-crm",
		},
	}
}

// GetConfigPath returns the path to the per-user configuration file
// On Windows: %APPDATA%/RecruitCRM/config.yaml
// On Unix: ~/.config/RecruitCRM/config.yaml
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		// Windows
		configDir = filepath.Join(os.Getenv("APPDATA"), "RecruitCRM")
	} else {
		// Unix-like systems
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "RecruitCRM")
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// Load reads .env, then the config file at path (falling back to
// RECRUIT_CONFIG and the per-user file), then applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	if path == "" {
		path = os.Getenv("RECRUIT_CONFIG")
	}
	if path == "" {
		if p, err := GetConfigPath(); err == nil {
			path = p
		}
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads a YAML file over the defaults. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.Driver, cfg.Database.DSN = storage.DriverForURL(v)
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Uploads.CacheDriver = "redis"
		cfg.Uploads.RedisURL = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Uploads.Dir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		cfg.Vertex.Project = v
	}

	if v := os.Getenv("GOOGLE_CLOUD_LOCATION"); v != "" {
		cfg.Vertex.Location = v
	}

	if v := os.Getenv("NOTIFY_DRIVER"); v != "" {
		cfg.Notify.Driver = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("invalid database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads dir is required")
	}
	switch c.Uploads.CacheDriver {
	case "memory":
	case "redis":
		if c.Uploads.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis cache driver")
		}
	default:
		return fmt.Errorf("invalid uploads cache driver: %q", c.Uploads.CacheDriver)
	}

	if err := mapping.ValidatePrecedence(c.Mapping.Precedence); err != nil {
		return fmt.Errorf("invalid mapping precedence: %w", err)
	}
	switch c.Mapping.Scorer {
	case "", "fuzzy":
	case "vertex":
		if c.Vertex.Project == "" {
			return fmt.Errorf("vertex project is required for the vertex scorer")
		}
	default:
		return fmt.Errorf("invalid mapping scorer: %q", c.Mapping.Scorer)
	}

	if c.Memory.InitialConfidence <= 0 || c.Memory.InitialConfidence > 1 {
		return fmt.Errorf("memory initial_confidence must be in (0, 1]")
	}
	if c.Memory.ConfidenceStep <= 0 {
		return fmt.Errorf("memory confidence_step must be positive")
	}

	switch strings.ToLower(c.Notify.Driver) {
	case "", "log":
	case "gmail":
		if c.Notify.GmailCredentialsFile == "" {
			return fmt.Errorf("gmail_credentials_file is required for the gmail notifier")
		}
		if _, err := os.Stat(c.Notify.GmailCredentialsFile); err != nil {
			return fmt.Errorf("gmail credentials file not found: %w", err)
		}
	case "ses":
		if c.Notify.Sender == "" {
			return fmt.Errorf("notify sender is required for the ses notifier")
		}
	default:
		return fmt.Errorf("invalid notify driver: %q", c.Notify.Driver)
	}

	if c.Vertex.CredentialsFile != "" {
		if _, err := os.Stat(c.Vertex.CredentialsFile); err != nil {
			return fmt.Errorf("google credentials file not found: %w", err)
		}
	}

	return nil
}

// ApplyToEnv exports the Google settings the Vertex AI client reads from the environment
func (c *Config) ApplyToEnv() {
	if c.Vertex.Project != "" {
		os.Setenv("GOOGLE_CLOUD_PROJECT", c.Vertex.Project)
	}
	if c.Vertex.Location != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.Vertex.Location)
	}
	if c.Vertex.CredentialsFile != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.Vertex.CredentialsFile)
	}
}
