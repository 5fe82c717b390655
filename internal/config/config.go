// Package config loads the calendaragent configuration: a YAML file with
// defaults, overridden by environment variables, optionally read from a
// .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// StorageConfig selects where events and preferences live.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// LLMConfig configures the model behind the agents.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`
	// MinInterval is the minimum delay between two calls.
	MinInterval time.Duration `yaml:"min_interval"`
	// MaxRetries bounds attempts on rate-limit errors.
	MaxRetries uint `yaml:"max_retries"`
	// RetryMaxElapsed bounds the total time spent retrying one call.
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
}

// AgentConfig configures the tool-calling loops and conversations.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	HistoryLimit  int           `yaml:"history_limit"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// CalendarConfig holds calendar defaults.
type CalendarConfig struct {
	Timezone      string `yaml:"timezone"`
	WorkStartHour int    `yaml:"work_start_hour"`
	WorkEndHour   int    `yaml:"work_end_hour"`
}

// CleanupConfig configures the purge of cancelled events.
type CleanupConfig struct {
	// Schedule is a cron expression; empty disables the job.
	Schedule  string        `yaml:"schedule"`
	Retention time.Duration `yaml:"retention"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	Calendar CalendarConfig `yaml:"calendar"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills zero values with defaults and clamps invalid ones.
func (c *Config) Normalize() {
	switch c.Storage.Driver {
	case StorageSQLite, StorageMemory:
	default:
		c.Storage.Driver = StorageSQLite
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultDataPath()
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-004"
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		c.LLM.Temperature = 0
	}
	if c.LLM.MinInterval < 0 {
		c.LLM.MinInterval = 0
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 4
	}
	if c.LLM.RetryMaxElapsed <= 0 {
		c.LLM.RetryMaxElapsed = 2 * time.Minute
	}

	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.HistoryLimit <= 0 {
		c.Agent.HistoryLimit = 20
	}
	if c.Agent.SessionTTL <= 0 {
		c.Agent.SessionTTL = 30 * time.Minute
	}

	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "Local"
	}
	if c.Calendar.WorkStartHour < 0 || c.Calendar.WorkStartHour > 23 {
		c.Calendar.WorkStartHour = 9
	}
	if c.Calendar.WorkEndHour <= 0 || c.Calendar.WorkEndHour > 24 {
		c.Calendar.WorkEndHour = 18
	}
	if c.Calendar.WorkEndHour <= c.Calendar.WorkStartHour {
		c.Calendar.WorkStartHour, c.Calendar.WorkEndHour = 9, 18
	}

	if c.Cleanup.Retention <= 0 {
		c.Cleanup.Retention = 30 * 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		c.Log.Format = "text"
	}
}

// Location resolves Calendar.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" || c.Calendar.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

// Load reads the YAML file at path, applies environment overrides and
// normalizes the result. A missing file is not an error; an empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg, nil
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from CALENDARAGENT_* variables. GEMINI_API_KEY
// and GOOGLE_API_KEY are accepted for the API key.
func (c *Config) ApplyEnv() {
	c.Storage.Driver = getEnvOrDefault("CALENDARAGENT_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = getEnvOrDefault("CALENDARAGENT_DB_PATH", c.Storage.Path)

	c.LLM.APIKey = getEnvOrDefault("CALENDARAGENT_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = getEnvOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	}
	c.LLM.Model = getEnvOrDefault("CALENDARAGENT_MODEL", c.LLM.Model)
	c.LLM.EmbeddingModel = getEnvOrDefault("CALENDARAGENT_EMBEDDING_MODEL", c.LLM.EmbeddingModel)
	c.LLM.MinInterval = getEnvDurationOrDefault("CALENDARAGENT_LLM_MIN_INTERVAL", c.LLM.MinInterval)
	c.LLM.MaxRetries = uint(getEnvIntOrDefault("CALENDARAGENT_LLM_MAX_RETRIES", int(c.LLM.MaxRetries)))

	c.Agent.MaxIterations = getEnvIntOrDefault("CALENDARAGENT_MAX_ITERATIONS", c.Agent.MaxIterations)
	c.Agent.SessionTTL = getEnvDurationOrDefault("CALENDARAGENT_SESSION_TTL", c.Agent.SessionTTL)

	c.Calendar.Timezone = getEnvOrDefault("CALENDARAGENT_TIMEZONE", c.Calendar.Timezone)
	c.Calendar.WorkStartHour = getEnvIntOrDefault("CALENDARAGENT_WORK_START", c.Calendar.WorkStartHour)
	c.Calendar.WorkEndHour = getEnvIntOrDefault("CALENDARAGENT_WORK_END", c.Calendar.WorkEndHour)

	c.Cleanup.Schedule = getEnvOrDefault("CALENDARAGENT_CLEANUP_SCHEDULE", c.Cleanup.Schedule)
	c.Cleanup.Retention = getEnvDurationOrDefault("CALENDARAGENT_CLEANUP_RETENTION", c.Cleanup.Retention)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

func defaultDataPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/calendaragent/calendar.db"
	}
	return "calendar.db"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
