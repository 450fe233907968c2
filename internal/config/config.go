// Package config loads the YAML configuration and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/logging"
	"github.com/r3d91ll/innercritic/internal/session"
	"github.com/r3d91ll/innercritic/internal/storage"
	"github.com/r3d91ll/innercritic/internal/telemetry"
)

// HomeEnv names the variable that relocates the data directory.
const HomeEnv = "INNERCRITIC_HOME"

// Config holds all configuration.
type Config struct {
	// Home is the data directory: config, state and logs live here.
	Home      string           `yaml:"-"`
	LLM       llm.Config       `yaml:"llm"`
	Session   session.Config   `yaml:"session"`
	Analysis  analysis.Config  `yaml:"analysis"`
	Storage   StorageConfig    `yaml:"storage"`
	Logging   logging.Config   `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Server    ServerConfig     `yaml:"server"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // file or sqlite
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the default configuration rooted at DefaultHome.
func Default() *Config {
	return &Config{
		Home:      DefaultHome(),
		LLM:       llm.DefaultConfig(),
		Session:   session.DefaultConfig(),
		Analysis:  analysis.DefaultConfig(),
		Storage:   StorageConfig{Driver: storage.DriverFile},
		Logging:   logging.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:           "127.0.0.1:5174",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
	}
}

// DefaultHome is $INNERCRITIC_HOME, or ~/.innercritic.
func DefaultHome() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".innercritic"
	}
	return filepath.Join(userHome, ".innercritic")
}

// DefaultPath is the config file inside the default home.
func DefaultPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	} else {
		cfg.Home = filepath.Dir(path)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INNERCRITIC_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("INNERCRITIC_CHAT_MODEL"); v != "" {
		c.LLM.ChatModel = v
	}
	if v := os.Getenv("INNERCRITIC_IMAGE_MODEL"); v != "" {
		c.LLM.ImageModel = v
	}
	if v := os.Getenv("INNERCRITIC_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("INNERCRITIC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if c.LLM.ChatModel == "" {
		errs = append(errs, errors.New("llm.chat_model is required"))
	}
	if c.LLM.ImageModel == "" {
		errs = append(errs, errors.New("llm.image_model is required"))
	}

	sampling := map[string]session.Sampling{
		"session.critic":        c.Session.Critic,
		"session.healthy_adult": c.Session.HealthyAdult,
		"session.therapist":     c.Session.Therapist,
		"analysis": {
			MaxTokens:   c.Analysis.MaxTokens,
			Temperature: c.Analysis.Temperature,
		},
	}
	for _, name := range []string{"session.critic", "session.healthy_adult", "session.therapist", "analysis"} {
		s := sampling[name]
		if s.MaxTokens <= 0 {
			errs = append(errs, fmt.Errorf("%s.max_tokens must be positive", name))
		}
		if s.Temperature < 0 || s.Temperature > 2 {
			errs = append(errs, fmt.Errorf("%s.temperature must be between 0 and 2", name))
		}
	}

	switch c.Storage.Driver {
	case "", storage.DriverFile, storage.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// StateDir is where storage backends keep their files.
func (c *Config) StateDir() string {
	return c.Home
}

// LogFile returns the configured log file, defaulting to a file in Home.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Home, "innercritic.log")
}

// HistoryFile is the REPL history path.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.Home, "history")
}
