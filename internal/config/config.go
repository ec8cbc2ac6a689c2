// Package config provides unified configuration loading for the refinement
// pipeline. Supports YAML files, a .env file, and environment variable
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pipeline and its service surface.
type Config struct {
	Observability ObservabilityConfig `yaml:"observability"`
	LLM           LLMConfig           `yaml:"llm"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Pruner        PrunerConfig        `yaml:"pruner"`
	Refiner       RefinerConfig       `yaml:"refiner"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Server        ServerConfig        `yaml:"server"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// LLMConfig holds generative capability settings.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// SegmenterConfig holds sentence segmentation settings.
type SegmenterConfig struct {
	Provider string        `yaml:"provider"` // local or remote
	BaseURL  string        `yaml:"base_url"` // remote provider only
	Timeout  time.Duration `yaml:"timeout"`
}

// PrunerConfig holds boundary pruning settings.
type PrunerConfig struct {
	ContextBudget   int `yaml:"context_budget"`    // tokens available for the boundary prompt
	SampleSize      int `yaml:"sample_size"`       // head/tail paragraphs when sampling
	MinParagraphs   int `yaml:"min_paragraphs"`    // below this, pruning is skipped
	HeadingMaxRunes int `yaml:"heading_max_runes"` // longest paragraph treated as a heading
}

// RefinerConfig holds chunk refinement settings.
type RefinerConfig struct {
	ChunkSize          int  `yaml:"chunk_size"`
	ChunkOverlap       int  `yaml:"chunk_overlap"`
	ScoreThreshold     int  `yaml:"score_threshold"`
	MaxConcurrent      int  `yaml:"max_concurrent"`
	RescoreAfterRepair bool `yaml:"rescore_after_repair"`
}

// PipelineConfig holds run orchestration settings.
type PipelineConfig struct {
	WorkDir                string `yaml:"work_dir"`
	MaxConcurrentDocuments int    `yaml:"max_concurrent_documents"`
	SkipExisting           bool   `yaml:"skip_existing"` // skip documents whose stage output already exists
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. A .env file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1:8b-instruct-fp16",
			Timeout:     120 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
		Segmenter: SegmenterConfig{
			Provider: "local",
			BaseURL:  "http://localhost:8765",
			Timeout:  30 * time.Second,
		},
		Pruner: PrunerConfig{
			ContextBudget:   6144,
			SampleSize:      20,
			MinParagraphs:   10,
			HeadingMaxRunes: 200,
		},
		Refiner: RefinerConfig{
			ChunkSize:      5,
			ChunkOverlap:   1,
			ScoreThreshold: 7,
			MaxConcurrent:  4,
		},
		Pipeline: PipelineConfig{
			WorkDir:                "refine-output",
			MaxConcurrentDocuments: 2,
			SkipExisting:           true,
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if f := c.Observability.LogFormat; f != "json" && f != "console" {
		return fmt.Errorf("invalid log format: %s", f)
	}

	if p := c.Segmenter.Provider; p != "local" && p != "remote" {
		return fmt.Errorf("invalid segmenter provider: %s", p)
	}
	if c.Segmenter.Provider == "remote" && c.Segmenter.BaseURL == "" {
		return fmt.Errorf("remote segmenter requires a base_url")
	}

	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url must not be empty")
	}

	if c.Refiner.ScoreThreshold < 1 || c.Refiner.ScoreThreshold > 10 {
		return fmt.Errorf("score_threshold must be between 1 and 10")
	}
	if c.Refiner.ChunkSize < 2 {
		return fmt.Errorf("chunk_size must be at least 2")
	}
	if c.Refiner.ChunkOverlap < 1 || c.Refiner.ChunkOverlap >= c.Refiner.ChunkSize {
		return fmt.Errorf("chunk_overlap must be between 1 and chunk_size-1")
	}

	if c.Pipeline.MaxConcurrentDocuments < 1 {
		return fmt.Errorf("max_concurrent_documents must be at least 1")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCREFINE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("DOCREFINE_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("DOCREFINE_LLM_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("DOCREFINE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("DOCREFINE_SEGMENTER_PROVIDER"); v != "" {
		cfg.Segmenter.Provider = v
	}
	if v := os.Getenv("DOCREFINE_SEGMENTER_URL"); v != "" {
		cfg.Segmenter.Provider = "remote"
		cfg.Segmenter.BaseURL = v
	}

	if v := os.Getenv("DOCREFINE_WORK_DIR"); v != "" {
		cfg.Pipeline.WorkDir = v
	}
	if v := os.Getenv("DOCREFINE_MAX_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxConcurrentDocuments = n
		}
	}

	if v := os.Getenv("DOCREFINE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DOCREFINE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
