package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "local", cfg.Segmenter.Provider)
	assert.Equal(t, 5, cfg.Refiner.ChunkSize)
	assert.Equal(t, 1, cfg.Refiner.ChunkOverlap)
	assert.Equal(t, 7, cfg.Refiner.ScoreThreshold)
	assert.Equal(t, 20, cfg.Pruner.SampleSize)
	assert.Equal(t, 10, cfg.Pruner.MinParagraphs)
	assert.Equal(t, 200, cfg.Pruner.HeadingMaxRunes)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: qwen2.5:14b
  timeout: 90s
refiner:
  score_threshold: 6
  rescore_after_repair: true
segmenter:
  provider: remote
  base_url: http://segmenter:9000
pruner:
  heading_max_runes: 120
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5:14b", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 6, cfg.Refiner.ScoreThreshold)
	assert.True(t, cfg.Refiner.RescoreAfterRepair)
	assert.Equal(t, "remote", cfg.Segmenter.Provider)
	assert.Equal(t, "http://segmenter:9000", cfg.Segmenter.BaseURL)
	assert.Equal(t, 120, cfg.Pruner.HeadingMaxRunes)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Refiner.ChunkSize)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCREFINE_LLM_MODEL", "mistral:7b")
	t.Setenv("DOCREFINE_SEGMENTER_URL", "http://example:8765")
	t.Setenv("DOCREFINE_SERVER_PORT", "9999")
	t.Setenv("DOCREFINE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mistral:7b", cfg.LLM.Model)
	assert.Equal(t, "remote", cfg.Segmenter.Provider)
	assert.Equal(t, "http://example:8765", cfg.Segmenter.BaseURL)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default is valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "log format"},
		{"bad provider", func(c *Config) { c.Segmenter.Provider = "grpc" }, "provider"},
		{"remote without url", func(c *Config) {
			c.Segmenter.Provider = "remote"
			c.Segmenter.BaseURL = ""
		}, "base_url"},
		{"threshold too high", func(c *Config) { c.Refiner.ScoreThreshold = 11 }, "score_threshold"},
		{"overlap >= size", func(c *Config) { c.Refiner.ChunkOverlap = 5 }, "chunk_overlap"},
		{"no documents", func(c *Config) { c.Pipeline.MaxConcurrentDocuments = 0 }, "max_concurrent_documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/etc/docrefine/out", ResolveRelativePath("/etc/docrefine/config.yaml", "out"))
	assert.Equal(t, "/abs/out", ResolveRelativePath("/etc/docrefine/config.yaml", "/abs/out"))
}
