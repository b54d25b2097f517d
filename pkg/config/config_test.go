package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 100, cfg.Run.LinesPerFile)
	assert.Equal(t, DefaultModel, cfg.Run.Model)
	assert.Equal(t, 0, cfg.Run.MaxParallel)
	assert.Equal(t, 120*time.Second, cfg.Run.TaskTimeout)
	assert.Contains(t, cfg.Run.IncludeExt, ".txt")
	assert.Contains(t, cfg.Run.ExcludeExt, ".exe")
	assert.Equal(t, 2, cfg.Engine.RetryAttempts)
	assert.Equal(t, 0.1, cfg.Run.Temperature)

	def, ok := cfg.GetModel("")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434/v1", def.BaseURL)
	assert.Equal(t, DefaultModel, def.ModelName)
}

func TestLoad_ExpandsEnvAndOverlays(t *testing.T) {
	t.Setenv("TEST_S3_SECRET", "s3cr3t")

	path := writeConfig(t, `
models:
  default: local
  definitions:
    local:
      provider: ollama
      model_name: phi
      base_url: http://gpu-box:11434/v1
      timeout: 45s
run:
  root: /srv/records
  output: /tmp/out.csv
  lines_per_file: 40
  max_parallel: 6
  temperature: 3.5
  include_ext: [TXT, "md"]
engine:
  rate_limit: 2
s3:
  endpoint: minio:9000
  bucket: exports
  secret_key: ${TEST_S3_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/srv/records", cfg.Run.Root)
	assert.Equal(t, 40, cfg.Run.LinesPerFile)
	assert.Equal(t, 6, cfg.Run.MaxParallel)
	assert.Equal(t, 1.0, cfg.Run.Temperature)
	assert.Equal(t, []string{".txt", ".md"}, cfg.Run.IncludeExt)
	assert.Equal(t, DefaultExcludeExt, cfg.Run.ExcludeExt)
	assert.Equal(t, 1, cfg.Engine.BurstLimit)
	assert.Equal(t, "s3cr3t", cfg.S3.SecretKey)
	assert.True(t, cfg.S3.Enabled())

	def, ok := cfg.GetModel("")
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, def.Timeout)
	assert.Equal(t, "phi", def.ModelName)
	assert.Equal(t, "phi", cfg.Run.Model, "run.model falls back to the provider model_name")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvModel, "llama3")
	t.Setenv(EnvOllamaURL, "http://other:11434/v1")

	cfg, err := Load(writeConfig(t, "run:\n  root: /r\n  output: o.csv\n"))
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Run.Model)
	def, _ := cfg.GetModel("")
	assert.Equal(t, "http://other:11434/v1", def.BaseURL)
	assert.Equal(t, "llama3", def.ModelName)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")

	_, err = Load(writeConfig(t, "run: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse yaml")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"ok", func(c *AppConfig) {}, ""},
		{"missing root", func(c *AppConfig) { c.Run.Root = "" }, "run.root is required"},
		{"missing output", func(c *AppConfig) { c.Run.Output = "" }, "run.output is required"},
		{"negative workers", func(c *AppConfig) { c.Run.MaxParallel = -1 }, "run.max_parallel"},
		{"bad retry delay", func(c *AppConfig) { c.Engine.RetryDelay = "soon" }, "engine.retry_delay"},
		{"unknown default model", func(c *AppConfig) { c.Models.Default = "nope" }, "is not defined"},
		{"unknown model ignored when skipping", func(c *AppConfig) {
			c.Models.Default = "nope"
			c.Run.SkipAnalysis = true
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Run.Root = "/r"
			cfg.Run.Output = "/o.csv"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeExtensions(t *testing.T) {
	got := NormalizeExtensions([]string{"PDF", ".Docx", " ", "  txt "})
	assert.Equal(t, []string{".pdf", ".docx", ".txt"}, got)
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv(EnvModel, "")
	t.Setenv(EnvOllamaURL, "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)

	def, ok := cfg.GetModel("")
	require.True(t, ok)
	assert.Equal(t, DefaultModel, def.ModelName)
	assert.Equal(t, 150*time.Second, def.Timeout)
	assert.Equal(t, "sk-test", cfg.Models.Definitions["openai"].APIKey)
	assert.Equal(t, 120*time.Second, cfg.Run.TaskTimeout)
	assert.Equal(t, "500ms", cfg.Engine.RetryDelay)
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, DefaultIncludeExt, cfg.Run.IncludeExt)
}

func TestLoad_RetryAttempts(t *testing.T) {
	unset, err := Load(writeConfig(t, "engine:\n  rate_limit: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryAttempts, unset.Engine.RetryAttempts)

	disabled, err := Load(writeConfig(t, "engine:\n  retry_attempts: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, disabled.Engine.RetryAttempts)

	eng := EngineConfig{}
	assert.Equal(t, 0, eng.GetDefaults().RetryAttempts)
}
