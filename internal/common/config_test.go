package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL",
		"EXTRACTLY_CLASSIFY_MODEL", "EXTRACTLY_TEMPERATURE", "EXTRACTLY_TIMEOUT",
		"EXTRACTLY_MAX_RETRIES", "EXTRACTLY_RUNS_DIR", "EXTRACTLY_HTTP_ADDR",
		"EXTRACTLY_PDF_DPI",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ClassifyModel)
	assert.Equal(t, float32(0.0), cfg.LLM.Temperature)
	assert.Equal(t, 40*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, "./runs", cfg.Store.RunsDir)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 300, cfg.Ingest.DPI)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EXTRACTLY_CLASSIFY_MODEL", "gpt-4o")
	t.Setenv("EXTRACTLY_TEMPERATURE", "0.7")
	t.Setenv("EXTRACTLY_TIMEOUT", "90s")
	t.Setenv("EXTRACTLY_MAX_RETRIES", "5")
	t.Setenv("EXTRACTLY_PDF_DPI", "150")

	cfg := LoadConfig()
	assert.Equal(t, "gpt-4o", cfg.LLM.ClassifyModel)
	assert.InDelta(t, 0.7, float64(cfg.LLM.Temperature), 1e-6)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 150, cfg.Ingest.DPI)
}

func TestLoadConfig_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("EXTRACTLY_MAX_RETRIES", "many")
	t.Setenv("EXTRACTLY_TIMEOUT", "soon")
	t.Setenv("EXTRACTLY_TEMPERATURE", "warm")

	cfg := LoadConfig()
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 40*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, float32(0.0), cfg.LLM.Temperature)
}

func TestValidateConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
