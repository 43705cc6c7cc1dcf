package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RECIPIC_LISTEN_ADDR", "RECIPIC_PROVIDER", "CEREBRAS_API_KEY", "RECIPIC_API_KEY",
		"RECIPIC_BASE_URL", "RECIPIC_TEXT_MODEL", "RECIPIC_VISION_MODEL", "GEMINI_API_KEY",
		"RECIPIC_GEMINI_API_KEY", "RECIPIC_GEMINI_MODEL", "DATABASE_URL", "RECIPIC_DATABASE_URL",
		"REDIS_URL", "RECIPIC_REDIS_URL", "ENV", "RECIPIC_LOG_ENV", "RECIPIC_ALLOWED_ORIGINS",
		"RECIPIC_CHOICES", "RECIPIC_REQUEST_TIMEOUT_SECONDS", "RECIPIC_RATE_LIMIT_PER_HOUR",
		"RECIPIC_MAX_TOKENS", "RECIPIC_TEMPERATURE",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"api_key": "file-key", "text_model": "llama-3.3-70b", "choices": 2}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, "llama-3.3-70b", cfg.TextModel)
	assert.Equal(t, 2, cfg.Choices)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "https://api.cerebras.ai/v1", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"api_key": "file-key", "choices": 2}`)
	t.Setenv("CEREBRAS_API_KEY", "env-key")
	t.Setenv("RECIPIC_CHOICES", "3")
	t.Setenv("RECIPIC_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DATABASE_URL", "postgres://localhost/recipic")
	t.Setenv("RECIPIC_MAX_TOKENS", "1024")
	t.Setenv("RECIPIC_TEMPERATURE", "0.7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, 3, cfg.Choices)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres://localhost/recipic", cfg.DatabaseURL)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECIPIC_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, `{not json`))
	assert.ErrorContains(t, err, "failed to unmarshal")

	t.Setenv("RECIPIC_API_KEY", "k")
	t.Setenv("RECIPIC_CHOICES", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, `RECIPIC_CHOICES: "many" is not a number`)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Choices = 0
	cfg.RequestTimeoutSeconds = 0
	cfg.MaxTokens = -1
	cfg.Temperature = 3

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens must not be negative")
	assert.Contains(t, err.Error(), "temperature must be between 0 and 2")
	assert.Contains(t, err.Error(), "api_key is required")
	assert.Contains(t, err.Error(), "choices must be at least 1")
	assert.Contains(t, err.Error(), "request_timeout_seconds must be at least 1")
}

func TestValidate_Providers(t *testing.T) {
	cfg := Default()
	cfg.Provider = ProviderGemini
	assert.ErrorContains(t, cfg.Validate(), "gemini_api_key is required")

	cfg.GeminiAPIKey = "g"
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "anthropic"
	assert.ErrorContains(t, cfg.Validate(), `provider must be "openai" or "gemini"`)
}
