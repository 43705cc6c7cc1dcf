// Package config loads the server configuration from config.json and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"recipic/internal/platform/gemini"
	"recipic/internal/platform/openai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config represents the application configuration.
type Config struct {
	ListenAddr            string   `json:"listen_addr"`
	Provider              string   `json:"provider"`
	APIKey                string   `json:"api_key"`
	BaseURL               string   `json:"base_url"`
	TextModel             string   `json:"text_model"`
	VisionModel           string   `json:"vision_model"`
	GeminiAPIKey          string   `json:"gemini_api_key"`
	GeminiModel           string   `json:"gemini_model"`
	Choices               int      `json:"choices"`
	MaxTokens             int      `json:"max_tokens"`
	Temperature           float64  `json:"temperature"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"`
	DatabaseURL           string   `json:"database_url"`
	RedisURL              string   `json:"redis_url"`
	RateLimitPerHour      int      `json:"rate_limit_per_hour"`
	AllowedOrigins        []string `json:"allowed_origins"`
	LogEnv                string   `json:"log_env"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ListenAddr:            ":8080",
		Provider:              ProviderOpenAI,
		BaseURL:               openai.DefaultBaseURL,
		TextModel:             "llama3.1-8b",
		VisionModel:           "gpt-4o-mini",
		GeminiModel:           gemini.DefaultModel,
		Choices:               1,
		RequestTimeoutSeconds: 45,
		RateLimitPerHour:      30,
		AllowedOrigins:        []string{"http://localhost:8080"},
		LogEnv:                "development",
	}
}

// Load reads path (if it exists) over the defaults, then applies environment
// overrides. A .env file in the working directory is loaded first.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to unmarshal %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, "RECIPIC_LISTEN_ADDR")
	setString(&c.Provider, "RECIPIC_PROVIDER")
	setString(&c.APIKey, "CEREBRAS_API_KEY", "RECIPIC_API_KEY")
	setString(&c.BaseURL, "RECIPIC_BASE_URL")
	setString(&c.TextModel, "RECIPIC_TEXT_MODEL")
	setString(&c.VisionModel, "RECIPIC_VISION_MODEL")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY", "RECIPIC_GEMINI_API_KEY")
	setString(&c.GeminiModel, "RECIPIC_GEMINI_MODEL")
	setString(&c.DatabaseURL, "DATABASE_URL", "RECIPIC_DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL", "RECIPIC_REDIS_URL")
	setString(&c.LogEnv, "ENV", "RECIPIC_LOG_ENV")

	if v := os.Getenv("RECIPIC_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"RECIPIC_CHOICES", &c.Choices},
		{"RECIPIC_REQUEST_TIMEOUT_SECONDS", &c.RequestTimeoutSeconds},
		{"RECIPIC_RATE_LIMIT_PER_HOUR", &c.RateLimitPerHour},
		{"RECIPIC_MAX_TOKENS", &c.MaxTokens},
	} {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", f.key, v)
		}
		*f.dst = n
	}

	if v := os.Getenv("RECIPIC_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RECIPIC_TEMPERATURE: %q is not a number", v)
		}
		c.Temperature = t
	}
	return nil
}

// setString assigns the value of the last set variable in keys, so later
// keys take precedence.
func setString(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			errs = append(errs, errors.New("api_key is required for the openai provider (set CEREBRAS_API_KEY or RECIPIC_API_KEY)"))
		}
		if c.BaseURL == "" {
			errs = append(errs, errors.New("base_url is required for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("gemini_api_key is required for the gemini provider (set GEMINI_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("provider must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.Provider))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.Choices < 1 {
		errs = append(errs, errors.New("choices must be at least 1"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("max_tokens must not be negative"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	if c.RequestTimeoutSeconds < 1 {
		errs = append(errs, errors.New("request_timeout_seconds must be at least 1"))
	}
	if c.RedisURL != "" && c.RateLimitPerHour < 1 {
		errs = append(errs, errors.New("rate_limit_per_hour must be at least 1 when redis_url is set"))
	}
	return errors.Join(errs...)
}

// RequestTimeout is the budget for one provider call.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
