package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CurrencyAPI holds the upstream currency exchange API settings
type CurrencyAPI struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string

	CurrencyAPI CurrencyAPI

	// HTTP server
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	MetricsEnabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CurrencyAPI: CurrencyAPI{
			BaseURL: getEnv("CURRENCY_API_URL", ""),
			APIKey:  getEnv("CURRENCY_API_KEY", ""),
			Timeout: seconds(getEnv("CURRENCY_API_TIMEOUT_SECONDS", "30"), 30),
		},

		ReadTimeout:     seconds(getEnv("SERVER_READ_TIMEOUT_SECONDS", "15"), 15),
		WriteTimeout:    seconds(getEnv("SERVER_WRITE_TIMEOUT_SECONDS", "45"), 45),
		ShutdownTimeout: seconds(getEnv("SHUTDOWN_TIMEOUT_SECONDS", "30"), 30),

		MetricsEnabled: getEnv("METRICS_ENABLED", "true") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The server must outlive the upstream call or the 502 payload never reaches the caller.
	if minimumWrite := cfg.CurrencyAPI.Timeout + 5*time.Second; cfg.WriteTimeout < minimumWrite {
		cfg.WriteTimeout = minimumWrite
	}

	return cfg, nil
}

// Validate reports every configuration problem at once
func (cfg *Config) Validate() error {
	var problems []string

	if cfg.CurrencyAPI.BaseURL == "" {
		problems = append(problems, "CURRENCY_API_URL is not set")
	} else if parsedURL, err := url.Parse(cfg.CurrencyAPI.BaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("invalid CURRENCY_API_URL: %s", err))
	} else if (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		problems = append(problems, fmt.Sprintf("CURRENCY_API_URL must be an absolute http(s) URL, got %q", cfg.CurrencyAPI.BaseURL))
	}

	if cfg.CurrencyAPI.Timeout <= 0 {
		problems = append(problems, "CURRENCY_API_TIMEOUT_SECONDS must be positive")
	}

	if len(problems) > 0 {
		return errors.New("configuration errors: " + strings.Join(problems, "; "))
	}
	return nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func mustAtoi(s string, fallback int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

func seconds(s string, fallback int) time.Duration {
	return time.Duration(mustAtoi(s, fallback)) * time.Second
}
