package testutils

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dalfonso89/currency-layer-proxy/internal/config"
	"github.com/dalfonso89/currency-layer-proxy/internal/logger"
)

// MockLogger creates a debug logger that discards output
func MockLogger() *logger.Logger {
	return logger.NewWithOutput("debug", io.Discard)
}

// MockLoggerWithHook creates a logger whose entries can be inspected through the returned hook
func MockLoggerWithHook() (*logger.Logger, *test.Hook) {
	log := MockLogger()
	hook := test.NewLocal(log.Logger)
	return log, hook
}

// ErrorEntries returns the error level entries captured by hook
func ErrorEntries(hook *test.Hook) []logrus.Entry {
	var entries []logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			entries = append(entries, *entry)
		}
	}
	return entries
}

// MockConfig creates a mock configuration pointing at upstreamURL
func MockConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Port:     "8081",
		LogLevel: "debug",

		CurrencyAPI: config.CurrencyAPI{
			BaseURL: upstreamURL,
			APIKey:  "test-api-key",
			Timeout: 2 * time.Second,
		},

		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,

		MetricsEnabled: true,
	}
}
