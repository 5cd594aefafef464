package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/dalfonso89/currency-layer-proxy/internal/api"
	"github.com/dalfonso89/currency-layer-proxy/internal/config"
	"github.com/dalfonso89/currency-layer-proxy/internal/logger"
	"github.com/dalfonso89/currency-layer-proxy/internal/platform"
	"github.com/dalfonso89/currency-layer-proxy/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	if cfg.CurrencyAPI.APIKey == "" {
		logger.Warn("CURRENCY_API_KEY is empty, upstream calls will carry an empty apikey header")
	}

	gin.SetMode(gin.ReleaseMode)
	server := newServer(cfg, logger)

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatalf("Failed to listen on %s: %v", server.Addr, err)
	}

	// Create a shutdown context that works across platforms
	shutdownCtx, stop := platform.NewShutdownContext(context.Background())
	defer stop()

	if err := serve(shutdownCtx, server, listener, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatalf("Server stopped with error: %v", err)
	}

	logger.Info("Server exited")
}

// newServer wires the currency proxy into an HTTP server
func newServer(cfg *config.Config, logger *logger.Logger) *http.Server {
	currencyAPI := service.NewCurrencyAPIService(cfg.CurrencyAPI, logger)

	handlers := api.NewHandlers(api.HandlerConfig{
		Logger:         logger,
		CurrencyAPI:    currencyAPI,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.SetupRoutes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// serve runs server on listener until ctx is done, then gives outstanding requests shutdownTimeout to finish
func serve(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, logger *logger.Logger) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("Starting currency proxy on %s", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
