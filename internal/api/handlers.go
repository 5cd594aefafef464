package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dalfonso89/currency-layer-proxy/internal/logger"
	"github.com/dalfonso89/currency-layer-proxy/internal/middleware"
	"github.com/dalfonso89/currency-layer-proxy/internal/models"
	"github.com/dalfonso89/currency-layer-proxy/internal/service"
)

// Version is reported by the health check
const Version = "1.0.0"

// jsonContentType matches what gin's JSON renderer sets, so relayed and error bodies look alike
const jsonContentType = "application/json; charset=utf-8"

// CurrencyForwarder sends a raw, undecoded query string upstream
type CurrencyForwarder interface {
	Forward(ctx context.Context, rawQuery string) (*service.UpstreamResponse, error)
}

// HandlerConfig holds the collaborators the handlers need
type HandlerConfig struct {
	Logger         *logger.Logger
	CurrencyAPI    CurrencyForwarder
	MetricsEnabled bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logger         *logger.Logger
	currencyAPI    CurrencyForwarder
	metricsEnabled bool
	startTime      time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(handlerConfig HandlerConfig) *Handlers {
	return &Handlers{
		logger:         handlerConfig.Logger,
		currencyAPI:    handlerConfig.CurrencyAPI,
		metricsEnabled: handlerConfig.MetricsEnabled,
		startTime:      time.Now(),
	}
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/api/currency1", handlers.GetCurrency)

	if handlers.metricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}

// HealthCheck reports liveness without touching the paid upstream API
func (handlers *Handlers) HealthCheck(context *gin.Context) {
	context.JSON(http.StatusOK, models.HealthCheck{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(handlers.startTime).String(),
	})
}

// GetCurrency forwards the caller's query string to the currency API and relays its JSON body.
// The query is passed on as received, never parsed and re-encoded.
func (handlers *Handlers) GetCurrency(context *gin.Context) {
	upstreamResponse, forwardError := handlers.currencyAPI.Forward(context.Request.Context(), context.Request.URL.RawQuery)
	if forwardError != nil {
		handlers.logUpstreamFailure(context, upstreamResponse, forwardError)
		context.JSON(http.StatusBadGateway, models.NewUpstreamUnavailable())
		return
	}

	context.Data(http.StatusOK, jsonContentType, upstreamResponse.Body)
}

func (handlers *Handlers) logUpstreamFailure(context *gin.Context, upstreamResponse *service.UpstreamResponse, forwardError error) {
	fields := logrus.Fields{
		"request_id": context.GetString(middleware.RequestIDKey),
		"error_kind": "unknown",
	}

	var proxyError *service.ProxyError
	if errors.As(forwardError, &proxyError) {
		fields["error_kind"] = proxyError.Kind.String()
	}
	if upstreamResponse != nil {
		fields["upstream_status"] = upstreamResponse.StatusCode
	}

	handlers.logger.WithFields(fields).Error(forwardError.Error())
}
