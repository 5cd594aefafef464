package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dalfonso89/currency-layer-proxy/internal/config"
	"github.com/dalfonso89/currency-layer-proxy/internal/logger"
	"github.com/dalfonso89/currency-layer-proxy/internal/metrics"
)

// APIKeyHeader is the header the upstream currency API reads the secret key from
const APIKeyHeader = "apikey"

// MaxUpstreamBodyBytes caps how much of an upstream body is read
const MaxUpstreamBodyBytes = 10 << 20

// UpstreamResponse is a successfully received upstream reply.
// Body is valid JSON and is kept byte-for-byte as sent.
type UpstreamResponse struct {
	StatusCode int
	Body       []byte
}

// CurrencyAPIService forwards queries to the upstream currency exchange API
type CurrencyAPIService struct {
	configuration config.CurrencyAPI
	logger        *logger.Logger
	httpClient    *http.Client
}

// NewCurrencyAPIService creates a new currency API service
func NewCurrencyAPIService(configuration config.CurrencyAPI, logger *logger.Logger) *CurrencyAPIService {
	httpTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}
	return &CurrencyAPIService{
		configuration: configuration,
		logger:        logger,
		httpClient:    &http.Client{Timeout: configuration.Timeout, Transport: httpTransport},
	}
}

// Forward issues exactly one GET to the upstream API carrying rawQuery byte-for-byte and the API key.
// The upstream status code does not decide success: any response whose body is JSON is returned.
func (apiService *CurrencyAPIService) Forward(ctx context.Context, rawQuery string) (*UpstreamResponse, error) {
	startTime := time.Now()

	upstreamResponse, err := apiService.forward(ctx, rawQuery)

	var statusCode int
	if upstreamResponse != nil {
		statusCode = upstreamResponse.StatusCode
	}
	metrics.ObserveUpstream(outcomeOf(err), statusCode, time.Since(startTime))

	if err != nil {
		// upstreamResponse is still set when the upstream answered, so callers can log its status
		return upstreamResponse, err
	}

	if statusCode < 200 || statusCode > 299 {
		apiService.logger.Warnf("Currency API answered with status %d, forwarding body as success", statusCode)
	}

	return upstreamResponse, nil
}

func (apiService *CurrencyAPIService) forward(ctx context.Context, rawQuery string) (*UpstreamResponse, error) {
	requestURL, err := apiService.buildURL(rawQuery)
	if err != nil {
		return nil, transportError("failed to build request URL", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, transportError("failed to create request", err)
	}
	request.Header.Set(APIKeyHeader, apiService.configuration.APIKey)
	request.Header.Set("Accept", "application/json")

	apiService.logger.Debugf("Forwarding currency query of %d bytes", len(rawQuery))

	response, err := apiService.httpClient.Do(request)
	if err != nil {
		return nil, transportError("failed to make request", err)
	}
	defer response.Body.Close()

	upstreamResponse := &UpstreamResponse{StatusCode: response.StatusCode}

	body, err := io.ReadAll(io.LimitReader(response.Body, MaxUpstreamBodyBytes+1))
	if err != nil {
		return upstreamResponse, transportError("failed to read response body", err)
	}
	if len(body) > MaxUpstreamBodyBytes {
		return upstreamResponse, decodeError(fmt.Sprintf("response body exceeds %d bytes", MaxUpstreamBodyBytes), nil)
	}
	if !json.Valid(body) {
		return upstreamResponse, decodeError(fmt.Sprintf("response body is not valid JSON (status %d)", response.StatusCode), nil)
	}

	upstreamResponse.Body = body
	return upstreamResponse, nil
}

// buildURL replaces the configured URL's query string with the caller's, unparsed so order and odd pairs survive
func (apiService *CurrencyAPIService) buildURL(rawQuery string) (string, error) {
	parsedURL, err := url.Parse(apiService.configuration.BaseURL)
	if err != nil {
		return "", err
	}
	parsedURL.RawQuery = rawQuery
	return parsedURL.String(), nil
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var proxyError *ProxyError
	if errors.As(err, &proxyError) && proxyError.Kind == ErrorKindDecode {
		return metrics.OutcomeDecodeError
	}
	return metrics.OutcomeTransportError
}
