package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalfonso89/currency-layer-proxy/internal/models"
	"github.com/dalfonso89/currency-layer-proxy/internal/service"
	"github.com/dalfonso89/currency-layer-proxy/internal/testutils"
)

const unavailableBody = `{"error":{"message":"Currency API is not available","code":502}}`

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires the real currency API service against upstreamURL
func newTestRouter(upstreamURL string) (*gin.Engine, *test.Hook) {
	log, hook := testutils.MockLoggerWithHook()
	cfg := testutils.MockConfig(upstreamURL)

	handlers := NewHandlers(HandlerConfig{
		Logger:         log,
		CurrencyAPI:    service.NewCurrencyAPIService(cfg.CurrencyAPI, log),
		MetricsEnabled: true,
	})
	return handlers.SetupRoutes(), hook
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestNewHandlers(t *testing.T) {
	log := testutils.MockLogger()
	handlers := NewHandlers(HandlerConfig{Logger: log})

	require.NotNil(t, handlers)
	assert.Same(t, log, handlers.logger)
	assert.False(t, handlers.startTime.IsZero())
}

func TestHandlers_HealthCheck(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	router, _ := newTestRouter(upstream.URL())

	w := get(router, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var response models.HealthCheck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, Version, response.Version)
	assert.NotEmpty(t, response.Uptime)
	assert.Empty(t, upstream.Requests(), "health check must not call the currency API")
}

func TestHandlers_GetCurrency_Success(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	router, hook := newTestRouter(upstream.URL())

	w := get(router, "/api/currency1?from=USD&to=EUR&amount=10")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"success":true,"result":9.32}`, w.Body.String())
	assert.Equal(t, jsonContentType, w.Header().Get("Content-Type"))
	assert.Empty(t, testutils.ErrorEntries(hook))

	requests := upstream.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "from=USD&to=EUR&amount=10", requests[0].RawQuery)
	assert.Equal(t, "test-api-key", requests[0].Header.Get(service.APIKeyHeader))
}

func TestHandlers_GetCurrency_ForwardsQueryExactly(t *testing.T) {
	rawQueries := []string{
		"",
		"from=USD",
		"to=EUR&from=USD&amount=10",
		"symbols=USD,GBP,JPY&base=EUR",
		"x-custom=a+b%26c%3Dd&date=2024-01-31&amount=10&to=EUR&from=USD",
		"repeat=2&empty=&repeat=1",
		"from=USD;x&to=EUR",
		"from=U%zzSD&to=EUR",
		"note=a%20b&flag&to=EUR",
	}

	for _, rawQuery := range rawQueries {
		t.Run(rawQuery, func(t *testing.T) {
			upstream := testutils.NewMockCurrencyServer()
			defer upstream.Close()
			router, hook := newTestRouter(upstream.URL())

			w := get(router, "/api/currency1?"+rawQuery)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, testutils.ErrorEntries(hook))

			requests := upstream.Requests()
			require.Len(t, requests, 1)
			assert.Equal(t, rawQuery, requests[0].RawQuery)
			assert.Equal(t, "test-api-key", requests[0].Header.Get(service.APIKeyHeader))
		})
	}
}

func TestHandlers_GetCurrency_UpstreamErrorStatusForwardedAsOK(t *testing.T) {
	for _, statusCode := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(statusCode), func(t *testing.T) {
			upstream := testutils.NewMockCurrencyServer()
			defer upstream.Close()
			body := `{"success":false,"error":{"code":101,"info":"invalid access key"}}`
			upstream.SetResponse(statusCode, body)
			router, hook := newTestRouter(upstream.URL())

			w := get(router, "/api/currency1?from=USD")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, body, w.Body.String())
			assert.Empty(t, testutils.ErrorEntries(hook))
		})
	}
}

func TestHandlers_GetCurrency_ConnectionRefused(t *testing.T) {
	router, hook := newTestRouter(testutils.ClosedServerURL(t))

	w := get(router, "/api/currency1?from=USD&to=EUR&amount=10")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, unavailableBody, w.Body.String())
	assert.Equal(t, jsonContentType, w.Header().Get("Content-Type"))

	errorEntries := testutils.ErrorEntries(hook)
	require.Len(t, errorEntries, 1)
	assert.Equal(t, "transport", errorEntries[0].Data["error_kind"])
	assert.Contains(t, errorEntries[0].Message, "failed to make request")
	assert.NotEmpty(t, errorEntries[0].Data["request_id"])
}

func TestHandlers_GetCurrency_InvalidJSON(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	upstream.SetResponse(http.StatusOK, "<html>Bad Gateway</html>")
	router, hook := newTestRouter(upstream.URL())

	w := get(router, "/api/currency1?from=USD")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, unavailableBody, w.Body.String())

	errorEntries := testutils.ErrorEntries(hook)
	require.Len(t, errorEntries, 1)
	assert.Equal(t, "decode", errorEntries[0].Data["error_kind"])
	assert.Equal(t, http.StatusOK, errorEntries[0].Data["upstream_status"])
}

func TestHandlers_GetCurrency_SameContentTypeForSuccessAndFailure(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	router, _ := newTestRouter(upstream.URL())

	ok := get(router, "/api/currency1?from=USD")
	upstream.SetResponse(http.StatusOK, "not json")
	failed := get(router, "/api/currency1?from=USD")

	require.Equal(t, http.StatusOK, ok.Code)
	require.Equal(t, http.StatusBadGateway, failed.Code)
	assert.Equal(t, ok.Header().Get("Content-Type"), failed.Header().Get("Content-Type"))
}

func TestHandlers_GetCurrency_KeyNeverLogged(t *testing.T) {
	router, hook := newTestRouter(testutils.ClosedServerURL(t))

	get(router, "/api/currency1?from=USD")

	for _, entry := range hook.AllEntries() {
		line, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "test-api-key")
	}
}

func TestHandlers_GetCurrency_Idempotent(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	router, _ := newTestRouter(upstream.URL())

	first := get(router, "/api/currency1?from=USD&to=EUR&amount=10")
	for i := 0; i < 5; i++ {
		next := get(router, "/api/currency1?from=USD&to=EUR&amount=10")
		assert.Equal(t, first.Code, next.Code)
		assert.Equal(t, first.Body.String(), next.Body.String())
	}
	assert.Len(t, upstream.Requests(), 6)
}

func TestHandlers_GetCurrency_ConcurrentRequestsAreIndependent(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	router, _ := newTestRouter(upstream.URL())

	const numRequests = 25
	var wg sync.WaitGroup
	codes := make(chan int, numRequests)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- get(router, "/api/currency1?from=USD&to=EUR").Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	// one outbound call per inbound call, nothing shared or collapsed
	assert.Len(t, upstream.Requests(), numRequests)
}

func TestHandlers_Metrics(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()
	router, _ := newTestRouter(upstream.URL())

	get(router, "/api/currency1?from=USD")
	w := get(router, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "currency_proxy_upstream_requests_total"))
}

func TestHandlers_MetricsDisabled(t *testing.T) {
	handlers := NewHandlers(HandlerConfig{Logger: testutils.MockLogger()})

	w := get(handlers.SetupRoutes(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// stubForwarder returns a canned result without any network
type stubForwarder struct {
	response *service.UpstreamResponse
	err      error
	queries  []string
}

func (s *stubForwarder) Forward(ctx context.Context, rawQuery string) (*service.UpstreamResponse, error) {
	s.queries = append(s.queries, rawQuery)
	return s.response, s.err
}

func TestHandlers_GetCurrency_UnclassifiedError(t *testing.T) {
	log, hook := testutils.MockLoggerWithHook()
	forwarder := &stubForwarder{err: assert.AnError}
	handlers := NewHandlers(HandlerConfig{Logger: log, CurrencyAPI: forwarder})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/currency1?to=JPY&from=USD;x", nil)

	handlers.GetCurrency(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, unavailableBody, w.Body.String())
	require.Len(t, forwarder.queries, 1)
	assert.Equal(t, "to=JPY&from=USD;x", forwarder.queries[0])

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "unknown", entry.Data["error_kind"])
	assert.Equal(t, assert.AnError.Error(), entry.Message)
}
