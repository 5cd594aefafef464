package testutils

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// RecordedRequest is what the mock currency API saw for one call
type RecordedRequest struct {
	Method   string
	Path     string
	Query    url.Values
	RawQuery string
	Header   http.Header
}

// MockCurrencyServer stubs the upstream currency API and records the requests it receives.
// Recording is on by default; long-running callers such as benchmarks turn it off.
type MockCurrencyServer struct {
	server *httptest.Server

	mu          sync.Mutex
	statusCode  int
	body        []byte
	recording   bool
	requestHits int
	requests    []RecordedRequest
}

// NewMockCurrencyServer starts a stub answering 200 with a conversion payload
func NewMockCurrencyServer() *MockCurrencyServer {
	mock := &MockCurrencyServer{
		statusCode: http.StatusOK,
		body:       []byte(`{"success":true,"result":9.32}`),
		recording:  true,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handler))
	return mock
}

// SetResponse changes what the stub answers from now on
func (m *MockCurrencyServer) SetResponse(statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = statusCode
	m.body = []byte(body)
}

// Requests returns a copy of all recorded requests
func (m *MockCurrencyServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// SetRecording turns request recording on or off. Calls are still counted in Hits.
func (m *MockCurrencyServer) SetRecording(recording bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = recording
}

// ResetRequests drops everything recorded so far
func (m *MockCurrencyServer) ResetRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.requestHits = 0
}

// Hits returns how many requests the stub has answered since start or the last reset
func (m *MockCurrencyServer) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestHits
}

// URL returns the stub's base URL
func (m *MockCurrencyServer) URL() string {
	return m.server.URL + "/currency_data/convert"
}

// Close shuts the stub down
func (m *MockCurrencyServer) Close() {
	m.server.Close()
}

func (m *MockCurrencyServer) handler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestHits++
	if m.recording {
		m.requests = append(m.requests, RecordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			Query:    r.URL.Query(),
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
		})
	}
	statusCode, body := m.statusCode, m.body
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

// ClosedServerURL returns a URL on a port nothing listens on, for connection refused cases
func ClosedServerURL(t testing.TB) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	address := listener.Addr().String()
	listener.Close()
	return "http://" + address + "/currency_data/convert"
}
