package main

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalfonso89/currency-layer-proxy/internal/testutils"
)

func TestCalculatePercentile(t *testing.T) {
	times := []time.Duration{5, 1, 4, 2, 3, 10, 9, 8, 7, 6}

	assert.Equal(t, time.Duration(10), calculatePercentile(times, 95))
	assert.Equal(t, time.Duration(6), calculatePercentile(times, 50))
	assert.Zero(t, calculatePercentile(nil, 95))
}

func TestProcessResults_CountsBadGateway(t *testing.T) {
	results := make(chan LoadTestResult, 3)
	results <- LoadTestResult{StatusCode: http.StatusOK, Success: true, Duration: time.Millisecond}
	results <- LoadTestResult{StatusCode: http.StatusBadGateway, Duration: 3 * time.Millisecond}
	results <- LoadTestResult{StatusCode: http.StatusOK, Success: true, Duration: 2 * time.Millisecond}
	close(results)

	summary := processResults(results, time.Second)

	assert.Equal(t, 3, summary.TotalRequests)
	assert.Equal(t, 2, summary.SuccessfulRequests)
	assert.Equal(t, 1, summary.FailedRequests)
	assert.Equal(t, 1, summary.BadGatewayRequests)
	assert.Equal(t, time.Millisecond, summary.MinResponseTime)
	assert.Equal(t, 3*time.Millisecond, summary.MaxResponseTime)
	assert.Equal(t, 2*time.Millisecond, summary.AverageResponseTime)
}

func TestRootCommand_RunsAgainstServer(t *testing.T) {
	upstream := testutils.NewMockCurrencyServer()
	defer upstream.Close()

	var out bytes.Buffer
	command := newRootCommand()
	command.SetOut(&out)
	command.SetArgs([]string{
		"--url", upstream.URL() + "?from=USD",
		"--users", "2",
		"--requests", "3",
		"--rampup", "0",
		"--think", "0",
	})

	require.NoError(t, command.Execute())
	assert.Contains(t, out.String(), "Total Requests: 6")
	assert.Len(t, upstream.Requests(), 6)
}

func TestRootCommand_RejectsNonPositiveUsers(t *testing.T) {
	command := newRootCommand()
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"--users", "0"})

	assert.Error(t, command.Execute())
}
