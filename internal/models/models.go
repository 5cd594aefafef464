package models

import (
	"net/http"
	"time"
)

// UpstreamUnavailableMessage is the fixed message returned when the currency API cannot be used
const UpstreamUnavailableMessage = "Currency API is not available"

type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// NewUpstreamUnavailable builds the 502 payload sent for every upstream failure
func NewUpstreamUnavailable() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Message: UpstreamUnavailableMessage,
			Code:    http.StatusBadGateway,
		},
	}
}

type HealthCheck struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}
