package service

import "fmt"

// ErrorKind classifies why an upstream call did not produce a usable response
type ErrorKind int

const (
	// ErrorKindTransport covers DNS, connect, timeout and body read failures
	ErrorKindTransport ErrorKind = iota
	// ErrorKindDecode means a response arrived but its body is not JSON
	ErrorKindDecode
)

func (kind ErrorKind) String() string {
	switch kind {
	case ErrorKindTransport:
		return "transport"
	case ErrorKindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ProxyError represents an upstream failure with its classification
type ProxyError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProxyError) Unwrap() error {
	return e.Cause
}

func transportError(message string, cause error) *ProxyError {
	return &ProxyError{Kind: ErrorKindTransport, Message: message, Cause: cause}
}

func decodeError(message string, cause error) *ProxyError {
	return &ProxyError{Kind: ErrorKindDecode, Message: message, Cause: cause}
}
