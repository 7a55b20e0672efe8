package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// Connection errors
	ErrConnectionClosed   = errors.New("rabbitmq: connection is closed")
	ErrConnectionNotReady = errors.New("rabbitmq: connection not ready")
	ErrMaxRetriesExceeded = errors.New("rabbitmq: maximum reconnection attempts exceeded")
	ErrConnectionTimeout  = errors.New("rabbitmq: connection timeout")

	// Call errors
	ErrClientClosed = errors.New("rabbitmq: client is closed")
	ErrNoReplyTo    = errors.New("rabbitmq: request has no reply address")
	ErrBadMessage   = errors.New("rabbitmq: malformed message")
)

// ConnectionError represents a connection-related error
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
	Attempts  int       // Number of attempts made
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("rabbitmq connection error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RemoteError is a failure reported by the server for one call
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rabbitmq: remote %s failed: %s", e.Method, e.Message)
}

// CallError reports a call that could not be completed over the transport
type CallError struct {
	Method        string
	CorrelationID string
	Op            string // encode, publish, await or decode
	Err           error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rabbitmq call error: %s %s (correlationId=%s): %v", e.Op, e.Method, e.CorrelationID, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// SanitizeURL removes the password from connection URLs
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
