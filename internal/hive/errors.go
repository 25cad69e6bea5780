package hive

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrInvalidQuery indicates that a discussion query was rejected before any request was made.
var ErrInvalidQuery = errors.New("hive: invalid discussion query")

// NetworkError reports a transport-level failure talking to the remote API.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("hive: %s request timeout: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("hive: %s network failure: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was caused by an expired deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// UpstreamError reports a failure returned by the remote API itself.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Code       int64
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("hive: %s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hive: %s failed: %s", e.Operation, e.Message)
}
