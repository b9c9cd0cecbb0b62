// Package llm abstracts the external language model behind a narrow
// capability interface so the pipeline stays deterministic and mockable.
// The service never keeps state on the model side; all context travels in
// the request.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Request struct {
	System      string
	User        string
	Temperature float64
}

type Client interface {
	// Complete sends one prompt and returns the model's raw text reply.
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the provider and model for logs and transparency.
	Name() string
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model API error (status %d): %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err looks like a transport-level failure worth
// retrying: timeouts, connection errors, 5xx and rate-limit statuses.
// Content-level problems (malformed replies) are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
