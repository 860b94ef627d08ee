package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrTimeout is returned by the bounded call wrapper when the transport
// does not answer within the deadline.
var ErrTimeout = errors.New("generation call timed out")

var errNoChoices = errors.New("generation API returned no choices")

// CallError wraps a generation-API failure with its retryability.
// Authentication failures and malformed requests are final; timeouts,
// rate limits, server errors and connection resets are worth retrying.
type CallError struct {
	Retryable bool
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("generation call failed: %v", e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// classifyError maps a raw transport error onto the retry taxonomy.
func classifyError(err error) *CallError {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Retryable: true, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &CallError{Retryable: true, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &CallError{Retryable: true, Err: err}
		default:
			// 401, 403, 400 and friends: retrying cannot help.
			return &CallError{Retryable: false, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallError{Retryable: true, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &CallError{Retryable: true, Err: err}
	}

	// Unknown transport failures get one more chance.
	return &CallError{Retryable: true, Err: err}
}

// IsRetryable reports whether err should consume another retry attempt.
func IsRetryable(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Retryable
	}
	return false
}
