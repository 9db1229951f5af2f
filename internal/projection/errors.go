package projection

import (
	"fmt"
	"time"
)

// OracleError is a non-2xx response from a remote projection oracle.
type OracleError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *OracleError) Error() string {
	msg := fmt.Sprintf("oracle error: status=%d", e.StatusCode)
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.RequestID != "" {
		msg += " request_id=" + e.RequestID
	}
	if e.Message != "" {
		msg += " message=" + e.Message
	}
	return msg
}

// RateLimitError indicates a 429 that outlived the retry budget.
type RateLimitError struct {
	*OracleError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.OracleError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.OracleError.Error())
}

func (e *RateLimitError) Unwrap() error { return e.OracleError }

// UnreachableError indicates the oracle could not be contacted at all.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("oracle unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("oracle unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
