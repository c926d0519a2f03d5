// Package resilience provides the pipeline's error taxonomy and retry
// support for external service calls.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/simargl-labs/content-pipeline/internal/model"
)

// ValidationError marks a terminal failure: the entity is malformed or
// missing and retrying can never succeed. Stage workers persist FAILED and
// swallow the error so the scheduler does not retry.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps err as a terminal validation failure.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// QuotaExceededError is retryable and carries the violated dimension plus
// an explicit wait hint from the ledger or the provider.
type QuotaExceededError struct {
	Model       string
	Dimension   model.QuotaDimension
	WaitSeconds int
}

func (e *QuotaExceededError) Error() string {
	return "quota exceeded for " + e.Model + " (" + string(e.Dimension) + ")"
}

// OverloadError is retryable and signals the model itself is temporarily
// unusable (503-style rejection), distinct from a hard quota denial.
type OverloadError struct {
	Model string
	Err   error
}

func (e *OverloadError) Error() string { return e.Err.Error() }
func (e *OverloadError) Unwrap() error { return e.Err }

// TransientError wraps an error that is safe to retry (e.g., 5xx, network
// timeout) with an optional HTTP status code.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// ParseError is non-fatal: the caller degrades to a best-effort fallback
// value (e.g., storing raw text instead of structured JSON).
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// IsValidation reports whether err is terminal.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsOverload reports whether err carries an explicit overload signal.
func IsOverload(err error) bool {
	var oe *OverloadError
	if errors.As(err, &oe) {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "service unavailable")
}

// IsQuota reports whether err is a quota denial, returning the typed error.
func IsQuota(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns
// (network timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var oe *OverloadError
	if errors.As(err, &oe) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
