// Package apperr classifies pipeline failures into configuration errors,
// provider errors, and everything else, and maps them to process exit codes.
package apperr

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Exit codes returned by the CLI.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitProvider = 3
)

// ConfigError reports a problem with the run configuration or with a local
// input file. It aborts the run before any output is produced.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a configuration error.
func NewConfigError(err error) *ConfigError {
	return &ConfigError{Err: err}
}

// ProviderError wraps a failed call to the external team data provider.
// Downstream aggregation assumes a complete roster, so any provider error
// aborts the run.
type ProviderError struct {
	Err        error
	Endpoint   string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a provider error for the given endpoint and
// optional HTTP status code (0 when the request never got a response).
func NewProviderError(err error, endpoint string, statusCode int) *ProviderError {
	return &ProviderError{Err: err, Endpoint: endpoint, StatusCode: statusCode}
}

// IsConfig reports whether err (or any error in its chain) is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsProvider reports whether err (or any error in its chain) is a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsTransient returns true if the error looks like a temporary network or
// server condition. Runs are never retried; this only drives log hints.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) && IsTransientHTTPStatus(pe.StatusCode) {
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

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// temporary server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExitCode maps an error to the CLI exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsConfig(err):
		return ExitConfig
	case IsProvider(err):
		return ExitProvider
	default:
		return ExitFailure
	}
}

// Kind returns a short label for the error class, used in logs and run records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfig(err):
		return "config"
	case IsProvider(err):
		return "provider"
	default:
		return "internal"
	}
}
