package api

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports an unusable endpoint or environment configuration.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("configuration error: %s", e.Reason)
	case e.Reason == "":
		return fmt.Sprintf("configuration error: %v", e.Err)
	default:
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// CallerError reports arguments that do not satisfy an operation's parameter contract.
type CallerError struct {
	Operation string
	Reason    string
}

func (e *CallerError) Error() string {
	if e.Operation == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// ArityError is the CallerError raised when the argument count is wrong.
type ArityError struct {
	Operation string
	Want      int
	Got       int
	Params    []string
}

func (e *ArityError) Error() string {
	msg := fmt.Sprintf("%s: expected %d argument(s), got %d", e.Operation, e.Want, e.Got)
	if len(e.Params) > 0 {
		msg += " (" + strings.Join(e.Params, ", ") + ")"
	}
	return msg
}

// TransportError wraps a failure raised by the HTTP transport itself.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response body that could not be parsed as JSON.
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: unexpected API response format (JSON decode failed): %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// APIError represents an error response from the API. It is only produced by
// CheckStatus; operations return non-2xx responses as data.
type APIError struct {
	StatusCode int
	Body       string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// IsConfigurationError checks if the error is a configuration error.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsCallerError checks if the error was caused by bad call arguments,
// including arity mismatches.
func IsCallerError(err error) bool {
	var e *CallerError
	if errors.As(err, &e) {
		return true
	}
	return IsArityError(err)
}

// IsArityError checks if the error is an argument count mismatch.
func IsArityError(err error) bool {
	var e *ArityError
	return errors.As(err, &e)
}

// IsTransportError checks if the error came from the transport.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsDecodeError checks if the error is a JSON decode failure.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// IsAPIError checks if the error is a non-2xx API response.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 ||
			strings.Contains(strings.ToLower(apiErr.Body), "not found")
	}
	return false
}
