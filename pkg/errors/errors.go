// Package errors provides custom error types for procreport.
// Callers match on the sentinel values with errors.Is and unpack the
// typed errors with errors.As to get at the provider and document involved.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Aliases for the standard library functions so callers need a single
// errors import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// Sentinel errors.
var (
	// ErrDataUnavailable indicates that a required remote document is missing,
	// empty, malformed, or lacks the requested key.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrTransport indicates a network-level failure (connection refused,
	// timeout, non-2xx status).
	ErrTransport = errors.New("transport error")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable indicates that a remote service answered with a 5xx status
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited indicates that the remote API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// DataUnavailableError reports a remote document that cannot be used to
// build a report.
type DataUnavailableError struct {
	Provider string // provider whose report needed the document
	Document string // "federation", "aggregator processes", "specification", "backend processes"
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("%s unavailable", e.Document)
	if e.Provider != "" {
		msg = fmt.Sprintf("%s unavailable for provider %s", e.Document, e.Provider)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// NewDataUnavailableError creates a new DataUnavailableError
func NewDataUnavailableError(provider, document, reason string, err error) *DataUnavailableError {
	return &DataUnavailableError{
		Provider: provider,
		Document: document,
		Reason:   reason,
		Err:      err,
	}
}

// TransportError represents a request that never produced an HTTP response.
type TransportError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrTimeout:
		var netErr net.Error
		return errors.Is(e.Err, context.DeadlineExceeded) || (errors.As(e.Err, &netErr) && netErr.Timeout())
	case ErrCanceled:
		return errors.Is(e.Err, context.Canceled)
	}
	return false
}

// NewTransportError creates a new TransportError
func NewTransportError(endpoint string, err error) *TransportError {
	return &TransportError{Endpoint: endpoint, Err: err}
}

// APIError represents a non-2xx answer from a remote API
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	source := e.Endpoint
	if e.Provider != "" {
		source = e.Provider
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrProviderUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

func newIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsDataUnavailable checks if an error is a data unavailable error
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

// IsTransport checks if an error is a network-level failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsProviderUnavailable checks if an error indicates a failing remote service
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return newIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return newParseError(format, file, err.Error(), err)
}

// WrapDataUnavailable wraps an error as a DataUnavailableError
func WrapDataUnavailable(provider, document string, err error) error {
	if err == nil {
		return nil
	}
	return NewDataUnavailableError(provider, document, "", err)
}
