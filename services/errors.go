package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation rejects a single envelope or request; never the channel.
	ErrValidation = errors.New("validation error")
	// ErrUnknownChild means the child token does not resolve.
	ErrUnknownChild = errors.New("unknown child_hash")
	// ErrCatalogLookup is absorbed by the catalog fallback.
	ErrCatalogLookup = errors.New("catalog lookup failed")
	// ErrGeocode is absorbed by the numeric location label.
	ErrGeocode = errors.New("reverse geocoding failed")
	// ErrStorage wraps unexpected persistence failures.
	ErrStorage = errors.New("storage error")
)

// ValidationError names the fields an envelope must carry.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s required", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func requiredFields(fields ...string) error {
	return &ValidationError{Fields: fields}
}

func invalidField(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
