// Package util provides the global logger and common error types.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors for store and session failures
var (
	ErrUnknownKey     = errors.New("unknown configuration key")
	ErrUnknownID      = errors.New("unknown configuration id")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrNotLoaded      = errors.New("configuration not loaded in this session")
	ErrReadOnly       = errors.New("configuration loaded read-only")
	ErrStoreFailure   = errors.New("store failure")
	ErrBadRequest     = errors.New("malformed request")
)

// StoreError wraps a database failure with the operation that caused it
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return ErrStoreFailure
}

// NewStoreError creates a store error for the given operation
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// RequestError represents a request that failed a dispatch precondition
type RequestError struct {
	Request string
	Reason  string
	Kind    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s: %s", e.Request, e.Reason)
}

func (e *RequestError) Unwrap() error {
	return e.Kind
}

// NewRequestError creates a request error of the given kind
func NewRequestError(request, reason string, kind error) *RequestError {
	return &RequestError{Request: request, Reason: reason, Kind: kind}
}
