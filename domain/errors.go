package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInteractionHistory is never returned to callers; generators answer with an empty list.
	ErrNoInteractionHistory = errors.New("no interaction history")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBothSourcesFailed means neither collaborative nor content scoring produced a result.
	ErrBothSourcesFailed = errors.New("both recommendation sources failed")

	ErrInvalidAlgorithm   = errors.New("invalid algorithm")
	ErrInvalidInteraction = errors.New("invalid interaction")
	ErrNotFound           = errors.New("not found")
)

// ProviderError is a malformed or rejected embedding provider response.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TransportError is a network, timeout or overload failure; retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("embedding transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PersistenceError carries a scored batch whose write failed, so the caller can retry the save.
type PersistenceError struct {
	Recommendations []Recommendation
	Err             error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %d recommendations: %v", len(e.Recommendations), e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// AsPersistenceError returns the attached batch when err is a persistence failure.
func AsPersistenceError(err error) (*PersistenceError, bool) {
	var target *PersistenceError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
