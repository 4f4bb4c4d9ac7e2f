package aggregator

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/pagination"
)

// Errors returned by the Service.
var (
	// ErrUpstreamUnavailable is returned when a count probe or page fetch
	// against an upstream fails.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound is returned when a single-item lookup finds nothing.
	ErrNotFound = errors.New("event not found")

	// ErrUnknownSource is returned for a source id that is not registered.
	ErrUnknownSource = errors.New("unknown source")

	// ErrInvalidAllocationInput is returned for limit <= 0 or page <= 0.
	ErrInvalidAllocationInput = pagination.ErrInvalidInput
)

// Operations recorded in SourceError.
const (
	OpCount     = "count"
	OpFetch     = "fetch"
	OpNormalize = "normalize"
	OpGet       = "get"
)

// SourceError describes a failed call against one upstream.
// It matches both ErrUpstreamUnavailable and the underlying cause.
type SourceError struct {
	Source event.SourceID
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SourceError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

func sourceError(source event.SourceID, op string, err error) error {
	return &SourceError{Source: source, Op: op, Err: err}
}
