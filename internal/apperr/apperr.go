// Package apperr defines the closed set of error kinds the service surfaces.
//
// Every error that crosses a package boundary is either an *Error carrying
// one of the kinds below or an unexpected error, which callers treat as
// KindUnknown. Use errors.Is against the Err* sentinels or KindOf to branch.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArgument
	KindUpstreamUnavailable
	KindDataInconsistency
	KindStore
)

// String returns the stable code used in API error bodies.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindUpstreamUnavailable:
		return "UPSTREAM_UNAVAILABLE"
	case KindDataInconsistency:
		return "DATA_INCONSISTENCY"
	case KindStore:
		return "STORE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrDataInconsistency   = &Error{Kind: KindDataInconsistency}
	ErrStore               = &Error{Kind: KindStore}
)

// Error is a classified error.
type Error struct {
	Kind   Kind
	Entity string // "link", "user", "click", a query field...
	Key    string // identifier of the entity, if any
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Key != "" {
			return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
		}
		return e.Entity + " not found"
	case KindInvalidArgument:
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Msg)
	case KindStore:
		if e.Key != "" {
			return fmt.Sprintf("store %s %s: %v", e.Entity, e.Key, e.Err)
		}
		return fmt.Sprintf("store %s: %v", e.Entity, e.Err)
	case KindUpstreamUnavailable:
		return fmt.Sprintf("%s unavailable: %v", e.Entity, e.Err)
	case KindDataInconsistency:
		return "data inconsistency: " + e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.Key == "" && t.Msg == "" && t.Err == nil
}

// NotFound reports a missing entity.
func NotFound(entity, key string) error {
	return &Error{Kind: KindNotFound, Entity: entity, Key: key}
}

// InvalidArgument reports a malformed input field.
func InvalidArgument(field, msg string) error {
	return &Error{Kind: KindInvalidArgument, Entity: field, Msg: msg}
}

// Store wraps a persistence failure with the entity name and key.
func Store(entity, key string, err error) error {
	return &Error{Kind: KindStore, Entity: entity, Key: key, Err: err}
}

// Upstream wraps a failure of an external dependency.
func Upstream(service string, err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Entity: service, Err: err}
}

// Inconsistent reports aggregate numbers that failed a cross-check.
func Inconsistent(format string, args ...any) error {
	return &Error{Kind: KindDataInconsistency, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
