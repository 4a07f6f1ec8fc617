// Package errx labels pinboard failures with the operation that raised them
// and a Kind.
//
// Repositories translate storage failures at the boundary: a missing row
// becomes NotFound, a unique violation on (user_id, url) becomes Conflict
// around a *pin.DuplicateError, and a lost connection becomes Unavailable.
// Services add their own causes (*validation.Error under Invalid, a denied
// access.Control check under Forbidden or Unauthorized) and re-label
// repository errors with Wrap so the kind survives while Op names the
// service method. httpx.WriteServiceError reads the kind for the status
// and uses errors.As on the cause for response details.
package errx

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Conflict
	Invalid
	Unauthorized
	Forbidden
	Unavailable
	Internal
)

// Error carries the operation that failed, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E builds an *Error. It returns nil for a nil err so call sites can wrap
// unconditionally.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// Wrap re-labels err with a new op while keeping its kind.
func Wrap(op string, err error) error {
	return E(op, KindOf(err), err)
}

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case Invalid:
		return "Invalid"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case Unavailable:
		return "Unavailable"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
