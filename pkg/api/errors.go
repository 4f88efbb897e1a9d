package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to surface it.
type Kind int

const (
	// KindValidation is a client-side check that failed before any request.
	KindValidation Kind = iota
	// KindAuthentication is an access code or token the server refused.
	KindAuthentication
	// KindTransport is a request that did not complete.
	KindTransport
	// KindRejected is a request that completed with a failure envelope.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Client call.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, 0 when no response arrived
	Op     string // e.g. "validate access"

	// Message is the server-provided explanation, if any. It is safe to
	// show to the user.
	Message string

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// UserMessage returns the server's message carried by err, or fallback
// when there is none.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
