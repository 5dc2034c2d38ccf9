package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP layer and for callers that need to
// distinguish recoverable dispatch failures from permission problems.
type Kind int

const (
	KindInternal         Kind = iota // unclassified failure
	KindInvalid                      // malformed or missing input
	KindUnauthenticated              // no session or expired session
	KindNotAuthorized                // authenticated but role insufficient
	KindNotFound                     // absent, or invisible to the caller
	KindConflict                     // duplicate address/grant, self-grant, own super-admin flag
	KindAgentUnreachable             // network-level dispatch failure, host likely offline
	KindAgentRejected                // agent answered with a non-success status
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotAuthorized:
		return "not_authorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAgentUnreachable:
		return "agent_unreachable"
	case KindAgentRejected:
		return "agent_rejected"
	default:
		return "internal"
	}
}

// Error carries a Kind alongside a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a classified error with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapE wraps err with a classification.
func WrapE(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, walking the wrap chain.
// Unclassified errors report KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
