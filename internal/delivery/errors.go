package delivery

import (
	"errors"
	"fmt"
)

// Kind classifies a failed delivery.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindForbidden
	KindBadRequest
	KindServerError
	KindNetwork
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	case KindServerError:
		return "server_error"
	case KindNetwork:
		return "network"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is a classified delivery failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return "delivery unauthorized: credential invalid or expired, re-register the agent"
	case KindForbidden:
		return "delivery forbidden: credential revoked"
	case KindBadRequest:
		return fmt.Sprintf("delivery rejected: bad request: %s", e.Detail)
	case KindServerError:
		return fmt.Sprintf("delivery failed: server error (status %d)", e.StatusCode)
	case KindNetwork:
		return fmt.Sprintf("delivery failed: network error: %v", e.Err)
	default:
		return fmt.Sprintf("delivery failed: unexpected status %d: %s", e.StatusCode, e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
func (e *Error) Transient() bool {
	return e.Kind == KindServerError || e.Kind == KindNetwork
}

// IsKind reports whether err is a delivery Error of kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// IsTransient reports whether err is a delivery failure worth retrying.
// Errors that are not delivery errors are not transient.
func IsTransient(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Transient()
}

// Outcome returns a low-cardinality label for err, "success" for nil.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind.String()
	}
	return "local_error"
}
