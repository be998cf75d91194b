package vault

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredential    = errors.New("no stored credential")
	ErrKeyNotFound     = errors.New("encryption key not found")
	ErrKeyCorrupt      = errors.New("encryption key file is corrupt")
	ErrEmptyCredential = errors.New("credential is empty")
)

// Kind classifies vault failures so callers can tell transient I/O problems
// from stored data that can only be fixed by registering again.
type Kind int

const (
	KindIO Kind = iota + 1
	KindEncode
	KindDecryption
	KindInvalidFormat
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io failure"
	case KindEncode:
		return "encode failure"
	case KindDecryption:
		return "decryption failed"
	case KindInvalidFormat:
		return "invalid format"
	case KindPermission:
		return "permission failure"
	default:
		return "unknown"
	}
}

// Error is returned by every Vault operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("vault %s", e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NeedsReregistration reports whether the stored credential is unusable and
// retrying cannot help.
func (e *Error) NeedsReregistration() bool {
	switch e.Kind {
	case KindDecryption, KindInvalidFormat, KindEncode:
		return true
	}
	return errors.Is(e.Err, ErrNoCredential) || errors.Is(e.Err, ErrKeyNotFound)
}

// IsKind reports whether err is a vault Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Kind == kind
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
