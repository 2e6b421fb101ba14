// internal/liberr/liberr.go
package liberr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers and the HTTP layer can react without
// string matching.
type Kind int

const (
	// KindUnknown is the zero value; an error without a kind.
	KindUnknown Kind = iota
	// KindNotFound means a referenced entity id does not exist.
	KindNotFound
	// KindConflict means the operation is not legal in the entity's current
	// state (double-return, double-claim, delete with open loans).
	KindConflict
	// KindUnavailable means there is no inventory to satisfy a checkout.
	KindUnavailable
	// KindBusinessRule means a policy violation: duplicate loan, fines over
	// threshold, renewal blocked by the reservation queue.
	KindBusinessRule
	// KindValidation means the input itself is malformed (unknown status
	// value, non-positive period, negative amount).
	KindValidation
	// KindConcurrency means lock or transaction contention; the caller may
	// retry the whole operation.
	KindConcurrency
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindBusinessRule:
		return "business_rule"
	case KindValidation:
		return "validation"
	case KindConcurrency:
		return "concurrency"
	default:
		return "unknown"
	}
}

// Error is a classified error. Err is optional and preserved for errors.Is/As.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error from a kind and message.
func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// NotFoundf is shorthand for Errorf(KindNotFound, ...).
func NotFoundf(format string, args ...any) error {
	return Errorf(KindNotFound, format, args...)
}

// Conflictf is shorthand for Errorf(KindConflict, ...).
func Conflictf(format string, args ...any) error {
	return Errorf(KindConflict, format, args...)
}

// Unavailablef is shorthand for Errorf(KindUnavailable, ...).
func Unavailablef(format string, args ...any) error {
	return Errorf(KindUnavailable, format, args...)
}

// BusinessRulef is shorthand for Errorf(KindBusinessRule, ...).
func BusinessRulef(format string, args ...any) error {
	return Errorf(KindBusinessRule, format, args...)
}

// Validationf is shorthand for Errorf(KindValidation, ...).
func Validationf(format string, args ...any) error {
	return Errorf(KindValidation, format, args...)
}

// Concurrencyf is shorthand for Errorf(KindConcurrency, ...).
func Concurrencyf(format string, args ...any) error {
	return Errorf(KindConcurrency, format, args...)
}

// KindOf extracts the kind from anywhere in the error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool     { return IsKind(err, KindConflict) }
func IsUnavailable(err error) bool  { return IsKind(err, KindUnavailable) }
func IsBusinessRule(err error) bool { return IsKind(err, KindBusinessRule) }
func IsValidation(err error) bool   { return IsKind(err, KindValidation) }
func IsConcurrency(err error) bool  { return IsKind(err, KindConcurrency) }
