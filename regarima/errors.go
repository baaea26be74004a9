package regarima

import (
	"errors"
	"fmt"
)

var (
	// ErrEstimationFailed is returned when no valid starting point exists.
	ErrEstimationFailed = errors.New("regarima: estimation failed")
	// ErrUnstable is returned for an unstable final model when
	// Options.FailIfUnstable is set.
	ErrUnstable = errors.New("regarima: unstable final model")
)

// Kind classifies errors by who can fix them.
type Kind int

const (
	// KindInvalidInput is a caller error: bad spec, dimensions, options.
	KindInvalidInput Kind = iota + 1
	// KindNumerical depends on the data: GLS failure, no valid model,
	// instability.
	KindNumerical
	// KindInternal is a violated invariant.
	KindInternal
	// KindCanceled wraps the error of a context that ended the estimation.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindNumerical:
		return "numerical"
	case KindInternal:
		return "internal"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Error is the error type returned by the package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("regarima %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err does not come from this
// package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
