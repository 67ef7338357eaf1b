package fault

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindOracle              Kind = "oracle"
	KindPersistence         Kind = "persistence"
	KindTransformInvocation Kind = "transform_invocation"
	KindConfig              Kind = "config"
)

// Error is the typed failure of one unit of work (one oracle call, one
// document read/write, one record conversion).
type Error struct {
	Kind      Kind
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", prefix, e.Err.Error())
	}
	return prefix
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Oracle wraps an oracle failure. Deadline and cancellation are retryable.
func Oracle(op string, err error) *Error {
	return &Error{
		Kind:      KindOracle,
		Op:        op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}

func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

func TransformInvocation(op string, err error) *Error {
	return &Error{Kind: KindTransformInvocation, Op: op, Err: err}
}

func Config(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	var fe *Error
	for err != nil {
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}

func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
