// Package bocerr defines the error taxonomy surfaced by the boc runtime:
// IsolationError for region-discipline violations, WhenError for aggregated
// thunk failures, and InternalError for queue/terminator failures that are
// fatal to the runtime but must not crash a worker.
package bocerr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/purpleidea/boc/util/errwrap"
)

// IsolationError reports a structural violation of the region discipline:
// writing or reading a closed region, assigning a value owned by another
// region, merging a non-free region, When on a non-shared region, or losing
// a double-capture race.
type IsolationError struct {
	msg string
	err error
}

// NewIsolationError builds an IsolationError with the given message. Use
// WrapIsolationError to attach an underlying cause.
func NewIsolationError(format string, args ...interface{}) *IsolationError {
	return &IsolationError{msg: fmt.Sprintf(format, args...)}
}

// WrapIsolationError wraps an existing error as the cause of an
// IsolationError, preserving the chain for errors.Is/errors.As callers.
func WrapIsolationError(err error, format string, args ...interface{}) *IsolationError {
	return &IsolationError{
		msg: fmt.Sprintf(format, args...),
		err: errwrap.Wrapf(err, format, args...),
	}
}

func (obj *IsolationError) Error() string {
	if obj.err != nil {
		return obj.err.Error()
	}
	return obj.msg
}

// Unwrap exposes the underlying cause, if any, for errors.Is/errors.As.
func (obj *IsolationError) Unwrap() error {
	return obj.err
}

// WhenError aggregates one or more errors raised by behavior thunks. It is
// returned by Wait() once all scheduled behaviors have drained, and the same
// value is returned again by every later Wait() call. The underlying order of the aggregated errors is
// not defined; at least one is guaranteed to be present.
type WhenError struct {
	err error // built up via errwrap.Append; a *multierror.Error once >1 thunk fails
}

// NewWhenError wraps the accumulated error chain (built with errwrap.Append
// as each thunk failure came in) as a WhenError. It returns nil if err is
// nil, i.e. no thunk ever failed.
func NewWhenError(err error) error {
	if err == nil {
		return nil
	}
	return &WhenError{err: err}
}

func (obj *WhenError) Error() string {
	return "when: " + errwrap.String(obj.err)
}

// Errors returns the individual thunk errors that were aggregated. Their
// relative order is undefined, per spec. A single failed thunk is never
// wrapped in a multierror by errwrap.Append, so that case is reported back
// as a one-element slice.
func (obj *WhenError) Errors() []error {
	if multi, ok := obj.err.(*multierror.Error); ok {
		return multi.WrappedErrors()
	}
	return []error{obj.err}
}

// InternalError reports a fatal failure in the work queue, the terminator,
// or worker-pool bookkeeping. It is not caused by user code.
type InternalError struct {
	msg string
	err error
}

// NewInternalError builds an InternalError wrapping an underlying cause.
func NewInternalError(err error, format string, args ...interface{}) *InternalError {
	return &InternalError{
		msg: fmt.Sprintf(format, args...),
		err: errwrap.Wrapf(err, format, args...),
	}
}

func (obj *InternalError) Error() string {
	if obj.err != nil {
		return obj.err.Error()
	}
	return obj.msg
}

// Unwrap exposes the underlying cause, if any.
func (obj *InternalError) Unwrap() error {
	return obj.err
}
