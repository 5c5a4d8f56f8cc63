package boc

import "github.com/purpleidea/boc/boc/bocerr"

// IsolationError, WhenError, and InternalError are re-exported from bocerr
// so callers only need to import the boc package itself for the common
// case of an errors.As check against a scheduling-level error.
type (
	IsolationError = bocerr.IsolationError
	WhenError      = bocerr.WhenError
	InternalError  = bocerr.InternalError
)
