package boc

import (
	"context"
	"sync"
)

// defaultRuntime is the process-wide Runtime backing the package-level
// Run/Wait/When functions, which mirror spec.md §1's free-function API
// (run(), wait(), when(r1,...,rk)(thunk)). Most embedders only ever need
// one scheduler per process; constructing a *Runtime directly (NewRuntime)
// is for tests that want isolation from other tests' schedulers.
var (
	defaultRuntime     *Runtime
	defaultRuntimeOnce sync.Once
)

func getDefaultRuntime() *Runtime {
	defaultRuntimeOnce.Do(func() {
		defaultRuntime = NewRuntime()
	})
	return defaultRuntime
}

// Run starts the default runtime's worker pool under ctx. Must be called
// once before any call to When.
func Run(ctx context.Context) {
	getDefaultRuntime().Run(ctx)
}

// Wait blocks until every Behavior scheduled against the default runtime
// has completed, then returns the aggregated *bocerr.WhenError, if any.
func Wait() error {
	return getDefaultRuntime().Wait()
}

// When schedules thunk to run with every named region open together, as
// soon as the scheduler can acquire all of them without blocking any other
// Behavior. Every region must already be shared via MakeShareable.
//
// Go idiom departs from spec.md's curried when(r1,...,rk)(thunk) form in
// one way: nested-When detection (spec.md §4.9's "no when inside a
// thunk") is enforced via the context.Context passed to a thunk, so When
// takes ctx explicitly as its first argument rather than being a bare
// variadic-then-closure call. A thunk that ignores its ctx parameter and
// builds a fresh context.Background() to call When again defeats this
// check; see DESIGN.md for why Go's lack of goroutine-local state makes
// this the best enforceable contract available.
func When(ctx context.Context, regions []*Region, thunk ThunkFunc) error {
	return getDefaultRuntime().When(ctx, regions, thunk)
}
