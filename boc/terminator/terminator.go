// Package terminator implements the reference-counted completion latch
// Run/Wait is built on (spec.md §3, §4.8). It plays the same role the
// teacher's converger plays for mgmt's main loop — letting one goroutine
// block until a fleet of independently-progressing workers has quiesced —
// collapsed here to a single atomic counter, since a Behavior's readiness
// is already tracked by its own count in boc.Behavior and the terminator
// only needs to know "is anything still outstanding at all".
package terminator

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Terminator counts outstanding units of work. It starts at one, standing
// for the main goroutine's own hold on "not done yet"; every scheduled
// Behavior increments it once and decrements it once on completion. Wait
// releases the main goroutine's hold and blocks until the count reaches
// zero.
type Terminator struct {
	count    int64
	done     atomic.Bool
	waitOnce sync.Once
}

// New returns a Terminator with its initial hold already counted.
func New() *Terminator {
	return &Terminator{count: 1}
}

// Increment registers one more outstanding unit of work.
func (obj *Terminator) Increment() {
	atomic.AddInt64(&obj.count, 1)
}

// Decrement retires one unit of work. Once the count reaches zero it
// latches permanently: a later Increment raises the count again but does
// not clear the latch, so Wait and Done keep reporting completion.
func (obj *Terminator) Decrement() {
	if atomic.AddInt64(&obj.count, -1) == 0 {
		obj.done.Store(true)
	}
}

// Wait blocks until every outstanding unit of work has been retired. The
// first call releases the main goroutine's own hold (matching the initial
// +1 from New) before polling; every call after that just polls the
// already-latched state, making repeated Wait calls idempotent no-ops
// (spec.md §4.9).
func (obj *Terminator) Wait() {
	obj.waitOnce.Do(obj.Decrement)
	for !obj.done.Load() {
		runtime.Gosched()
	}
}

// Done reports whether the terminator has latched, without blocking.
func (obj *Terminator) Done() bool {
	return obj.done.Load()
}
