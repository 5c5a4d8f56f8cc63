package boc

import (
	"runtime"
	"sync/atomic"
)

// spinWait yields the current goroutine's timeslice. Centralized so every
// spin loop in the scheduler backs off the same way.
func spinWait() {
	runtime.Gosched()
}

// Request is one Behavior's claim on one Region. Behaviors that name k
// regions allocate exactly k Requests, one per region, and link them into
// that region's lock-free FIFO chain via startEnqueue/finishEnqueue
// (spec.md §4.5). A Request is single-use: once its Behavior has run, the
// Request is released and discarded.
type Request struct {
	region *Region

	// next points at the Behavior that enqueued immediately after this
	// Request on the same region. Set by that Behavior's own
	// startEnqueue, which is why release() must spin until it is non-nil
	// rather than treat a nil read as "no successor".
	next atomic.Pointer[Behavior]

	// scheduled flips true once finishEnqueue has run for this Request,
	// signaling that this Request's own chain linkage is complete and a
	// predecessor spinning on it in startEnqueue may proceed.
	scheduled atomic.Bool
}

func newRequest(region *Region) *Request {
	return &Request{region: region}
}

// startEnqueue links req onto its region's chain and reports whether req
// was already first in line (no predecessor), in which case the caller
// must resolve one unit of readiness for behavior immediately.
//
// If a predecessor exists, startEnqueue blocks (spinning) until that
// predecessor has finished its own enqueue sequence (its `scheduled` flag
// is set), guaranteeing the predecessor's chain linkage is stable before
// this call returns. This mirrors the teacher's ordered-acquire idiom in
// engine/graph/semaphore.go, adapted to a lock-free singly-linked chain
// instead of a slice of mutexes.
func startEnqueue(req *Request, behavior *Behavior) (resolvedImmediately bool) {
	prev := req.region.last.Swap(req)
	if prev == nil {
		return true
	}
	prev.next.Store(behavior)
	for !prev.scheduled.Load() {
		spinWait()
	}
	return false
}

// finishEnqueue marks req's own chain linkage complete, unblocking any
// successor spinning on it inside startEnqueue.
func finishEnqueue(req *Request) {
	req.scheduled.Store(true)
}

// release runs after the Request's Behavior has finished using its region.
// It tries to clear the region's tail pointer; if that fails, a successor
// has already swapped itself in, so release spins until that successor has
// published its Behavior and then resolves one unit of its readiness.
func release(req *Request) {
	if req.region.last.CompareAndSwap(req, nil) {
		return
	}
	var next *Behavior
	for {
		next = req.next.Load()
		if next != nil {
			break
		}
		spinWait()
	}
	resolveOne(next)
}
