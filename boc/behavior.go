package boc

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
)

// ThunkFunc is user code scheduled against a fixed set of regions. It
// receives those regions open, deduplicated and sorted by resolved id — the
// same canonical acquisition order used to build the Behavior's Requests
// (spec.md §3, §4.9), not the order the caller happened to list them in.
type ThunkFunc func(ctx context.Context, regions ...*Region) error

// Behavior is one scheduled unit of work: a thunk plus the Requests that
// gate it across every region it touches. count starts at len(requests)+1
// (spec.md §4.6) — one unit per region, plus one held by the scheduler
// itself so a Behavior whose regions are all already free doesn't become
// "ready" before it has finished being built.
type Behavior struct {
	label    string
	thunk    ThunkFunc
	regions  []*Region // deduped, sorted by id — same order as requests
	requests []*Request
	count    atomic.Int64
	queue    *workQueue
	runtime  *Runtime
}

// newBehavior builds a Behavior over regions, deduplicating and sorting by
// resolved id so every Behavior acquires shared regions in the same global
// order regardless of how the caller listed them — the deadlock-freedom
// argument from spec.md §4.2 depends on this, the same way
// engine/graph/semaphore.go sorts its vertex ids before locking. The thunk is
// later invoked with this same canonical order (see run, below).
func newBehavior(rt *Runtime, regions []*Region, thunk ThunkFunc) *Behavior {
	ordered := dedupSortedRegions(regions)
	b := &Behavior{
		label:   uuid.NewString(),
		thunk:   thunk,
		regions: ordered,
		runtime: rt,
		queue:   rt.queue,
	}

	b.requests = make([]*Request, len(ordered))
	for i, r := range ordered {
		b.requests[i] = newRequest(r)
	}
	b.count.Store(int64(len(b.requests)) + 1)
	return b
}

// dedupSortedRegions resolves every region to its current representative,
// removes duplicates (a Behavior naming the same region twice, or two
// regions that have since been merged, must only acquire it once), and
// sorts by id.
func dedupSortedRegions(regions []*Region) []*Region {
	seen := make(map[uint64]*Region, len(regions))
	for _, r := range regions {
		root := resolve(r)
		seen[root.id] = root
	}
	out := make([]*Region, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// schedule enqueues the Behavior for execution, following spec.md §4.6's
// ready-counting protocol:
//
//  1. The terminator is incremented before any Request can possibly
//     resolve this Behavior, so a concurrent Wait() can never observe the
//     pool as idle while this Behavior is still in flight. (spec.md's
//     listed step order increments the terminator last; incrementing it
//     first instead closes a race where a Behavior could run to
//     completion, decrementing the terminator for a unit it was never
//     credited with incrementing — see DESIGN.md.)
//  2. startEnqueue runs for every Request in sorted order; a Request with
//     no predecessor resolves one unit of readiness immediately.
//  3. finishEnqueue runs for every Request in the same order, unblocking
//     any successor Requests that were spinning on them.
//  4. The scheduler's own held unit is resolved last, so a Behavior whose
//     regions were all free becomes ready only once its own chain-building
//     is complete.
func (obj *Behavior) schedule() {
	obj.runtime.terminator.Increment()

	for _, req := range obj.requests {
		if startEnqueue(req, obj) {
			resolveOne(obj)
		}
	}
	for _, req := range obj.requests {
		finishEnqueue(req)
	}
	resolveOne(obj)
}

// resolveOne credits one unit of readiness to behavior. When the count
// reaches zero, every Request this Behavior needed has come up first in
// its region's chain, so the Behavior is handed to the work queue.
func resolveOne(behavior *Behavior) {
	if behavior.count.Add(-1) == 0 {
		behavior.queue.push(behavior)
	}
}

// run opens every acquired region, invokes the thunk with the Behavior's
// canonical (deduped, sorted) region order, then closes them again and
// releases every Request in turn, potentially making successor Behaviors
// ready.
func (obj *Behavior) run(ctx context.Context) error {
	for _, req := range obj.requests {
		req.region.open()
	}

	err := obj.thunk(withNestedGuard(ctx), obj.regions...)

	for _, req := range obj.requests {
		req.region.close()
	}
	for _, req := range obj.requests {
		release(req)
	}
	return err
}
