package boc

import (
	"context"
	"sync"

	"github.com/purpleidea/boc/boc/host"
)

// workerIDKeyType is the context.Context key under which a worker's index is
// stashed for the duration of a Behavior's thunk. It lets capture() and the
// isolation gate consult that worker's object-tag cache without having to
// thread a worker handle through every call site.
type workerIDKeyType struct{}

var workerIDKey = workerIDKeyType{}

// withWorkerID returns a context carrying the given worker index.
func withWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerIDKey, id)
}

func workerIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey).(int)
	return id, ok
}

// tagTable is the process-wide object -> owning-region lookup described in
// spec.md §3 and §4.3: a fast per-worker cache backed by an authoritative
// global table. The global table is CAS-guarded (sync.Map's LoadOrStore)
// because capture() must stay race-free against a losing capture from a
// different region, without taking a lock on the hot path — the same
// tension the teacher resolves with a slock-guarded map for semaphores
// (engine/graph/semaphore.go), except the tag table's hot path (lookup) must
// not take that lock at all.
type tagTable struct {
	mu      sync.Mutex
	workers []map[interface{}]*Region // keyed by host.IdentityKey(v), not v itself
	global  sync.Map                  // host.IdentityKey(v) -> *Region
}

var tags = &tagTable{}

// growWorkers ensures at least n per-worker caches exist. Called once by the
// pool at startup; safe to call again if the pool is resized.
func (obj *tagTable) growWorkers(n int) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	for len(obj.workers) < n {
		obj.workers = append(obj.workers, make(map[interface{}]*Region))
	}
}

// lookup returns the owning region for v, resolved to its representative.
// It checks the calling worker's cache first, then falls back to (and seeds
// from) the global table. v is keyed by host.IdentityKey rather than by
// itself, since a captured value is frequently a map or slice (the host
// system's mapping/sequence representations) and neither is comparable.
func (obj *tagTable) lookup(ctx context.Context, v host.Value) (*Region, bool) {
	key := host.IdentityKey(v)
	id, hasWorker := workerIDFromContext(ctx)
	if hasWorker && id < len(obj.workers) {
		if r, ok := obj.workers[id][key]; ok {
			return resolve(r), true
		}
	}
	r, ok := obj.global.Load(key)
	if !ok {
		return nil, false
	}
	region := r.(*Region)
	if hasWorker && id < len(obj.workers) {
		obj.workers[id][key] = region
	}
	return resolve(region), true
}

// publish binds v to region unless a concurrent capture from a different
// region already won the race. It returns the region that ended up owning
// v and whether this call was the winner.
func (obj *tagTable) publish(ctx context.Context, v host.Value, region *Region) (winner *Region, won bool) {
	key := host.IdentityKey(v)
	actual, loaded := obj.global.LoadOrStore(key, region)
	winner = actual.(*Region)
	if id, ok := workerIDFromContext(ctx); ok && id < len(obj.workers) {
		obj.workers[id][key] = winner
	}
	return winner, !loaded
}

// retarget moves v's tag to newRegion directly, bypassing the CAS race
// check. Only safe when called by the single worker holding the owning
// region open, as is the case for Region.Merge and Region.DetachAll.
func (obj *tagTable) retarget(v host.Value, newRegion *Region) {
	obj.global.Store(host.IdentityKey(v), newRegion)
	// any stale worker-local cache entries are healed lazily by resolve()
	// on their next lookup, per spec.md §9.
}

func retargetTag(v host.Value, newRegion *Region) {
	tags.retarget(v, newRegion)
}

func tagOf(ctx context.Context, v host.Value) (*Region, bool) {
	return tags.lookup(ctx, v)
}
