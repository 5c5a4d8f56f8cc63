package boc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/purpleidea/boc/boc/bocerr"
	"github.com/purpleidea/boc/boc/host"
)

// Region is a unit of ownership: a dynamic set of mutable objects plus the
// scheduling state needed to let behaviors acquire it safely. Its internal
// fields (objects, parent, isOpen) are touched only by the single worker
// currently holding it open, or during construction — the same single-
// writer discipline the teacher's State applies to its Vertex fields
// (engine/graph/state.go).
type Region struct {
	id   uint64
	name string

	// alias forms a forest of region aliases; resolve() follows it to the
	// representative region for r. Atomic because resolve() may race a
	// concurrent merge (see alias.go).
	alias atomic.Pointer[Region]

	// parent is nil iff this region is free. Written when capture adopts
	// this region as a sub-region, and by DetachAll on the region it
	// creates.
	parent *Region

	isOpen   uint32 // 0/1, atomically stored by open()/close(); read by the isolation gate from any worker
	isShared uint32 // 0/1, one-way flip by MakeShareable

	objects map[string]host.Value // name -> object, single-writer while open

	// last is the tail of this region's Request chain (spec.md §4.5). nil
	// means no Request is currently queued.
	last atomic.Pointer[Request]

	createdAt time.Time
	logf      func(format string, v ...interface{})

	mu sync.Mutex // guards objects / parent mutation bookkeeping that isn't already atomic
}

// NewRegion allocates a fresh region: free, unshared, not open. An empty
// name defaults to "region_<id>".
func NewRegion(name string) *Region {
	r := &Region{
		id:        nextRegionID(),
		objects:   make(map[string]host.Value),
		createdAt: time.Now(),
		logf:      func(string, ...interface{}) {},
	}
	r.alias.Store(r) // self-alias: every region starts as its own representative
	if name == "" {
		name = fmt.Sprintf("region_%d", r.id)
	}
	r.name = name
	return r
}

// ID returns the region's stable, process-global numeric id. Equality and
// scheduling order are both defined in terms of the resolved region's id.
func (obj *Region) ID() uint64 {
	return resolve(obj).id
}

// Name returns the region's human-readable name, as given at construction.
func (obj *Region) Name() string {
	return obj.name
}

// Equal reports whether two regions currently resolve to the same
// representative.
func (obj *Region) Equal(other *Region) bool {
	return resolve(obj).id == resolve(other).id
}

// IsOpen reports whether the representative region is currently open on
// some worker. This is the gate the isolation wrapper checks.
func (obj *Region) IsOpen() bool {
	return atomic.LoadUint32(&resolve(obj).isOpen) == 1
}

// IsShared reports whether the region has been made eligible to appear in
// When(...).
func (obj *Region) IsShared() bool {
	return atomic.LoadUint32(&resolve(obj).isShared) == 1
}

// IsFree reports whether the representative region currently has no parent.
func (obj *Region) IsFree() bool {
	r := resolve(obj)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parent == nil
}

// open is called only by the scheduler immediately before a worker invokes
// a Behavior's thunk. Nesting open/close on the same region is not
// supported (spec.md §6).
func (obj *Region) open() {
	atomic.StoreUint32(&obj.isOpen, 1)
	obj.logf("opened")
}

// close is called only by the scheduler immediately after a Behavior's
// thunk returns.
func (obj *Region) close() {
	atomic.StoreUint32(&obj.isOpen, 0)
	obj.logf("closed")
}

// SetLogf installs a trace callback invoked on open/close/merge/detach,
// mirroring the teacher's Logf-callback shape (util/log.go's LogWriter)
// rather than tying Region to a specific logging library.
func (obj *Region) SetLogf(logf func(format string, v ...interface{})) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	obj.logf = logf
}

// MakeShareable makes the region eligible to appear in When(...). It is a
// one-way transition; calling it again is a no-op. It also resets the
// region's scheduling cursor to nil, since a region only ever needs one the
// first time it is shared.
func (obj *Region) MakeShareable() {
	r := resolve(obj)
	if atomic.CompareAndSwapUint32(&r.isShared, 0, 1) {
		r.last.Store(nil)
	}
}

// Merge absorbs other into obj's region. Precondition: obj (resolved) is
// open and free. other must not itself be a non-free region — merging two
// already-rooted (parented or shared-and-rooted) region graphs together is
// rejected, matching the original model's refusal to merge two explicit
// regions (see SPEC_FULL.md §9) and boundary scenario 4 of spec.md §8.
//
// On success, other's objects are transferred into obj and other.alias is
// retargeted to obj, so resolve(other) == resolve(obj) from then on. It
// returns a read-only merge view of the combined object set.
func (obj *Region) Merge(other *Region) (map[string]host.Value, error) {
	self := resolve(obj)
	if !self.IsOpen() {
		return nil, bocerr.NewIsolationError("region %q is not open", self.name)
	}
	if !self.IsFree() {
		return nil, bocerr.NewIsolationError("region %q is not free", self.name)
	}

	otherRoot := resolve(other)
	if otherRoot == self {
		// already merged
		return self.snapshot(), nil
	}
	if !otherRoot.IsFree() {
		return nil, bocerr.NewIsolationError("foreign region graph: %q already has a parent", otherRoot.name)
	}

	self.mu.Lock()
	otherRoot.mu.Lock()
	for k, v := range otherRoot.objects {
		self.objects[k] = v
		retargetTag(v, self)
	}
	otherRoot.objects = nil
	otherRoot.mu.Unlock()
	self.mu.Unlock()

	otherRoot.alias.Store(self) // retarget, never deleted: spec.md §9
	self.logf("merged %q", otherRoot.name)
	return self.snapshot(), nil
}

// snapshot returns a shallow copy of the region's current object map. Callers
// must hold (or not need) obj.mu; used internally after merges/detach to
// hand back a stable read-only view.
func (obj *Region) snapshot() map[string]host.Value {
	out := make(map[string]host.Value, len(obj.objects))
	for k, v := range obj.objects {
		out[k] = v
	}
	return out
}

// DetachAll atomically swaps out the region's objects map into a fresh,
// already-parented region and returns it. Precondition: the region is open
// and shared. Tags on the moved objects are retargeted to the detached
// region.
func (obj *Region) DetachAll() (*Region, error) {
	self := resolve(obj)
	if !self.IsOpen() {
		return nil, bocerr.NewIsolationError("region %q is not open", self.name)
	}
	if !self.IsShared() {
		return nil, bocerr.NewIsolationError("region %q is not shared", self.name)
	}

	detached := NewRegion(self.name + "_detached")

	self.mu.Lock()
	moved := self.objects
	self.objects = make(map[string]host.Value)
	self.mu.Unlock()

	detached.mu.Lock()
	detached.objects = moved
	detached.parent = self // the detached region is now owned by self
	detached.mu.Unlock()

	for _, v := range moved {
		retargetTag(v, detached)
	}
	self.logf("detached all into %q", detached.name)
	return detached, nil
}

// Set stores a user root under name, capturing value into the region if it
// is not already tagged. Gated by open.
func (obj *Region) Set(ctx context.Context, name string, value host.Value, sys host.System) error {
	self := resolve(obj)
	if !self.IsOpen() {
		return bocerr.NewIsolationError("region %q is not open", self.name)
	}
	if err := capture(ctx, self, value, sys); err != nil {
		return err
	}
	self.mu.Lock()
	self.objects[name] = value
	self.mu.Unlock()
	return nil
}

// Get retrieves a previously-set user root. Gated by open.
func (obj *Region) Get(name string) (host.Value, error) {
	self := resolve(obj)
	if !self.IsOpen() {
		return nil, bocerr.NewIsolationError("region %q is not open", self.name)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	v, ok := self.objects[name]
	if !ok {
		return nil, bocerr.NewIsolationError("region %q has no root named %q", self.name, name)
	}
	return v, nil
}

func (obj *Region) String() string {
	return fmt.Sprintf("region(%s#%d)", obj.name, obj.id)
}

// Peek reads name outside of any scheduled Behavior, by opening the region
// just long enough to perform the read. It is meant for callers that know,
// by construction, that no worker currently holds the region (typically:
// after Wait has returned and every Behavior has drained) and want to
// inspect final state without scheduling a trivial Behavior just to do so.
// Calling Peek while a worker actually holds the region open races that
// worker and is not supported.
func (obj *Region) Peek(name string) (host.Value, error) {
	self := resolve(obj)
	self.open()
	defer self.close()
	return self.Get(name)
}
