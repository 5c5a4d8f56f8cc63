package boc

import "sync/atomic"

// regionCounter is the process-global, monotonically increasing source of
// Region ids. It must be seeded before Run() and is never reset, mirroring
// the teacher's note (engine/graph/engine.go's Init) that identity counters
// are process-wide state initialized once.
var regionCounter uint64

// nextRegionID allocates the next stable, monotonic region id.
func nextRegionID() uint64 {
	return atomic.AddUint64(&regionCounter, 1)
}

// resolve walks r's alias chain to its representative region, compressing
// the path as it goes: every traversed node's alias is rewritten to point
// directly at the final representative. It always terminates because the
// alias graph is a forest of trees rooted at self-aliases (spec.md §4.1).
//
// alias is stored as an atomic pointer rather than a plain field: a merge
// happens on the worker holding the merging region open, but resolve() may
// be called concurrently from a worker operating on an unrelated region
// whose object tags still name a region further up the same alias chain.
// Path compression is therefore done with a CAS, and a lost race simply
// means the next resolve() compresses a little further.
//
// Unlike a classic union-find, merges here are directional rather than
// rank-balanced: spec.md §4.2 always retargets the absorbed region's alias
// to point at the region that was open and free at merge time, so there is
// no need to track rank or swap parents to keep the tree shallow.
func resolve(r *Region) *Region {
	root := r
	for {
		next := root.alias.Load()
		if next == root {
			break
		}
		root = next
	}

	// path compression: repoint every node on the way to root directly at
	// it, so the next resolve() from any of them is O(1). Best-effort: if
	// another goroutine wins the CAS, we just leave that hop uncompressed.
	for r != root {
		next := r.alias.Load()
		r.alias.CompareAndSwap(next, root)
		r = next
	}
	return root
}
