package boc

import (
	"context"

	"github.com/purpleidea/boc/boc/bocerr"
	"github.com/purpleidea/boc/boc/host"
)

// capture ingests value's transitive mutable graph into region, per
// spec.md §4.3:
//
//  1. Immutable values, and values already tagged to region, are a no-op.
//  2. A value tagged to a different region is rejected.
//  3. A Region value is handled specially: a free child region is adopted
//     as a sub-region (parented to region); a region that region already
//     owns (region is its ancestor) is left alone; anything else is a
//     foreign region graph.
//  4. Otherwise, capture recurses into the value's sequence, mapping, and
//     attribute contents first, so a failure partway through never leaves
//     the tag table pointing at a half-captured object.
//  5. Finally the value's tag is published. Losing a concurrent capture
//     race for the same value is reported as an isolation error rather
//     than silently accepted, since two behaviors disagreeing about who
//     owns a value means one of them was wrong to try.
func capture(ctx context.Context, region *Region, value host.Value, sys host.System) error {
	if sys.IsImmutable(value) {
		return nil
	}

	if child, ok := value.(*Region); ok {
		return captureRegion(region, child)
	}

	if existing, ok := tagOf(ctx, value); ok {
		if existing == resolve(region) {
			return nil // cycle terminator: already captured here
		}
		return bocerr.NewIsolationError("value already belongs to region %q", existing.name)
	}

	if seq, ok := sys.IterSequence(value); ok {
		for _, child := range seq {
			if err := capture(ctx, region, child, sys); err != nil {
				return err
			}
		}
	}
	if vals, ok := sys.IterMappingValues(value); ok {
		for _, child := range vals {
			if err := capture(ctx, region, child, sys); err != nil {
				return err
			}
		}
	}
	if attrs, ok := sys.IterAttributes(value); ok {
		for _, child := range attrs {
			if err := capture(ctx, region, child, sys); err != nil {
				return err
			}
		}
	}

	winner, won := tags.publish(ctx, value, resolve(region))
	if !won && winner != resolve(region) {
		return bocerr.NewIsolationError("value already captured by region %q (lost capture race)", winner.name)
	}
	sys.SetType(value, newIsolationType(sys.TypeOf(value), winner))
	return nil
}

// captureRegion implements capture's region-nesting rule (spec.md §4.3 step
// 3): a free region becomes a sub-region of the capturing region; a region
// the capturing region already dominates (is an ancestor of) is left
// untouched (no-op, since it is already owned); anything else is
// rejected as a foreign region graph, matching Region.Merge's refusal to
// merge two already-rooted regions.
func captureRegion(region, child *Region) error {
	childRoot := resolve(child)
	selfRoot := resolve(region)

	if childRoot == selfRoot {
		return nil
	}
	if isAncestor(childRoot, selfRoot) {
		return nil
	}
	if childRoot.IsFree() {
		childRoot.mu.Lock()
		childRoot.parent = selfRoot
		childRoot.mu.Unlock()
		return nil
	}
	return bocerr.NewIsolationError("foreign region graph: %q already has a parent", childRoot.name)
}

// isAncestor reports whether ancestor is region itself or a transitive
// parent of region, walking the (resolved) parent chain.
func isAncestor(region, ancestor *Region) bool {
	target := resolve(ancestor)
	for r := resolve(region); r != nil; {
		if r == target {
			return true
		}
		r.mu.Lock()
		p := r.parent
		r.mu.Unlock()
		if p == nil {
			return false
		}
		r = resolve(p)
	}
	return false
}
