package boc

import (
	"context"

	"github.com/purpleidea/boc/boc/bocerr"
	"github.com/purpleidea/boc/boc/host"
)

// isolationType is the TypeInfo capture() installs on a value the moment it
// is published into a region. It wraps the value's original host type so
// TypeOf keeps returning something meaningful, while tagging it with the
// owning region the isolation gate needs to check.
type isolationType struct {
	inner  host.TypeInfo
	region *Region
}

func newIsolationType(inner host.TypeInfo, region *Region) *isolationType {
	return &isolationType{inner: inner, region: region}
}

func (obj *isolationType) Name() string {
	if obj.inner == nil {
		return "isolated"
	}
	return "isolated<" + obj.inner.Name() + ">"
}

// Gate is the single checkpoint every externally-visible operation on a
// captured value must pass through (spec.md §4.4): the value's owning
// region must be open on the calling worker, and every argument must either
// already belong to that same region or be capturable into it on the spot.
// A gated read-only operation (no arguments) degenerates to just the
// open-region check.
//
// Gate returns the resolved owning region (so a caller doing further region
// bookkeeping doesn't need to look it up twice) along with the arguments,
// unchanged, now safe to pass to the underlying host operation.
func Gate(ctx context.Context, self host.Value, args []host.Value, sys host.System) (*Region, []host.Value, error) {
	region, ok := tagOf(ctx, self)
	if !ok {
		return nil, nil, bocerr.NewIsolationError("value has no owning region")
	}
	if !region.IsOpen() {
		return nil, nil, bocerr.NewIsolationError("region %q is not open", region.name)
	}

	for _, arg := range args {
		argRegion, tagged := tagOf(ctx, arg)
		switch {
		case !tagged:
			if err := capture(ctx, region, arg, sys); err != nil {
				return nil, nil, err
			}
		case argRegion != region:
			return nil, nil, bocerr.NewIsolationError("argument belongs to another region %q", argRegion.name)
		}
	}
	return region, args, nil
}

// Hash implements the isolation wrapper's hashing contract: the hash of an
// isolated value equals the host's hash of its underlying value, but only
// while the owning region is open (spec.md §6); hashing a value whose
// region is closed fails rather than returning a stale or unstable hash.
func Hash(ctx context.Context, self host.Value, hostHash func(host.Value) (uint64, error)) (uint64, error) {
	region, ok := tagOf(ctx, self)
	if !ok {
		return 0, bocerr.NewIsolationError("value has no owning region")
	}
	if !region.IsOpen() {
		return 0, bocerr.NewIsolationError("region %q is not open", region.name)
	}
	return hostHash(self)
}

// RegionOf returns the resolved region currently owning self, failing if
// self was never captured. It does not require the region to be open: it
// backs read-only introspection like the "which region owns this" query,
// not a gated mutation.
func RegionOf(ctx context.Context, self host.Value) (*Region, error) {
	region, ok := tagOf(ctx, self)
	if !ok {
		return nil, bocerr.NewIsolationError("value has no owning region")
	}
	return region, nil
}
