package boc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purpleidea/boc/boc/host"
)

func TestCaptureImmutableIsNoOp(t *testing.T) {
	sys := host.NewNativeSystem()
	r := NewRegion("r")
	ctx := context.Background()

	require.NoError(t, capture(ctx, r, 5, sys))
	require.NoError(t, capture(ctx, r, "hello", sys))
	require.NoError(t, capture(ctx, r, nil, sys))

	_, tagged := tagOf(ctx, 5)
	assert.False(t, tagged, "immutable values are never tagged")
}

func TestCaptureIsIdempotentWithinOwningRegion(t *testing.T) {
	sys := host.NewNativeSystem()
	r := NewRegion("r")
	ctx := context.Background()

	obj := map[string]host.Value{"k": 1}
	require.NoError(t, capture(ctx, r, obj, sys))
	require.NoError(t, capture(ctx, r, obj, sys), "recapturing from the same region is a no-op")
}

func TestCaptureRejectsForeignRegion(t *testing.T) {
	sys := host.NewNativeSystem()
	a := NewRegion("a")
	b := NewRegion("b")
	ctx := context.Background()

	obj := map[string]host.Value{"k": 1}
	require.NoError(t, capture(ctx, a, obj, sys))

	err := capture(ctx, b, obj, sys)
	require.Error(t, err)
	var isoErr *IsolationError
	assert.ErrorAs(t, err, &isoErr)
}

func TestCaptureRecursesThroughSequenceMappingAndAttributes(t *testing.T) {
	sys := host.NewNativeSystem()
	r := NewRegion("r")
	ctx := context.Background()

	leaf := map[string]host.Value{"leaf": true}
	seq := []host.Value{leaf}
	mapping := map[host.Value]host.Value{"k": seq}
	root := map[string]host.Value{"child": mapping}

	require.NoError(t, capture(ctx, r, root, sys))

	for _, v := range []host.Value{root, mapping, seq, leaf} {
		owner, ok := tagOf(ctx, v)
		require.True(t, ok)
		assert.Equal(t, resolve(r), owner)
	}
}

func TestCaptureAdoptsFreeChildRegion(t *testing.T) {
	parent := NewRegion("parent")
	child := NewRegion("child")

	require.NoError(t, captureRegion(parent, child))
	assert.True(t, child.IsFree() == false, "child should now have parent set")
}

func TestCaptureRejectsAlreadyRootedChildRegion(t *testing.T) {
	parent := NewRegion("parent")
	other := NewRegion("other")
	child := NewRegion("child")
	child.parent = other

	err := captureRegion(parent, child)
	require.Error(t, err)
}

func TestCaptureRegionOfAlreadyOwnedChildIsNoOp(t *testing.T) {
	parent := NewRegion("parent")
	child := NewRegion("child")

	require.NoError(t, captureRegion(parent, child))
	// child is already parented to parent; recapturing it (parent already
	// dominates child) must be a no-op, not a foreign-region rejection.
	require.NoError(t, captureRegion(parent, child))
	assert.Same(t, parent, child.parent)
}
