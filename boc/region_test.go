package boc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purpleidea/boc/boc/host"
)

func TestRegionSetGetRoundTrip(t *testing.T) {
	sys := host.NewNativeSystem()
	r := NewRegion("balances")
	r.open()
	defer r.close()

	require.NoError(t, r.Set(context.Background(), "x", 42, sys))
	v, err := r.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRegionGetSetRequireOpen(t *testing.T) {
	sys := host.NewNativeSystem()
	r := NewRegion("closed")

	err := r.Set(context.Background(), "x", 1, sys)
	require.Error(t, err)
	assert.IsType(t, &IsolationError{}, err)

	_, err = r.Get("x")
	require.Error(t, err)
	assert.IsType(t, &IsolationError{}, err)
}

func TestRegionMergeAbsorbsFreeRegion(t *testing.T) {
	sys := host.NewNativeSystem()
	a := NewRegion("a")
	b := NewRegion("b")

	a.open()
	defer a.close()
	require.NoError(t, a.Set(context.Background(), "x", 1, sys))

	b.open()
	require.NoError(t, b.Set(context.Background(), "y", 2, sys))
	b.close()

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, 1, merged["x"])
	assert.Equal(t, 2, merged["y"])
	assert.True(t, a.Equal(b), "b should now resolve to a's representative")
}

func TestRegionMergeRejectsAlreadyRootedRegion(t *testing.T) {
	a := NewRegion("a")
	b := NewRegion("b")
	rooted := NewRegion("rooted")
	rooted.parent = b // white-box: simulate b already owning a sub-region

	a.open()
	defer a.close()

	_, err := a.Merge(rooted)
	require.Error(t, err)
	var isoErr *IsolationError
	assert.ErrorAs(t, err, &isoErr)
}

func TestRegionMergeRequiresOpenAndFree(t *testing.T) {
	a := NewRegion("a") // not open
	b := NewRegion("b")

	_, err := a.Merge(b)
	require.Error(t, err)

	a.open()
	a.parent = NewRegion("someone-else") // a itself is not free
	_, err = a.Merge(b)
	a.close()
	require.Error(t, err)
}

func TestRegionDetachAllRequiresSharedAndOpen(t *testing.T) {
	sys := host.NewNativeSystem()
	r := NewRegion("shared")

	_, err := r.DetachAll()
	require.Error(t, err, "not open yet")

	r.open()
	_, err = r.DetachAll()
	require.Error(t, err, "not shared yet")

	r.MakeShareable()
	require.NoError(t, r.Set(context.Background(), "x", 9, sys))

	detached, err := r.DetachAll()
	require.NoError(t, err)
	r.close()

	detached.open()
	defer detached.close()
	v, err := detached.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	r.open()
	defer r.close()
	_, err = r.Get("x")
	assert.Error(t, err, "original region should no longer hold the detached object")
}
