package boc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purpleidea/boc/boc/host"
)

func TestWhenOrdersBehaviorsPerRegionFIFO(t *testing.T) {
	rt := NewRuntime(WithWorkers(4))
	ctx := context.Background()
	rt.Run(ctx)

	r := NewRegion("order")
	r.MakeShareable()

	var mu sync.Mutex
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		err := rt.When(ctx, []*Region{r}, func(ctx context.Context, regions ...*Region) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, rt.Wait())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWhenRunsDisjointRegionsConcurrently(t *testing.T) {
	rt := NewRuntime(WithWorkers(2))
	ctx := context.Background()
	rt.Run(ctx)

	a := NewRegion("a")
	b := NewRegion("b")
	a.MakeShareable()
	b.MakeShareable()

	release := make(chan struct{})
	started := make(chan struct{}, 2)

	run := func(ctx context.Context, regions ...*Region) error {
		started <- struct{}{}
		<-release
		return nil
	}

	require.NoError(t, rt.When(ctx, []*Region{a}, run))
	require.NoError(t, rt.When(ctx, []*Region{b}, run))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first disjoint behavior never started")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second disjoint behavior never started concurrently with the first")
	}
	close(release)

	require.NoError(t, rt.Wait())
}

func TestWhenAggregatesThunkErrors(t *testing.T) {
	rt := NewRuntime(WithWorkers(2))
	ctx := context.Background()
	rt.Run(ctx)

	r := NewRegion("errs")
	r.MakeShareable()

	boom := assertError("boom")
	require.NoError(t, rt.When(ctx, []*Region{r}, func(ctx context.Context, regions ...*Region) error {
		return boom
	}))

	err := rt.Wait()
	require.Error(t, err)
	var whenErr *WhenError
	require.ErrorAs(t, err, &whenErr)
	assert.Contains(t, whenErr.Error(), "boom")
}

func TestWaitIsIdempotent(t *testing.T) {
	rt := NewRuntime(WithWorkers(1))
	ctx := context.Background()
	rt.Run(ctx)

	r := NewRegion("idempotent")
	r.MakeShareable()
	require.NoError(t, rt.When(ctx, []*Region{r}, func(ctx context.Context, regions ...*Region) error {
		return nil
	}))

	first := rt.Wait()
	second := rt.Wait()
	assert.Equal(t, first, second)
}

func TestWhenRejectsUnsharedRegion(t *testing.T) {
	rt := NewRuntime(WithWorkers(1))
	ctx := context.Background()
	rt.Run(ctx)

	r := NewRegion("private")
	err := rt.When(ctx, []*Region{r}, func(ctx context.Context, regions ...*Region) error { return nil })
	require.Error(t, err)
	var isoErr *IsolationError
	assert.ErrorAs(t, err, &isoErr)
}

func TestNestedWhenIsRejected(t *testing.T) {
	rt := NewRuntime(WithWorkers(1))
	ctx := context.Background()
	rt.Run(ctx)

	r := NewRegion("outer")
	inner := NewRegion("inner")
	r.MakeShareable()
	inner.MakeShareable()

	var nestedErr error
	require.NoError(t, rt.When(ctx, []*Region{r}, func(ctx context.Context, regions ...*Region) error {
		nestedErr = rt.When(ctx, []*Region{inner}, func(context.Context, ...*Region) error { return nil })
		return nil
	}))
	require.NoError(t, rt.Wait())

	require.Error(t, nestedErr)
	var isoErr *IsolationError
	assert.ErrorAs(t, nestedErr, &isoErr)
}

func TestDedupSortedRegionsMergesDuplicatesAndSorts(t *testing.T) {
	a := NewRegion("a")
	b := NewRegion("b")
	c := NewRegion("c")

	out := dedupSortedRegions([]*Region{c, a, b, a})
	require.Len(t, out, 3)
	assert.True(t, out[0].id < out[1].id)
	assert.True(t, out[1].id < out[2].id)
}

func TestMultiRegionAcquisitionAcrossThreeRegions(t *testing.T) {
	rt := NewRuntime(WithWorkers(3))
	ctx := context.Background()
	rt.Run(ctx)

	sys := host.NewNativeSystem()
	a := NewRegion("a")
	b := NewRegion("b")
	c := NewRegion("c")
	a.MakeShareable()
	b.MakeShareable()
	c.MakeShareable()

	// schedule in reverse name order; dedupSortedRegions must still
	// acquire a < b < c by id regardless of call-site order, and the thunk
	// must see that same canonical order, not the call-site order.
	var seen []*Region
	require.NoError(t, rt.When(ctx, []*Region{c, b, a}, func(ctx context.Context, regions ...*Region) error {
		seen = regions
		for _, r := range regions {
			if err := r.Set(ctx, "touched", true, sys); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, rt.Wait())

	v, err := a.Peek("touched")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	require.Len(t, seen, 3)
	assert.True(t, seen[0].ID() < seen[1].ID())
	assert.True(t, seen[1].ID() < seen[2].ID())
}

// assertError is a tiny sentinel error type so tests don't need to import
// "errors" just to build a comparable error value.
type assertError string

func (e assertError) Error() string { return string(e) }
