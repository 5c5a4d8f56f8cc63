// Package boc implements a behavior-oriented concurrency runtime: regions
// of mutable state, guarded by an isolation wrapper, scheduled for
// non-blocking multi-region access by a fixed worker pool. See SPEC_FULL.md
// for the full design; this file wires the pieces (region.go, tag.go,
// capture.go, isolation.go, request.go, behavior.go, queue.go, pool.go)
// into the Run/When/Wait surface applications actually call.
package boc

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/purpleidea/boc/boc/bocerr"
	"github.com/purpleidea/boc/boc/terminator"
	"github.com/purpleidea/boc/util/errwrap"
)

// Runtime owns one worker pool, one ready queue, and one terminator. Most
// programs only need the package-level default Runtime (see Run, Wait,
// When below); constructing one explicitly is for tests that want
// independent schedulers in the same process.
type Runtime struct {
	queue       *workQueue
	pool        *pool
	terminator  *terminator.Terminator
	log         *zap.Logger
	metrics     *Metrics
	startOnce   sync.Once
	stopOnce    sync.Once
	errsMu      sync.Mutex
	errs        error // accumulated via errwrap.Append
	baseCtx     context.Context
	waitResult  error
	waitResultK sync.Once
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithLogger attaches a zap logger for per-behavior debug tracing.
func WithLogger(log *zap.Logger) Option {
	return func(rt *Runtime) { rt.log = log }
}

// WithWorkers pins the worker pool size, overriding WORKER_COUNT/NumCPU.
func WithWorkers(n int) Option {
	return func(rt *Runtime) { rt.pool = newPool(n, rt.queue, rt.log) }
}

// WithMetrics attaches a Metrics recorder (see metrics.go).
func WithMetrics(m *Metrics) Option {
	return func(rt *Runtime) { rt.metrics = m }
}

// NewRuntime builds a Runtime. Run must be called before any Behavior can
// be scheduled against it.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		queue:      newWorkQueue(),
		terminator: terminator.New(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.pool == nil {
		rt.pool = newPool(0, rt.queue, rt.log)
	}
	return rt
}

// Run starts the worker pool. Calling Run more than once is a no-op; the
// context passed to the first call is the one every Behavior's thunk runs
// under.
func (obj *Runtime) Run(ctx context.Context) {
	obj.startOnce.Do(func() {
		obj.baseCtx = ctx
		obj.pool.start(ctx)
	})
}

// recordError folds err into the Runtime's aggregated WhenError and, if a
// Metrics recorder is attached, counts it.
func (obj *Runtime) recordError(label string, err error) {
	obj.errsMu.Lock()
	obj.errs = errwrap.Append(obj.errs, err)
	obj.errsMu.Unlock()
	if obj.log != nil {
		obj.log.Warn("behavior thunk failed", zap.String("behavior", label), zap.Error(err))
	}
	if obj.metrics != nil {
		obj.metrics.behaviorErrors.Inc()
	}
}

// Wait blocks until every scheduled Behavior has completed, then stops the
// worker pool and returns a *bocerr.WhenError aggregating every thunk
// error raised (nil if none were). Calling Wait more than once is safe and
// returns the same result every time (spec.md §4.9) — it does not block a
// second time, since the pool is already stopped after the first call.
func (obj *Runtime) Wait() error {
	obj.waitResultK.Do(func() {
		obj.terminator.Wait()
		obj.stopOnce.Do(obj.pool.stop)
		obj.errsMu.Lock()
		obj.waitResult = bocerr.NewWhenError(obj.errs)
		obj.errsMu.Unlock()
	})
	return obj.waitResult
}

// When schedules thunk to run once every named region can be acquired
// together, without blocking the calling goroutine. Every region must
// already be shared (Region.MakeShareable); When on a region that has
// never been shared is rejected, since an unshared region has no chain for
// the scheduler to enqueue onto.
func (obj *Runtime) When(ctx context.Context, regions []*Region, thunk ThunkFunc) error {
	if nested, _ := ctx.Value(nestedWhenKey).(bool); nested {
		return bocerr.NewIsolationError("nested When is not supported: a thunk may not call When itself")
	}
	for _, r := range regions {
		if !r.IsShared() {
			return bocerr.NewIsolationError("region %q is not shared; call MakeShareable before When", r.Name())
		}
	}

	b := newBehavior(obj, regions, thunk)
	if obj.metrics != nil {
		obj.metrics.behaviorsScheduled.Inc()
	}
	b.schedule()
	return nil
}

type nestedWhenKeyType struct{}

var nestedWhenKey = nestedWhenKeyType{}

// withNestedGuard returns a context marking that a Behavior's thunk is
// currently executing, for the nested-When check in When above.
func withNestedGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, nestedWhenKey, true)
}
