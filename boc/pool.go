package boc

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// defaultWorkerCount resolves the pool size: the WORKER_COUNT environment
// variable if set to a positive integer, otherwise runtime.NumCPU(),
// mirroring the teacher's preference for an explicit env override over a
// config flag for this kind of low-level tuning knob (util/cli.go's
// handling of MGMT_*; see DESIGN.md).
func defaultWorkerCount() int {
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// pool runs a fixed number of worker goroutines, each pulling Behaviors off
// a workQueue and running them to completion until the queue is closed.
type pool struct {
	workers int
	queue   *workQueue
	log     *zap.Logger
	wg      sync.WaitGroup
}

func newPool(workers int, queue *workQueue, log *zap.Logger) *pool {
	if workers <= 0 {
		workers = defaultWorkerCount()
	}
	tags.growWorkers(workers)
	return &pool{workers: workers, queue: queue, log: log}
}

// start launches the pool's workers. ctx is the base context each worker
// threads through to its Behaviors' thunks, annotated with that worker's
// index for the tag-cache fast path (see tag.go).
func (obj *pool) start(ctx context.Context) {
	for i := 0; i < obj.workers; i++ {
		id := i
		obj.wg.Add(1)
		go obj.loop(withWorkerID(ctx, id), id)
	}
}

func (obj *pool) loop(ctx context.Context, id int) {
	defer obj.wg.Done()
	for {
		behavior, ok := obj.queue.pop()
		if !ok {
			return
		}
		if err := behavior.run(ctx); err != nil {
			behavior.runtime.recordError(behavior.label, err)
		}
		behavior.runtime.terminator.Decrement()
		if obj.log != nil {
			obj.log.Debug("behavior completed", zap.Int("worker", id), zap.String("behavior", behavior.label))
		}
	}
}

// stop closes the queue and blocks until every worker has exited.
func (obj *pool) stop() {
	obj.queue.close()
	obj.wg.Wait()
}
