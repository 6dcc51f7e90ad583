package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Partitionable routes a unit of work to a worker.
// Units with the same PartitionKey are always run by the same worker.
type Partitionable interface {
	PartitionKey() string
}

// Runnable is a unit of work the dispatcher can run.
type Runnable interface {
	Partitionable
	Run()
}

// WorkerDispatcher runs Runnables on a fixed set of worker goroutines.
//
// Each worker owns an unbounded FIFO queue, so dispatching never blocks,
// including when a worker dispatches to itself.
// A Runnable occupies its worker for as long as Run does not return.
type WorkerDispatcher[T Runnable] struct {
	workers []*workerQueue[T]
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// NewPartitionedDispatcher starts numWorkers workers. onPanic is called on
// the worker goroutine when a Runnable panics; the worker keeps running.
func NewPartitionedDispatcher[T Runnable](
	ctx context.Context,
	numWorkers int,
	onPanic func(T, any),
) *WorkerDispatcher[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &WorkerDispatcher[T]{
		workers: make([]*workerQueue[T], numWorkers),
		cancel:  cancel,
	}

	ready := sync.WaitGroup{}
	for i := 0; i < numWorkers; i++ {
		w := &workerQueue[T]{wake: make(chan struct{}, 1)}
		d.workers[i] = w
		ready.Add(1)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ready.Done()
			w.loop(ctx, onPanic)
		}()
	}
	ready.Wait()
	return d
}

// NumWorkers returns the size of the pool.
func (d *WorkerDispatcher[T]) NumWorkers() int { return len(d.workers) }

// Dispatch enqueues t on the worker its partition key hashes to.
// It reports false once the dispatcher is closed.
func (d *WorkerDispatcher[T]) Dispatch(t T) bool {
	if d.closed.Load() {
		return false
	}
	d.workers[getIndexByHash(t, len(d.workers))].push(t)
	return true
}

// Close stops every worker and waits for them to return.
// Queued work that has not started is dropped.
func (d *WorkerDispatcher[T]) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.cancel()
	d.wg.Wait()
}

type workerQueue[T Runnable] struct {
	mu    sync.Mutex
	queue []T
	wake  chan struct{}
}

func (w *workerQueue[T]) push(t T) {
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *workerQueue[T]) pop() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var zero T
	if len(w.queue) == 0 {
		return zero, false
	}
	t := w.queue[0]
	w.queue[0] = zero
	w.queue = w.queue[1:]
	return t, true
}

func (w *workerQueue[T]) loop(ctx context.Context, onPanic func(T, any)) {
	for {
		t, ok := w.pop()
		if !ok {
			select {
			case <-w.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		runSafely(t, onPanic)
	}
}

func runSafely[T Runnable](t T, onPanic func(T, any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(t, r)
		}
	}()
	t.Run()
}

func hash(key string) int {
	return int(xxhash.Sum64String(key) >> 1)
}

func getIndexByHash(payload Partitionable, numChs int) int {
	switch numChs {
	case 0:
		panic("number of workers cannot be 0")
	case 1:
		return 0
	default:
		return hash(payload.PartitionKey()) % numChs
	}
}
