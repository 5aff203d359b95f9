// Package taskrunner drives a bounded sliding window of concurrent tasks.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrTaskPanicked wraps the value recovered from a panicking task.
var ErrTaskPanicked = errors.New("task panicked")

// Task is one independent unit of work.
type Task[T any] func(ctx context.Context) (T, error)

// Result is handed to the completion callback once per admitted task.
type Result[T any] struct {
	Index int // position of the task in the submitted slice
	Value T
	Err   error
}

// Run executes tasks keeping at most limit of them in flight. As soon as
// one finishes its callback fires and, unless shouldStop reports true, the
// next pending task is admitted; the window never waits to drain.
//
// onDone is called exactly once per admitted task, in completion order, and
// never concurrently with itself or with shouldStop. shouldStop is checked
// before every admission. Tasks not yet admitted when it reports true (or
// when ctx is done) are dropped without a callback. Run returns only after
// every admitted task has completed. A limit <= 0 or an empty task list
// is a no-op.
func Run[T any](ctx context.Context, tasks []Task[T], limit int, onDone func(Result[T]), shouldStop func() bool) {
	if limit <= 0 || len(tasks) == 0 {
		return
	}
	if onDone == nil {
		onDone = func(Result[T]) {}
	}
	if shouldStop == nil {
		shouldStop = Never
	}

	var (
		sem = semaphore.NewWeighted(int64(limit))
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	stop := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return shouldStop()
	}

	for i, task := range tasks {
		if ctx.Err() != nil || stop() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		// A completion may have flipped the predicate while we waited.
		if ctx.Err() != nil || stop() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(index int, task Task[T]) {
			res := runTask(ctx, index, task)

			mu.Lock()
			onDone(res)
			mu.Unlock()

			sem.Release(1)
			wg.Done()
		}(i, task)
	}

	wg.Wait()
}

// Never is a stop predicate that always lets the runner continue.
func Never() bool { return false }

func runTask[T any](ctx context.Context, index int, task Task[T]) (res Result[T]) {
	res.Index = index
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	res.Value, res.Err = task(ctx)
	return res
}
