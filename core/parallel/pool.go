package parallel

import (
	"context"
	"runtime"
	"sync"
)

// ForEach runs fn(i) for every i in [0, items) on a bounded pool of worker
// goroutines and returns one error slot per index. workers <= 0 uses the
// number of available CPU cores. The pool never runs more than workers
// goroutines at once, so nested pools stay bounded.
func ForEach(items, workers int, fn func(i int) error) []error {
	return ForEachContext(context.Background(), items, workers, fn)
}

// ForEachContext is ForEach with cancellation. Items not yet dispatched when
// ctx is cancelled receive ctx.Err() in their error slot; items already
// running are allowed to finish.
func ForEachContext(ctx context.Context, items, workers int, fn func(i int) error) []error {
	errs := make([]error, items)
	if items == 0 {
		return errs
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	idx := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				errs[i] = fn(i)
			}
		}()
	}

	// Dispatch indices; on cancellation, mark the remainder and stop.
	// Dispatched and undispatched slots never overlap, so the error slice
	// needs no locking.
	for i := 0; i < items; i++ {
		select {
		case <-ctx.Done():
			for j := i; j < items; j++ {
				errs[j] = ctx.Err()
			}
			close(idx)
			wg.Wait()
			return errs
		case idx <- i:
		}
	}
	close(idx)
	wg.Wait()
	return errs
}
