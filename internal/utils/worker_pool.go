package utils

import "sync"

type CompletedTask[T any] struct {
	Result T
	Error  error
}

// RunInPool drains queue with up to maxWorkers goroutines and closes
// completed once every item has been processed. queue must be closed by the
// caller.
func RunInPool[In any, Out any](worker func(In) (Out, error), queue chan In, completed chan CompletedTask[Out], maxWorkers int) {
	workers := max(1, min(len(queue), maxWorkers))

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					res, err := worker(next)
					completed <- CompletedTask[Out]{Result: res, Error: err}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()
}

// ForEach runs worker over items in the pool and returns the first error.
// All items are attempted regardless of failures.
func ForEach[In any](items []In, maxWorkers int, worker func(In) error) error {
	queue := make(chan In, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	completed := make(chan CompletedTask[struct{}], len(items))
	RunInPool(func(in In) (struct{}, error) {
		return struct{}{}, worker(in)
	}, queue, completed, maxWorkers)

	var firstErr error
	for result := range completed {
		if result.Error != nil && firstErr == nil {
			firstErr = result.Error
		}
	}
	return firstErr
}
