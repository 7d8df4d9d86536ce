package concurrency

import (
	"context"
	"sync"
)

// Options bounds a fan-out.
type Options struct {
	// MaxWorkers caps concurrent calls. Values below 2 run the items in order
	// on the calling goroutine.
	MaxWorkers int
}

// ForEach calls fn for every item and collects the non-nil errors. Items not
// yet started when ctx is cancelled are skipped and ctx.Err() is reported
// once.
func ForEach[T any](
	ctx context.Context,
	items []T,
	opts Options,
	fn func(ctx context.Context, index int, item T) error,
) []error {
	if len(items) == 0 {
		return nil
	}

	workers := opts.MaxWorkers
	if workers > len(items) {
		workers = len(items)
	}
	if workers < 2 {
		return sequential(ctx, items, fn)
	}

	jobs := make(chan int)
	errs := make(chan error, len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(ctx, i, items[i]); err != nil {
					errs <- err
				}
			}
		}()
	}

	var cancelled error
feed:
	for i := range items {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	var out []error
	for err := range errs {
		out = append(out, err)
	}
	if cancelled != nil {
		out = append(out, cancelled)
	}
	return out
}

func sequential[T any](ctx context.Context, items []T, fn func(context.Context, int, T) error) []error {
	var out []error
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return append(out, err)
		}
		if err := fn(ctx, i, item); err != nil {
			out = append(out, err)
		}
	}
	return out
}
