package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map runs mapFunc over the values of an iterator with at most limit calls in
// flight. Results are yielded in completion order, so the typical usage is
//
//	for d, err := range parallel.NewMap(limit, f).Iter(ctx, input) {}
//
// Map is context aware: a canceled context stops feeding new values, and
// results of the calls in flight are dropped. Breaking out of the loop
// cancels the context passed to mapFunc and waits for the calls in flight.
type Map[E, D any] struct {
	limit   int
	mapFunc func(context.Context, E) (D, error)
}

func NewMap[E, D any](limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit < 1 {
		limit = 1
	}
	return &Map[E, D]{
		limit:   limit,
		mapFunc: mapFunc,
	}
}

func (m *Map[E, D]) Iter(ctx context.Context, seq iter.Seq[E]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.limit)
		mapped := make(chan result[D])

		go func() {
			defer close(mapped)
			for entry := range seq {
				if gctx.Err() != nil {
					break
				}
				g.Go(func() error {
					d, err := m.mapFunc(gctx, entry)
					select {
					case <-gctx.Done():
					case mapped <- result[D]{d: d, e: err}:
					}
					return nil
				})
			}
			_ = g.Wait()
		}()

		defer func() {
			cancel()
			for range mapped {
			}
		}()

		for r := range mapped {
			if ctx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}
