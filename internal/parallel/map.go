// Package parallel runs a function over an iterator with bounded
// concurrency. The workspace scans use it to inspect many folders at once.
package parallel

import (
	"context"
	"errors"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d   D
	err error
}

// Map applies mapFunc to every element of an input iterator with at most
// limit calls in flight. Results arrive in completion order, not in input
// order. A cancelled context ends the processing.
//
//	for d, err := range parallel.NewMap(ctx, 4, f).Iter(input) {}
type Map[E, D any] struct {
	ctx     context.Context
	cancel  context.CancelFunc
	g       *errgroup.Group
	gctx    context.Context
	mapped  chan result[D]
	mapFunc func(context.Context, E) (D, error)
}

func NewMap[E, D any](ctx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	limit = max(limit, 1)
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	// one extra slot for the feeding goroutine
	g.SetLimit(limit + 1)

	return &Map[E, D]{
		ctx:     ctx,
		cancel:  cancel,
		g:       g,
		gctx:    gctx,
		mapped:  make(chan result[D], limit),
		mapFunc: mapFunc,
	}
}

func (m *Map[E, D]) send(r result[D]) bool {
	select {
	case <-m.gctx.Done():
		return false
	case m.mapped <- r:
		return true
	}
}

func (m *Map[E, D]) feed(seq iter.Seq2[E, error]) {
	m.g.Go(func() error {
		for entry, err := range seq {
			if err != nil {
				// input errors are results too, the caller decides
				if !m.send(result[D]{err: err}) {
					return m.gctx.Err()
				}
				continue
			}
			if m.gctx.Err() != nil {
				return m.gctx.Err()
			}
			m.g.Go(func() error {
				d, err := m.mapFunc(m.gctx, entry)
				if !m.send(result[D]{d: d, err: err}) {
					return m.gctx.Err()
				}
				return nil
			})
		}
		return nil
	})
}

// Iter starts the workers and yields their results. Stopping the iteration
// early cancels the pending work and waits for the workers to return.
func (m *Map[E, D]) Iter(seq iter.Seq2[E, error]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		m.feed(seq)
		go func() {
			_ = m.g.Wait()
			close(m.mapped)
		}()
		defer func() {
			m.cancel()
			for range m.mapped {
			}
		}()

		for r := range m.mapped {
			if m.ctx.Err() != nil {
				return
			}
			if !yield(r.d, r.err) {
				return
			}
		}
	}
}

// Collect drains seq and returns the values and all errors joined.
func Collect[D any](seq iter.Seq2[D, error]) ([]D, error) {
	var values []D
	var errs []error
	for d, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values = append(values, d)
	}
	return values, errors.Join(errs...)
}

// All adapts a slice to the input of Map.
func All[E any](s []E) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		for _, e := range s {
			if !yield(e, nil) {
				return
			}
		}
	}
}
