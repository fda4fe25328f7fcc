package parallel_test

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dxmate/dxmate/internal/parallel"
)

func TestMap(t *testing.T) {
	t.Parallel()

	f := func(_ context.Context, d time.Duration) (int, error) {
		time.Sleep(d)
		return int(d / time.Second), nil
	}
	input := []time.Duration{1 * time.Second, 2 * time.Second, 2 * time.Second, 4 * time.Second}

	var testCases = []struct {
		scenario string
		limit    int
		then     time.Duration
	}{
		{"limit 1", 1, 9 * time.Second},
		{"limit 2", 2, 6 * time.Second},
		{"limit 10", 10, 4 * time.Second},
		{"limit 0 means 1", 0, 9 * time.Second},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				start := time.Now()
				got, err := parallel.Collect(parallel.NewMap(t.Context(), tt.limit, f).Iter(parallel.All(input)))
				require.NoError(t, err)
				require.ElementsMatch(t, []int{1, 2, 2, 4}, got)
				require.Equal(t, tt.then, time.Since(start))
			})
		})
	}
}

func TestMap_Limit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	f := func(_ context.Context, i int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return i, nil
	}

	input := make([]int, 32)
	for i := range input {
		input[i] = i
	}
	got, err := parallel.Collect(parallel.NewMap(t.Context(), 3, f).Iter(parallel.All(input)))
	require.NoError(t, err)
	require.Len(t, got, 32)
	require.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_Errors(t *testing.T) {
	t.Parallel()

	errOdd := errors.New("odd")
	errInput := errors.New("unreadable")
	f := func(_ context.Context, i int) (int, error) {
		if i%2 == 1 {
			return 0, errOdd
		}
		return i, nil
	}
	input := func(yield func(int, error) bool) {
		for i := range 4 {
			if !yield(i, nil) {
				return
			}
		}
		yield(0, errInput)
	}

	got, err := parallel.Collect(parallel.NewMap(t.Context(), 2, f).Iter(iter.Seq2[int, error](input)))
	require.ElementsMatch(t, []int{0, 2}, got)
	require.ErrorIs(t, err, errOdd)
	require.ErrorIs(t, err, errInput)
}

func TestMap_Break(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	f := func(ctx context.Context, i int) (int, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(i) * time.Millisecond):
		}
		return i, nil
	}
	input := make([]int, 100)
	for i := range input {
		input[i] = i + 1
	}

	seen := 0
	for range parallel.NewMap(t.Context(), 2, f).Iter(parallel.All(input)) {
		seen++
		if seen == 3 {
			break
		}
	}
	require.Equal(t, 3, seen)
	require.Less(t, calls.Load(), int32(100))
}
