// File: bridge/bridge_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(WithLimit(4))
	defer p.Close()

	var done sync.WaitGroup
	var ran int64
	for i := 0; i < 100; i++ {
		done.Add(1)
		err := p.Submit(func() {
			atomic.AddInt64(&ran, 1)
			done.Done()
		})
		require.NoError(t, err)
	}
	done.Wait()
	require.EqualValues(t, 100, atomic.LoadInt64(&ran))
}

func TestPoolHonorsConcurrencyLimit(t *testing.T) {
	const limit = 3
	p := NewPool(WithLimit(limit))
	defer p.Close()

	var current, peak int64
	var done sync.WaitGroup
	for i := 0; i < 30; i++ {
		done.Add(1)
		err := p.Submit(func() {
			defer done.Done()
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
		})
		require.NoError(t, err)
	}
	done.Wait()
	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
	require.Positive(t, atomic.LoadInt64(&peak))
}

func TestPoolOverflowRunsInSubmissionOrder(t *testing.T) {
	p := NewPool(WithLimit(1))
	defer p.Close()

	// Occupy the single worker so everything else lands in the overflow
	// queue, then release it and check FIFO order.
	gate := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-gate }))

	const n = 20
	var mu sync.Mutex
	var order []int
	var done sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		done.Add(1)
		require.NoError(t, p.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done.Done()
		}))
	}
	close(gate)
	done.Wait()

	require.Len(t, order, n)
	for i, got := range order {
		require.Equal(t, i, got)
	}
}

func TestPoolLazyGrowth(t *testing.T) {
	p := NewPool(WithLimit(8))
	defer p.Close()
	require.Zero(t, p.Stats()["workers"])

	var done sync.WaitGroup
	done.Add(1)
	require.NoError(t, p.Submit(func() { done.Done() }))
	done.Wait()
	require.Equal(t, 1, p.Stats()["workers"])
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := NewPool(WithLimit(2))
	p.Close()
	err := p.Submit(func() {})
	require.ErrorIs(t, err, ErrPoolClosed)
	// Close is idempotent.
	p.Close()
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := NewPool(WithLimit(1))
	defer p.Close()

	var done sync.WaitGroup
	done.Add(1)
	require.NoError(t, p.Submit(func() {
		defer done.Done()
		panic("task failure")
	}))
	done.Wait()

	done.Add(1)
	require.NoError(t, p.Submit(func() { done.Done() }))
	done.Wait()
}

func TestGoResolvesFuture(t *testing.T) {
	p := NewPool(WithLimit(2))
	defer p.Close()

	f := Go(p, func() (int, error) { return 42, nil })
	v, err := f.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, v)

	sentinel := errors.New("boom")
	ef := Go(p, func() (int, error) { return 0, sentinel })
	_, err = ef.Wait()
	require.ErrorIs(t, err, sentinel)
}

func TestGoAfterCloseResolvesWithPoolError(t *testing.T) {
	p := NewPool(WithLimit(2))
	p.Close()
	f := Go(p, func() (string, error) { return "never", nil })
	_, err := f.Wait()
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestDiscardedFutureStillResolved(t *testing.T) {
	p := NewPool(WithLimit(1))
	defer p.Close()

	started := make(chan struct{})
	f := Go(p, func() (int, error) {
		close(started)
		time.Sleep(10 * time.Millisecond)
		return 7, nil
	})
	<-started
	f.Discard()

	// The producer keeps running detached and resolves regardless.
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("detached task never resolved its future")
	}
	v, err := f.Wait()
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.True(t, f.Discarded())
}

func TestCloseDrainsOverflowQueue(t *testing.T) {
	p := NewPool(WithLimit(1))

	gate := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-gate }))

	var ran int64
	var done sync.WaitGroup
	for i := 0; i < 5; i++ {
		done.Add(1)
		require.NoError(t, p.Submit(func() {
			atomic.AddInt64(&ran, 1)
			done.Done()
		}))
	}

	// Close while the worker is blocked; already-accepted work must still
	// run to completion.
	p.Close()
	close(gate)
	done.Wait()
	require.EqualValues(t, 5, atomic.LoadInt64(&ran))
}
