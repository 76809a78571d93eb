package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int](0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(ctx, i))
	}
	var got []int
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Process(ctx, func(v int) error {
			got = append(got, v)
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, q.Unfinished())
}

func TestQueue_PutBlocksWhenFull(t *testing.T) {
	q := New[string](1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, "a"))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Put(short, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())

	put := make(chan error, 1)
	go func() { put <- q.Put(ctx, "b") }()
	require.NoError(t, q.Process(ctx, func(string) error { return nil }))

	select {
	case err := <-put:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after a slot freed")
	}
}

func TestQueue_ProcessBlocksUntilItem(t *testing.T) {
	q := New[int](0)
	got := make(chan int, 1)
	go func() {
		_ = q.Process(context.Background(), func(v int) error {
			got <- v
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(context.Background(), 7))
	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("Process did not wake")
	}
}

func TestQueue_ProcessCancelled(t *testing.T) {
	q := New[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Process(ctx, func(int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_AckOnErrorAndPanic(t *testing.T) {
	q := New[int](0)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, 1))
	require.NoError(t, q.Put(ctx, 2))

	boom := errors.New("boom")
	assert.ErrorIs(t, q.Process(ctx, func(int) error { return boom }), boom)
	assert.Equal(t, 1, q.Unfinished())

	assert.Panics(t, func() {
		_ = q.Process(ctx, func(int) error { panic("worker crashed") })
	})
	assert.Equal(t, 0, q.Unfinished())
	require.NoError(t, q.Join(ctx))
}

func TestQueue_JoinWaitsForAllAcks(t *testing.T) {
	q := New[int](2)
	ctx := context.Background()
	const n = 50

	var (
		mu   sync.Mutex
		seen int
	)
	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				stop := false
				err := q.Process(ctx, func(v int) error {
					if v < 0 {
						stop = true
						return nil
					}
					time.Sleep(time.Millisecond)
					mu.Lock()
					seen++
					mu.Unlock()
					return nil
				})
				if err != nil || stop {
					return
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, q.Put(ctx, i))
	}
	for w := 0; w < 3; w++ {
		require.NoError(t, q.Put(ctx, -1))
	}
	require.NoError(t, q.Join(ctx))

	mu.Lock()
	assert.Equal(t, n, seen)
	mu.Unlock()
	wg.Wait()
}

func TestQueue_JoinCancelled(t *testing.T) {
	q := New[int](0)
	require.NoError(t, q.Put(context.Background(), 1))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Join(ctx), context.DeadlineExceeded)
}

func TestQueue_Closed(t *testing.T) {
	q := New[int](0)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, 1))
	q.Close()
	assert.ErrorIs(t, q.Put(ctx, 2), ErrClosed)
	require.NoError(t, q.Process(ctx, func(int) error { return nil }))
}
