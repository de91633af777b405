// AngelaMos | 2026
// pool_test.go

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(2, 8)

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		err := p.Submit(func(ctx context.Context) {
			ran.Add(1)
		})
		require.NoError(t, err)
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.EqualValues(t, 5, ran.Load())
	assert.EqualValues(t, 5, p.Stats().Done)
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1)

	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started

	// Worker busy; one slot in the queue.
	require.NoError(t, p.Submit(func(ctx context.Context) {}))

	err := p.Submit(func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.EqualValues(t, 1, p.Stats().Dropped)

	close(block)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	p := NewPool(1, 1)
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit(func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolSubmitDuringShutdownDoesNotPanic(t *testing.T) {
	p := NewPool(2, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := p.Submit(func(ctx context.Context) {})
				if errors.Is(err, ErrPoolClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, p.Shutdown(context.Background()))
	wg.Wait()
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	p := NewPool(1, 4)

	var ran atomic.Int64
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.EqualValues(t, 4, ran.Load())
}

func TestPoolShutdownHonorsDeadline(t *testing.T) {
	p := NewPool(1, 1)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})

	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started

	ctx, cancel := context.WithTimeout(
		context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool(1, 2)

	require.NoError(t, p.Submit(func(ctx context.Context) {
		panic("boom")
	}))

	var ran atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) {
		ran.Store(true)
	}))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, ran.Load(), "worker must survive a panicking task")
}
