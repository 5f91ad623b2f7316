package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(nil, 2, 0)
	defer p.Stop()

	var mu sync.Mutex
	var results []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, p.Submit(Task{
			Name: "t",
			Run: func(ctx context.Context) error {
				return nil
			},
			OnComplete: func(err error) {
				defer wg.Done()
				require.NoError(t, err)
				mu.Lock()
				results = append(results, i)
				mu.Unlock()
			},
		}))
	}
	wg.Wait()
	assert.Len(t, results, 5)
}

func TestPoolPropagatesCancellationOnStop(t *testing.T) {
	p := NewPool(nil, 1, 0)

	started := make(chan struct{})
	var cancelled bool
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(Task{
		Name: "blocker",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			cancelled = true
			return ctx.Err()
		},
		OnComplete: func(err error) { wg.Done() },
	}))

	<-started
	p.Stop()
	wg.Wait()
	assert.True(t, cancelled)
}

func TestSubmitFailsAfterStop(t *testing.T) {
	p := NewPool(nil, 1, 0)
	p.Stop()
	err := p.Submit(Task{Name: "late", Run: func(ctx context.Context) error { return nil }})
	require.Error(t, err)
}

func TestSubmitFailsWhenQueueFull(t *testing.T) {
	p := NewPool(nil, 1, 1)
	defer p.Stop()

	block := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "busy", Run: func(ctx context.Context) error {
		<-block
		return nil
	}}))
	// queue capacity 1: this fills the queue behind the busy worker
	require.NoError(t, p.Submit(Task{Name: "queued", Run: func(ctx context.Context) error { return nil }}))
	// this one should be rejected
	err := p.Submit(Task{Name: "overflow", Run: func(ctx context.Context) error { return nil }})
	assert.Error(t, err)
	close(block)
	time.Sleep(10 * time.Millisecond)
}
