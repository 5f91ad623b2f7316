// Package task implements a general worker pool for background region
// work. Nothing in this module submits to it: raft snapshot
// save/load (C4) run synchronously on the caller's goroutine and do not
// use this pool. It is grounded on
// Yisaer-unistore/tikv/raftstore/worker.go's worker/taskRunner split
// and disksing-faketikv's single-purpose background goroutines. Tasks
// report completion through a callback rather than a future, matching
// the pack's Callback-style async contract (raftstore.Callback,
// pdAskSplitTask.callback) rather than introducing a promise type the
// corpus doesn't use.
package task

import (
	"context"
	"sync"

	"github.com/dingodb/region-engine/internal/rerr"
	"go.uber.org/zap"
)

// Task is one unit of background work. Run observes ctx for
// cancellation on Pool.Stop; OnComplete, if set, is invoked exactly
// once with Run's result after it returns.
type Task struct {
	Name       string
	Run        func(ctx context.Context) error
	OnComplete func(err error)
}

const defaultQueueCapacity = 128

// Pool is a fixed-size worker pool with a bounded task queue,
// mirroring worker's buffered-channel-plus-goroutine shape.
type Pool struct {
	log     *zap.Logger
	tasks   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewPool creates a pool with the given worker count and queue
// capacity (defaultQueueCapacity if capacity <= 0). The workers are
// started before NewPool returns, so work can be submitted right away.
func NewPool(log *zap.Logger, workers, capacity int) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		log:    log,
		tasks:  make(chan Task, capacity),
		ctx:    ctx,
		cancel: cancel,
	}
	p.start(workers)
	return p
}

func (p *Pool) start(workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(t)
		}
	}
}

func (p *Pool) run(t Task) {
	err := t.Run(p.ctx)
	if err != nil {
		p.log.Warn("background task failed", zap.String("task", t.Name), zap.Error(err))
	}
	if t.OnComplete != nil {
		t.OnComplete(err)
	}
}

// Submit enqueues t. It fails with rerr.Internal if the queue is full
// or the pool has been stopped, rather than blocking the caller
// indefinitely.
func (p *Pool) Submit(t Task) error {
	select {
	case <-p.ctx.Done():
		return rerr.New(rerr.Internal, "task pool is stopped")
	default:
	}
	select {
	case p.tasks <- t:
		return nil
	default:
		return rerr.New(rerr.Internal, "task queue is full, dropping task %q", t.Name)
	}
}

// Stop cancels the pool's context (visible to in-flight Run calls)
// and waits for every worker goroutine to return.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
