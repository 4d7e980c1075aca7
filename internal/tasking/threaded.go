// file: internal/tasking/threaded.go
package tasking

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dkoosis/bsonrpc/internal/logging"
)

// threadedTasking runs every Spawn call on its own goroutine, bounding each
// group with a weighted semaphore pulled from golang.org/x/sync.
type threadedTasking struct {
	log logging.Logger

	mu    sync.Mutex
	sems  map[Group]*semaphore.Weighted
	wg    sync.WaitGroup
	quota map[Group]int
}

func newThreaded(log logging.Logger) *threadedTasking {
	return &threadedTasking{
		log:   log,
		sems:  make(map[Group]*semaphore.Weighted),
		quota: make(map[Group]int),
	}
}

func (t *threadedTasking) SetQuota(group Group, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quota[group] = n
	if n > 0 {
		t.sems[group] = semaphore.NewWeighted(int64(n))
	} else {
		delete(t.sems, group)
	}
}

type threadedTask struct {
	done chan Result
}

func (tt *threadedTask) Wait(ctx context.Context) Result {
	select {
	case r := <-tt.done:
		return r
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

func (t *threadedTasking) Spawn(group Group, fn func(ctx context.Context) (any, error)) Task {
	t.mu.Lock()
	sem := t.sems[group]
	t.mu.Unlock()

	task := &threadedTask{done: make(chan Result, 1)}
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()
		ctx := context.Background()
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				task.done <- Result{Err: err}
				return
			}
			defer sem.Release(1)
		}
		task.done <- t.runRecovered(ctx, fn)
	}()

	return task
}

func (t *threadedTasking) runRecovered(ctx context.Context, fn func(context.Context) (any, error)) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Recovered panic in spawned task.", "panic", r)
			result = Result{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn(ctx)
	return Result{Value: v, Err: err}
}

func (t *threadedTasking) Join(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *threadedTasking) NewPromise() Promise {
	return newThreadedPromise()
}

type threadedPromise struct {
	once  sync.Once
	ready chan struct{}
	mu    sync.Mutex
	v     any
	err   error
	set   bool
	log   logging.Logger
}

func newThreadedPromise() *threadedPromise {
	return &threadedPromise{ready: make(chan struct{}), log: logging.GetLogger("tasking.promise")}
}

func (p *threadedPromise) Set(v any, err error) {
	didSet := false
	p.once.Do(func() {
		p.mu.Lock()
		p.v, p.err, p.set = v, err, true
		p.mu.Unlock()
		close(p.ready)
		didSet = true
	})
	if !didSet {
		p.log.Warn("Promise already set; ignoring second Set call.")
	}
}

func (p *threadedPromise) IsSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set
}

func (p *threadedPromise) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.ready:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.v, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
