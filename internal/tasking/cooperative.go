// file: internal/tasking/cooperative.go
package tasking

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkoosis/bsonrpc/internal/logging"
)

// cooperativeTasking runs every handler and batch task body under a single
// execution token: Spawn launches a goroutine per task, same as the threads
// model, but a GroupHandlers or GroupBatches task must hold the scheduler's
// one-slot token before running its body and gives it back before
// returning, so at most one such body is ever actively running and no
// mutex is needed to protect dispatcher correlation state.
//
// GroupDispatcher never acquires the token. That group holds exactly the
// run loop reading off the socket queue, which only classifies a message
// and re-spawns its handling rather than touching handler state directly;
// it must be free to block on the queue without starving every handler
// behind it.
//
// A task body that waits on another task or promise — dispatchBatch
// waiting on its sub-requests, a handler calling back into the peer and
// waiting for the reply — gives its token back for the duration of that
// wait (see yieldDuring) so the work it depends on can acquire the token
// and make progress, then reclaims the token before returning control to
// its caller.
type cooperativeTasking struct {
	log   logging.Logger
	token chan struct{} // weight-1 permit: held by the active handler/batch body
	quota map[Group]chan struct{}

	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

func newCooperative(log logging.Logger) *cooperativeTasking {
	c := &cooperativeTasking{
		log:   log,
		token: make(chan struct{}, 1),
		quota: make(map[Group]chan struct{}),
		idle:  make(chan struct{}, 1),
	}
	c.token <- struct{}{}
	return c
}

func (c *cooperativeTasking) SetQuota(group Group, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		ch := make(chan struct{}, n)
		for i := 0; i < n; i++ {
			ch <- struct{}{}
		}
		c.quota[group] = ch
	} else {
		delete(c.quota, group)
	}
}

// tokenHolderKey marks a context as carrying the scheduler token: the
// goroutine running with this context owns c.token and must give it back
// before blocking, via yieldDuring.
type tokenHolderKey struct{}

func withTokenHolder(ctx context.Context, c *cooperativeTasking) context.Context {
	return context.WithValue(ctx, tokenHolderKey{}, c)
}

func tokenHolderFrom(ctx context.Context) *cooperativeTasking {
	c, _ := ctx.Value(tokenHolderKey{}).(*cooperativeTasking)
	return c
}

// yieldDuring releases the scheduler token for the duration of wait, then
// reclaims it before returning, provided ctx was produced by a
// token-holding task. Called from both cooperativeTask.Wait and
// cooperativePromise.Wait so a handler blocked on another task's result
// doesn't starve the scheduler it depends on.
func yieldDuring(ctx context.Context, wait func()) {
	c := tokenHolderFrom(ctx)
	if c == nil {
		wait()
		return
	}
	c.token <- struct{}{}
	wait()
	<-c.token
}

type cooperativeTask struct {
	done chan Result
}

func (ct *cooperativeTask) Wait(ctx context.Context) Result {
	var result Result
	yieldDuring(ctx, func() {
		select {
		case result = <-ct.done:
		case <-ctx.Done():
			result = Result{Err: ctx.Err()}
		}
	})
	return result
}

func (c *cooperativeTasking) Spawn(group Group, fn func(ctx context.Context) (any, error)) Task {
	c.mu.Lock()
	sem := c.quota[group]
	c.mu.Unlock()

	task := &cooperativeTask{done: make(chan Result, 1)}
	c.trackStart()

	needsToken := group != GroupDispatcher

	go func() {
		defer c.trackDone()
		if sem != nil {
			<-sem
			defer func() { sem <- struct{}{} }()
		}
		ctx := context.Background()
		if needsToken {
			<-c.token
			ctx = withTokenHolder(ctx, c)
			defer func() { c.token <- struct{}{} }()
		}
		task.done <- c.runRecovered(ctx, fn)
	}()
	return task
}

func (c *cooperativeTasking) trackStart() {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
}

func (c *cooperativeTasking) trackDone() {
	c.mu.Lock()
	c.pending--
	empty := c.pending == 0
	c.mu.Unlock()
	if empty {
		select {
		case c.idle <- struct{}{}:
		default:
		}
	}
}

func (c *cooperativeTasking) runRecovered(ctx context.Context, fn func(context.Context) (any, error)) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered panic in cooperative task.", "panic", r)
			result = Result{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn(ctx)
	return Result{Value: v, Err: err}
}

func (c *cooperativeTasking) Join(ctx context.Context) error {
	for {
		c.mu.Lock()
		pending := c.pending
		c.mu.Unlock()
		if pending == 0 {
			return nil
		}
		select {
		case <-c.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *cooperativeTasking) NewPromise() Promise {
	return &cooperativePromise{ready: make(chan struct{}), log: c.log}
}

// cooperativePromise is the cooperative model's Promise. Wait yields the
// scheduler token for the duration of its block, same as cooperativeTask.
type cooperativePromise struct {
	once  sync.Once
	ready chan struct{}
	v     any
	err   error
	set   bool
	mu    sync.Mutex
	log   logging.Logger
}

func (p *cooperativePromise) Set(v any, err error) {
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

func (p *cooperativePromise) IsSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set
}

func (p *cooperativePromise) Wait(ctx context.Context) (any, error) {
	var v any
	var err error
	yieldDuring(ctx, func() {
		select {
		case <-p.ready:
			p.mu.Lock()
			v, err = p.v, p.err
			p.mu.Unlock()
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return v, err
}
