// Package tasking abstracts over the two concurrency models an endpoint can
// run under: pre-emptive OS threads (goroutines) or a single cooperative
// scheduler. Dispatcher and SocketQueue depend only on this interface, never
// directly on goroutines or channels, so the same code drives either model.
// file: internal/tasking/tasking.go
package tasking

import (
	"context"

	"github.com/dkoosis/bsonrpc/internal/logging"
)

// ThreadingModel selects which Tasking implementation New builds.
type ThreadingModel int

const (
	// Threads runs every spawned task as its own goroutine.
	Threads ThreadingModel = iota
	// Cooperative runs every spawned task on its own goroutine, but handler
	// and batch task bodies must hold one shared token, so only one of them
	// executes at a time. Dispatcher-group tasks do not take the token.
	Cooperative
)

// Group names the three task pools the dispatcher spawns into.
type Group string

const (
	GroupDispatcher Group = "dispatcher"
	GroupHandlers   Group = "handlers"
	GroupBatches    Group = "batches"
)

// Result is a tagged Left(value)/Right(error) outcome, matching the
// tagged-result convention the design notes require in place of
// exceptions-for-control-flow.
type Result struct {
	Value any
	Err   error
}

// Ok reports whether the task completed without error.
func (r Result) Ok() bool { return r.Err == nil }

// Task is a handle to a spawned unit of work. Wait blocks until the task's
// function returns (or panics, which is recovered and reported as Err).
type Task interface {
	Wait(ctx context.Context) Result
}

// Tasking spawns and bounds concurrent work for one endpoint.
type Tasking interface {
	// Spawn runs fn in the named group, subject to that group's quota (see
	// SetQuota). Returns a Task the caller may Wait on.
	Spawn(group Group, fn func(ctx context.Context) (any, error)) Task

	// SetQuota bounds concurrent in-flight tasks in group to n; n <= 0
	// means unbounded. Must be called before any Spawn into that group.
	SetQuota(group Group, n int)

	// Join blocks until every task across every group has completed, or
	// ctx is done.
	Join(ctx context.Context) error

	// NewPromise returns a fresh one-shot value carrier.
	NewPromise() Promise
}

// Promise is a one-shot value carrier: Set is idempotent (a second call is
// a logged no-op) and Wait blocks until the first Set or ctx cancellation.
type Promise interface {
	Set(v any, err error)
	Wait(ctx context.Context) (any, error)
	IsSet() bool
}

// New builds a Tasking for the given model.
func New(model ThreadingModel, log logging.Logger) Tasking {
	if log == nil {
		log = logging.GetNoopLogger()
	}
	switch model {
	case Cooperative:
		return newCooperative(log)
	default:
		return newThreaded(log)
	}
}
