// file: internal/dispatcher/correlation.go
package dispatcher

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dkoosis/bsonrpc/internal/rpcdef"
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
	"github.com/dkoosis/bsonrpc/internal/tasking"
)

// correlation owns the two outstanding-request maps: single responses keyed
// by id, and batch responses keyed by the tuple of ids in the outgoing
// batch. Each outstanding id lives in exactly one of the two maps until
// completion, per the data-model invariant.
type correlation struct {
	mu       sync.Mutex
	singles  map[any]tasking.Promise
	batches  map[string]batchEntry
}

type batchEntry struct {
	ids     []any
	promise tasking.Promise
}

func newCorrelation() *correlation {
	return &correlation{
		singles: make(map[any]tasking.Promise),
		batches: make(map[string]batchEntry),
	}
}

// RegisterSingle registers a promise for an outstanding single request id.
func (c *correlation) RegisterSingle(id any, p tasking.Promise) {
	id = rpcdef.NormalizeID(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singles[id] = p
}

// DeregisterSingle removes the entry for id. If the promise was never set
// (e.g. caller timed out), it is resolved to rpcerrors.ErrTimeout so the
// waiter observes a deterministic outcome.
func (c *correlation) DeregisterSingle(id any) {
	id = rpcdef.NormalizeID(id)
	c.mu.Lock()
	p, ok := c.singles[id]
	if ok {
		delete(c.singles, id)
	}
	c.mu.Unlock()
	if ok && !p.IsSet() {
		p.Set(nil, rpcerrors.ErrTimeout)
	}
}

// batchKey builds a stable key for a tuple of ids.
func batchKey(ids []any) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%v", rpcdef.NormalizeID(id))
	}
	return strings.Join(parts, "\x00")
}

// RegisterBatch registers a promise for an outstanding batch of ids.
func (c *correlation) RegisterBatch(ids []any, p tasking.Promise) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches[batchKey(ids)] = batchEntry{ids: ids, promise: p}
}

// DeregisterBatch removes the batch entry for ids, resolving to Timeout if
// unset.
func (c *correlation) DeregisterBatch(ids []any) {
	key := batchKey(ids)
	c.mu.Lock()
	e, ok := c.batches[key]
	if ok {
		delete(c.batches, key)
	}
	c.mu.Unlock()
	if ok && !e.promise.IsSet() {
		e.promise.Set(nil, rpcerrors.ErrTimeout)
	}
}

// CompleteSingle resolves the promise registered for id, if any. Returns
// false if no matching registration exists (an unrecognized/expired
// response, logged by the caller).
func (c *correlation) CompleteSingle(id any, value any, err error) bool {
	id = rpcdef.NormalizeID(id)
	c.mu.Lock()
	p, ok := c.singles[id]
	if ok {
		delete(c.singles, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.Set(value, err)
	return true
}

// MatchBatch finds the first registered batch whose id tuple is a superset
// of presentIDs (the ids carried by the incoming batch response), per the
// matching rule in the dispatcher design.
func (c *correlation) MatchBatch(presentIDs map[any]bool) (batchEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.batches {
		if supersets(e.ids, presentIDs) {
			delete(c.batches, key)
			return e, true
		}
	}
	return batchEntry{}, false
}

func supersets(tuple []any, present map[any]bool) bool {
	tupleSet := make(map[any]bool, len(tuple))
	for _, id := range tuple {
		tupleSet[rpcdef.NormalizeID(id)] = true
	}
	for id := range present {
		if !tupleSet[id] {
			return false
		}
	}
	return true
}

// CloseAll resolves every outstanding single and batch promise to err
// (rpcerrors.ErrClosed), used when the endpoint shuts down.
func (c *correlation) CloseAll(err error) {
	c.mu.Lock()
	singles := c.singles
	batches := c.batches
	c.singles = make(map[any]tasking.Promise)
	c.batches = make(map[string]batchEntry)
	c.mu.Unlock()

	for _, p := range singles {
		if !p.IsSet() {
			p.Set(nil, err)
		}
	}
	for _, e := range batches {
		if !e.promise.IsSet() {
			e.promise.Set(nil, err)
		}
	}
}
