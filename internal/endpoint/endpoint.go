// Package endpoint assembles framing, codec, socket queue, dispatcher and
// tasking into the symmetric, bidirectional RPC endpoint: the public surface
// a caller uses to invoke the peer and the surface a service's handlers use
// to call back into it.
// file: internal/endpoint/endpoint.go
package endpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/bsonrpc/internal/codec"
	"github.com/dkoosis/bsonrpc/internal/dispatcher"
	"github.com/dkoosis/bsonrpc/internal/framing"
	"github.com/dkoosis/bsonrpc/internal/lifecycle"
	"github.com/dkoosis/bsonrpc/internal/logging"
	"github.com/dkoosis/bsonrpc/internal/peerproxy"
	"github.com/dkoosis/bsonrpc/internal/rpcdef"
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
	"github.com/dkoosis/bsonrpc/internal/service"
	"github.com/dkoosis/bsonrpc/internal/socketqueue"
	"github.com/dkoosis/bsonrpc/internal/tasking"
)

// IDGenerator produces the next request id an endpoint sends to its peer.
// The default generator is a monotonic per-endpoint counter.
type IDGenerator func() any

// Options configures an Endpoint. Zero values pick the defaults described
// per field.
type Options struct {
	// ProtocolTag selects "jsonrpc" or "bsonrpc" envelopes. Defaults to
	// rpcdef.TagJSONRPC.
	ProtocolTag rpcdef.ProtocolTag

	// Framing selects the wire framing strategy. Required.
	Framing framing.Framing

	// Codec selects the wire encoding. Required.
	Codec codec.Codec

	// Registry supplies the request/notification handlers this endpoint
	// exposes to its peer. A nil registry exposes no methods.
	Registry *service.Registry

	// ThreadingModel selects goroutine-per-task or single-scheduler
	// cooperative tasking. Defaults to tasking.Threads.
	ThreadingModel tasking.ThreadingModel

	// HandlersQuota bounds concurrent in-flight request/notification
	// handlers. 0 means unbounded.
	HandlersQuota int

	// BatchesQuota bounds concurrent in-flight batch dispatches.
	BatchesQuota int

	// NoArgumentsPresentation controls how a call with no args renders its
	// "params" member. Defaults to rpcdef.ParamsOmitWhenEmpty.
	NoArgumentsPresentation rpcdef.ParamsPresentation

	// IDGenerator overrides id generation for outgoing requests. Defaults
	// to a monotonic int64 counter starting at 1.
	IDGenerator IDGenerator

	// DefaultRequestTimeout bounds InvokeRequest/BatchCall when the caller
	// supplies a context with no deadline. Zero means no default timeout.
	DefaultRequestTimeout time.Duration

	// ConnectionID is an opaque label attached to every log line this
	// endpoint emits, for correlating a specific peer connection.
	ConnectionID string

	// Logger receives structured log output. Defaults to a no-op logger.
	Logger logging.Logger
}

func (o *Options) setDefaults() {
	if o.ProtocolTag == "" {
		o.ProtocolTag = rpcdef.TagJSONRPC
	}
	if o.Logger == nil {
		o.Logger = logging.GetNoopLogger()
	}
	if o.ConnectionID != "" {
		o.Logger = o.Logger.WithField("connection_id", o.ConnectionID)
	}
	if o.Registry == nil {
		o.Registry = service.NewRegistry()
	}
}

// Endpoint is one symmetric RPC connection: it issues requests to, and
// serves requests from, the same duplex stream, concurrently.
type Endpoint struct {
	opts Options
	log  logging.Logger

	defs       *rpcdef.Definitions
	queue      *socketqueue.SocketQueue
	tasks      tasking.Tasking
	lifecycle  *lifecycle.Machine
	dispatcher *dispatcher.Dispatcher
	peer       *peerproxy.Proxy

	nextID    atomic.Int64
	closeOnce sync.Once
}

// New builds an Endpoint bound to stream and starts its run loop. The
// returned Endpoint is immediately usable for InvokeRequest/
// InvokeNotification/BatchCall from any goroutine.
func New(stream socketqueue.Stream, opts Options) (*Endpoint, error) {
	if opts.Framing == nil {
		return nil, errors.New("bsonrpc: endpoint.Options.Framing is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("bsonrpc: endpoint.Options.Codec is required")
	}
	opts.setDefaults()

	e := &Endpoint{
		opts:      opts,
		log:       opts.Logger,
		defs:      rpcdef.New(opts.ProtocolTag),
		lifecycle: lifecycle.New(opts.Logger),
	}
	e.queue = socketqueue.New(stream, opts.Framing, opts.Codec, opts.Logger)
	e.tasks = tasking.New(opts.ThreadingModel, opts.Logger)
	e.dispatcher = dispatcher.New(
		e.queue, e.defs, opts.Registry, e.tasks, e.lifecycle, e,
		opts.Logger,
		dispatcher.Options{HandlersQuota: opts.HandlersQuota, BatchesQuota: opts.BatchesQuota},
	)
	e.peer = peerproxy.New(e)

	if err := e.lifecycle.Fire(context.Background(), lifecycle.EventStart); err != nil {
		return nil, err
	}
	e.tasks.Spawn(tasking.GroupDispatcher, func(ctx context.Context) (any, error) {
		e.dispatcher.Run(ctx)
		return nil, nil
	})
	return e, nil
}

// GetPeerProxy returns the named-thunk proxy for calling back into the
// peer, for collaborators that prefer a bound surface over calling
// InvokeRequest/InvokeNotification directly.
func (e *Endpoint) GetPeerProxy() *peerproxy.Proxy {
	return e.peer
}

func (e *Endpoint) nextRequestID() any {
	if e.opts.IDGenerator != nil {
		return e.opts.IDGenerator()
	}
	return e.nextID.Add(1)
}

func (e *Endpoint) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || e.opts.DefaultRequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.opts.DefaultRequestTimeout)
}

// InvokeRequest sends method to the peer as a request and blocks for its
// response. args and kwargs are mutually exclusive; pass nil for the one
// not in use.
func (e *Endpoint) InvokeRequest(ctx context.Context, method string, args []any, kwargs map[string]any) (any, error) {
	if e.lifecycle.IsClosing() {
		return nil, rpcerrors.ErrClosed
	}

	ctx, cancel := e.withDefaultTimeout(ctx)
	defer cancel()

	id := e.nextRequestID()
	msg := e.defs.Request(id, method, args, kwargs, false, e.opts.NoArgumentsPresentation)
	p := e.dispatcher.RegisterSingle(id)
	e.queue.Put(msg)

	v, err := p.Wait(ctx)
	if err != nil {
		e.dispatcher.DeregisterSingle(id)
		if errors.Is(err, context.DeadlineExceeded) {
			err = rpcerrors.ErrTimeout
		}
	}
	return v, err
}

// InvokeNotification sends method to the peer as a fire-and-forget
// notification.
func (e *Endpoint) InvokeNotification(_ context.Context, method string, args []any, kwargs map[string]any) error {
	if e.lifecycle.IsClosing() {
		return rpcerrors.ErrClosed
	}
	msg := e.defs.Notification(method, args, kwargs, false, e.opts.NoArgumentsPresentation)
	e.queue.Put(msg)
	return nil
}

// Call describes one element of a BatchCall: either a request (Method +
// args/kwargs, response expected) or a notification (no response
// expected).
type Call struct {
	Method       string
	Args         []any
	Kwargs       map[string]any
	Notification bool
}

// BatchCall sends every call in calls as a single batch and blocks for the
// aligned results. The returned slice has one entry per request in calls,
// in order (notifications contribute nothing to the result slice).
func (e *Endpoint) BatchCall(ctx context.Context, calls []Call) ([]any, error) {
	if e.lifecycle.IsClosing() {
		return nil, rpcerrors.ErrClosed
	}
	if len(calls) == 0 {
		return nil, errors.New("bsonrpc: BatchCall requires at least one call")
	}

	ctx, cancel := e.withDefaultTimeout(ctx)
	defer cancel()

	batch := make([]any, 0, len(calls))
	var ids []any
	for _, c := range calls {
		if c.Notification {
			batch = append(batch, e.defs.Notification(c.Method, c.Args, c.Kwargs, false, e.opts.NoArgumentsPresentation))
			continue
		}
		id := e.nextRequestID()
		ids = append(ids, id)
		batch = append(batch, e.defs.Request(id, c.Method, c.Args, c.Kwargs, false, e.opts.NoArgumentsPresentation))
	}

	if len(ids) == 0 {
		e.queue.Put(batch)
		return nil, nil
	}

	p := e.dispatcher.RegisterBatch(ids)
	e.queue.Put(batch)

	v, err := p.Wait(ctx)
	if err != nil {
		e.dispatcher.DeregisterBatch(ids)
		if errors.Is(err, context.DeadlineExceeded) {
			err = rpcerrors.ErrTimeout
		}
		return nil, err
	}
	return v.([]any), nil
}

// Close idempotently shuts the endpoint down: it resolves every
// outstanding local caller to rpcerrors.ErrClosed, stops the socket queue,
// and transitions the lifecycle machine to closing. The machine reaches
// closed only when Join observes every task finished.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		_ = e.lifecycle.Fire(context.Background(), lifecycle.EventCloseRequest)
		e.dispatcher.CloseAllPromises(rpcerrors.ErrClosed)
		e.queue.Drain()
		err = e.queue.Close()
	})
	return err
}

// Join blocks until every handler, batch dispatch, and the run loop itself
// have completed, or ctx is done.
func (e *Endpoint) Join(ctx context.Context) error {
	if err := e.tasks.Join(ctx); err != nil {
		return err
	}
	_ = e.lifecycle.Fire(ctx, lifecycle.EventDrained)
	return nil
}
