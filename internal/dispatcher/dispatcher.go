// Package dispatcher implements the run loop, routing, argument
// compatibility checking, batch assembly and response correlation described
// in the system design: it is the component where almost all of the core's
// engineering lives.
// file: internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/bsonrpc/internal/lifecycle"
	"github.com/dkoosis/bsonrpc/internal/logging"
	"github.com/dkoosis/bsonrpc/internal/rpcdef"
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
	"github.com/dkoosis/bsonrpc/internal/service"
	"github.com/dkoosis/bsonrpc/internal/socketqueue"
	"github.com/dkoosis/bsonrpc/internal/tasking"
)

// Options configures the handler and batch quotas for a Dispatcher.
type Options struct {
	HandlersQuota int // 0 = unbounded
	BatchesQuota  int
}

// Dispatcher owns the correlation tables and routes inbound messages to
// registered handlers or to waiting callers.
type Dispatcher struct {
	queue     *socketqueue.SocketQueue
	defs      *rpcdef.Definitions
	registry  *service.Registry
	tasks     tasking.Tasking
	lifecycle *lifecycle.Machine
	caller    Caller
	log       logging.Logger

	corr *correlation
}

// New builds a Dispatcher. caller is the endpoint itself (or an adapter
// around it), used to build the HandlerContext passed to every service
// handler.
func New(
	queue *socketqueue.SocketQueue,
	defs *rpcdef.Definitions,
	registry *service.Registry,
	tasks tasking.Tasking,
	lm *lifecycle.Machine,
	caller Caller,
	log logging.Logger,
	opts Options,
) *Dispatcher {
	if log == nil {
		log = logging.GetNoopLogger()
	}
	tasks.SetQuota(tasking.GroupHandlers, opts.HandlersQuota)
	tasks.SetQuota(tasking.GroupBatches, opts.BatchesQuota)
	return &Dispatcher{
		queue:     queue,
		defs:      defs,
		registry:  registry,
		tasks:     tasks,
		lifecycle: lm,
		caller:    caller,
		log:       log.WithField("component", "dispatcher"),
		corr:      newCorrelation(),
	}
}

// RegisterSingle registers a promise awaiting the response for id.
func (d *Dispatcher) RegisterSingle(id any) tasking.Promise {
	p := d.tasks.NewPromise()
	d.corr.RegisterSingle(id, p)
	return p
}

// DeregisterSingle removes the registration for id, resolving it to Timeout
// if no response ever arrived.
func (d *Dispatcher) DeregisterSingle(id any) {
	d.corr.DeregisterSingle(id)
}

// RegisterBatch registers a promise awaiting the aligned results for a
// batch of outstanding request ids.
func (d *Dispatcher) RegisterBatch(ids []any) tasking.Promise {
	p := d.tasks.NewPromise()
	d.corr.RegisterBatch(ids, p)
	return p
}

// DeregisterBatch removes the registration for ids.
func (d *Dispatcher) DeregisterBatch(ids []any) {
	d.corr.DeregisterBatch(ids)
}

// CloseAllPromises resolves every outstanding promise to err. Called by the
// endpoint on Close.
func (d *Dispatcher) CloseAllPromises(err error) {
	d.corr.CloseAll(err)
}

// Run is the dispatcher's main loop: pull from the socket queue, classify,
// route. It returns when the queue delivers its end-of-stream sentinel or
// ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("Dispatcher run loop starting.")
	defer d.log.Info("Dispatcher run loop exiting.")

	for {
		item := d.queue.Get(ctx)

		if item.Sentinel {
			d.log.Debug("Dispatcher observed end-of-stream sentinel.")
			_ = d.lifecycle.Fire(ctx, lifecycle.EventPeerEOF)
			d.corr.CloseAll(rpcerrors.ErrClosed)
			return
		}
		if item.FrameErr != nil {
			d.log.Error("Framing error delivered to dispatcher; closing.", "error", item.FrameErr)
			_ = d.lifecycle.Fire(ctx, lifecycle.EventFramingFatal)
			d.corr.CloseAll(rpcerrors.ErrClosed)
			return
		}
		if item.DecodeErr != nil {
			d.handleParseError(item.DecodeErr)
			continue
		}

		d.route(ctx, item.Message)
	}
}

func (d *Dispatcher) handleParseError(err *rpcerrors.DecodingError) {
	resp := d.defs.ErrorResponse(nil, rpcerrors.NewWireError(rpcerrors.CodeParseError, err.Error(), nil))
	d.queue.Put(resp)
	d.log.Warn("Sent parse_error response for undecodable message.", "error", err)
}

func (d *Dispatcher) route(ctx context.Context, msg any) {
	switch {
	case rpcdef.IsRequest(msg):
		d.tasks.Spawn(tasking.GroupHandlers, func(ctx context.Context) (any, error) {
			d.handleRequest(ctx, msg.(map[string]any), nil)
			return nil, nil
		})
	case rpcdef.IsNotification(msg):
		d.tasks.Spawn(tasking.GroupHandlers, func(ctx context.Context) (any, error) {
			d.handleNotification(ctx, msg.(map[string]any), nil)
			return nil, nil
		})
	case rpcdef.IsResponse(msg):
		d.handleResponse(msg.(map[string]any))
	case rpcdef.IsNilIDErrorResponse(msg):
		d.log.Error("Received error response with null id; no correlation possible.", "message", msg)
	case rpcdef.IsBatchRequest(msg):
		d.tasks.Spawn(tasking.GroupBatches, func(ctx context.Context) (any, error) {
			d.dispatchBatch(ctx, msg.([]any))
			return nil, nil
		})
	case rpcdef.IsBatchResponse(msg):
		d.handleBatchResponse(msg.([]any))
	default:
		d.handleSchemaError(msg)
	}
}

func (d *Dispatcher) handleSchemaError(msg any) {
	var id any
	if m, ok := msg.(map[string]any); ok {
		id = rpcdef.ExtractID(m)
	}
	resp := d.defs.ErrorResponse(id, rpcerrors.NewWireError(rpcerrors.CodeInvalidRequest, rpcerrors.UserFacingMessage(rpcerrors.CodeInvalidRequest), nil))
	d.queue.Put(resp)
	d.log.Error("Invalid request received.", "message", msg)
}

func (d *Dispatcher) getParams(msg map[string]any) ([]any, map[string]any) {
	raw, ok := msg["params"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch p := raw.(type) {
	case []any:
		return p, nil
	case map[string]any:
		return nil, p
	default:
		return nil, nil
	}
}

func (d *Dispatcher) isCompatible(spec service.ParamSpec, args []any, kwargs map[string]any) bool {
	return spec.Compatible(args, kwargs)
}

// --- Request / notification handling ---------------------------------------

func (d *Dispatcher) handleRequest(ctx context.Context, msg map[string]any, hctx *handlerContext) {
	withinBatch := hctx != nil
	if hctx == nil {
		hctx = newHandlerContext(d.caller, d.abortFunc(ctx))
	}

	resp := d.executeRequest(ctx, msg, hctx)

	if !withinBatch {
		if !hctx.Aborted() {
			d.queue.Put(resp)
		}
		d.postProcess(ctx, hctx)
	}
}

func (d *Dispatcher) executeRequest(ctx context.Context, msg map[string]any, hctx *handlerContext) map[string]any {
	id := rpcdef.ExtractID(msg)
	method, _ := msg["method"].(string)
	args, kwargs := d.getParams(msg)

	fn, spec, ok := d.registry.RequestHandler(method)
	if !ok {
		return d.defs.ErrorResponse(id, rpcerrors.NewWireError(rpcerrors.CodeMethodNotFound, method, nil))
	}
	if !d.isCompatible(spec, args, kwargs) {
		return d.defs.ErrorResponse(id, rpcerrors.NewWireError(rpcerrors.CodeInvalidParams, "incompatible arguments for "+method, nil))
	}

	result, err := d.invokeRequestHandler(ctx, fn, hctx, args, kwargs)
	if err != nil {
		return d.defs.ErrorResponse(id, rpcerrors.NewWireError(rpcerrors.CodeServerErrorBase, rpcerrors.UserFacingMessage(rpcerrors.CodeServerErrorBase), err.Error()))
	}
	return d.defs.OKResponse(id, result)
}

func (d *Dispatcher) invokeRequestHandler(ctx context.Context, fn service.HandlerFunc, hctx *handlerContext, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("%v", r)
		}
	}()
	return fn(withHandlerContext(ctx, hctx), args, kwargs)
}

func (d *Dispatcher) handleNotification(ctx context.Context, msg map[string]any, hctx *handlerContext) {
	withinBatch := hctx != nil
	if hctx == nil {
		hctx = newHandlerContext(d.caller, d.abortFunc(ctx))
	}

	method, _ := msg["method"].(string)
	args, kwargs := d.getParams(msg)

	fn, spec, ok := d.registry.NotificationHandler(method)
	if !ok {
		d.log.Error("Unrecognized notification from peer.", "method", method)
		return
	}
	if !d.isCompatible(spec, args, kwargs) {
		d.log.Error("Notification called with incompatible arguments.", "method", method)
		return
	}

	if err := d.invokeNotificationHandler(ctx, fn, hctx, args, kwargs); err != nil {
		d.log.Error("Notification handler error.", "method", method, "error", err)
	}

	if !withinBatch {
		d.postProcess(ctx, hctx)
	}
}

func (d *Dispatcher) invokeNotificationHandler(ctx context.Context, fn service.NotificationFunc, hctx *handlerContext, args []any, kwargs map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("%v", r)
		}
	}()
	return fn(withHandlerContext(ctx, hctx), args, kwargs)
}

func (d *Dispatcher) postProcess(ctx context.Context, hctx *handlerContext) {
	if hctx.Aborted() {
		d.log.Info("Connection aborted in request handler.")
		return
	}
	if hctx.CloseAfterResponseRequested() {
		d.log.Info("Closing connection due to handler-requested close-after-response.")
		_ = d.lifecycle.Fire(ctx, lifecycle.EventCloseRequest)
		_ = d.caller.(closer).Close()
	}
}

// closer lets postProcess and abortFunc trigger the endpoint's full
// shutdown sequence (not just the lifecycle flag) once a handler asked to
// close after responding, or aborted outright.
type closer interface {
	Close() error
}

// abortFunc builds the thunk a handlerContext calls on Abort(): it moves
// the lifecycle to closing and immediately tears the connection down,
// discarding whatever response was in flight, rather than just flagging
// the state machine and leaving the stream running.
func (d *Dispatcher) abortFunc(ctx context.Context) func() {
	return func() {
		_ = d.lifecycle.Fire(ctx, lifecycle.EventAbort)
		_ = d.caller.(closer).Close()
	}
}

// --- Response correlation ---------------------------------------------------

func (d *Dispatcher) handleResponse(msg map[string]any) {
	id := rpcdef.ExtractID(msg)
	if result, ok := msg["result"]; ok {
		if d.corr.CompleteSingle(id, result, nil) {
			return
		}
	} else if errObj, ok := msg["error"]; ok {
		we := toWireError(errObj)
		if d.corr.CompleteSingle(id, nil, rpcerrors.FromWireError(we)) {
			return
		}
	}
	d.log.Error("Unrecognized or expired response from peer.", "message", msg)
}

func toWireError(v any) *rpcerrors.WireError {
	m, ok := v.(map[string]any)
	if !ok {
		return &rpcerrors.WireError{Code: rpcerrors.CodeInternalError, Message: "malformed error object"}
	}
	we := &rpcerrors.WireError{}
	if code, ok := m["code"].(int64); ok {
		we.Code = rpcerrors.Code(code)
	}
	we.Message, _ = m["message"].(string)
	if data, ok := m["data"]; ok && data != nil {
		if raw, err := json.Marshal(data); err == nil {
			we.Data = raw
		}
	}
	return we
}

// --- Batch handling ----------------------------------------------------------

func (d *Dispatcher) dispatchBatch(ctx context.Context, items []any) {
	hctx := newHandlerContext(d.caller, d.abortFunc(ctx))

	type pending struct {
		task tasking.Task
	}
	var requestTasks []pending

	for _, item := range items {
		m := item.(map[string]any)
		if rpcdef.IsRequest(m) {
			task := d.tasks.Spawn(tasking.GroupHandlers, func(ctx context.Context) (any, error) {
				return d.executeRequest(ctx, m, hctx), nil
			})
			requestTasks = append(requestTasks, pending{task: task})
		} else {
			d.tasks.Spawn(tasking.GroupHandlers, func(ctx context.Context) (any, error) {
				d.handleNotification(ctx, m, hctx)
				return nil, nil
			})
		}
	}

	results := make([]any, 0, len(requestTasks))
	for _, p := range requestTasks {
		r := p.task.Wait(ctx)
		if r.Ok() {
			results = append(results, r.Value)
		}
	}

	if len(results) > 0 {
		if !hctx.Aborted() {
			d.queue.Put(results)
		}
	} else {
		d.log.Info("Notification-only batch processed; no response sent.")
	}

	if hctx.CloseAfterResponseRequested() {
		_ = d.lifecycle.Fire(ctx, lifecycle.EventCloseRequest)
		_ = d.caller.(closer).Close()
	}
}

func (d *Dispatcher) handleBatchResponse(items []any) {
	var withoutID []map[string]any
	present := make(map[any]bool)
	byID := make(map[any]map[string]any)

	for _, item := range items {
		m := item.(map[string]any)
		id, hasID := m["id"]
		if !hasID || id == nil {
			withoutID = append(withoutID, m)
			continue
		}
		norm := rpcdef.NormalizeID(id)
		present[norm] = true
		byID[norm] = m
	}

	entry, ok := d.corr.MatchBatch(present)
	if !ok {
		d.log.Error("Unrecognized or expired batch response from peer.", "message", items)
		return
	}

	aligned := make([]any, 0, len(entry.ids))
	nextWithoutID := 0
	for _, id := range entry.ids {
		norm := rpcdef.NormalizeID(id)
		if m, ok := byID[norm]; ok {
			aligned = append(aligned, extractContent(m))
			continue
		}
		if nextWithoutID < len(withoutID) {
			aligned = append(aligned, extractContent(withoutID[nextWithoutID]))
			nextWithoutID++
			continue
		}
		aligned = append(aligned, rpcerrors.ErrTimeout)
	}

	entry.promise.Set(aligned, nil)
}

func extractContent(m map[string]any) any {
	if result, ok := m["result"]; ok {
		return result
	}
	if errObj, ok := m["error"]; ok {
		return rpcerrors.FromWireError(toWireError(errObj))
	}
	return nil
}
