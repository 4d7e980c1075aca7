// file: internal/dispatcher/handlercontext.go
package dispatcher

import (
	"context"
	"sync/atomic"
)

// Caller is the subset of the endpoint's peer-calling surface a handler may
// use. Close and Join are deliberately absent — per the design notes, the
// forbidden operations are simply not part of this interface rather than
// runtime-blocked.
type Caller interface {
	InvokeRequest(ctx context.Context, method string, args []any, kwargs map[string]any) (any, error)
	InvokeNotification(ctx context.Context, method string, args []any, kwargs map[string]any) error
}

// HandlerContext is passed to every service handler. It exposes the
// endpoint's peer-calling operations plus the two one-shot flags a handler
// may raise: Abort and CloseAfterResponse.
type HandlerContext interface {
	Caller

	// Abort immediately closes the connection; the current response (if
	// any) is discarded.
	Abort()

	// CloseAfterResponse requests that, once the current response (or, for
	// a batch, the whole batch response) has been sent, the connection
	// closes.
	CloseAfterResponse()

	// Aborted reports whether Abort was called during this handler's
	// invocation.
	Aborted() bool

	// CloseAfterResponseRequested reports whether CloseAfterResponse was
	// called during this handler's invocation.
	CloseAfterResponseRequested() bool
}

// handlerContext implements HandlerContext for one request/notification
// invocation (or one shared invocation across a batch).
type handlerContext struct {
	caller Caller
	abort  func()

	aborted    atomic.Bool
	closeAfter atomic.Bool
}

func newHandlerContext(caller Caller, abort func()) *handlerContext {
	return &handlerContext{caller: caller, abort: abort}
}

func (h *handlerContext) InvokeRequest(ctx context.Context, method string, args []any, kwargs map[string]any) (any, error) {
	return h.caller.InvokeRequest(ctx, method, args, kwargs)
}

func (h *handlerContext) InvokeNotification(ctx context.Context, method string, args []any, kwargs map[string]any) error {
	return h.caller.InvokeNotification(ctx, method, args, kwargs)
}

func (h *handlerContext) Abort() {
	h.aborted.Store(true)
	if h.abort != nil {
		h.abort()
	}
}

func (h *handlerContext) CloseAfterResponse() {
	h.closeAfter.Store(true)
}

func (h *handlerContext) Aborted() bool { return h.aborted.Load() }

func (h *handlerContext) CloseAfterResponseRequested() bool { return h.closeAfter.Load() }

type handlerContextKey struct{}

// withHandlerContext attaches hctx to ctx for the duration of one handler
// invocation.
func withHandlerContext(ctx context.Context, hctx *handlerContext) context.Context {
	return context.WithValue(ctx, handlerContextKey{}, hctx)
}

// FromContext retrieves the HandlerContext a running handler was invoked
// with. Returns false outside a handler invocation.
func FromContext(ctx context.Context) (HandlerContext, bool) {
	hctx, ok := ctx.Value(handlerContextKey{}).(*handlerContext)
	return hctx, ok
}
