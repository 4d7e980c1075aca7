// Package peerproxy gives a handler an explicit, typed surface for calling
// back into the peer, in place of the dynamic attribute-forwarding the
// original library used: every callable method is a named thunk built once,
// rather than resolved by name at call time.
// file: internal/peerproxy/peerproxy.go
package peerproxy

import "context"

// Caller is the subset of the endpoint a Proxy forwards onto. It is
// structurally identical to dispatcher.Caller; kept as a separate
// declaration so this package has no dependency on dispatcher.
type Caller interface {
	InvokeRequest(ctx context.Context, method string, args []any, kwargs map[string]any) (any, error)
	InvokeNotification(ctx context.Context, method string, args []any, kwargs map[string]any) error
}

// RequestThunk is a bound call to one peer method that expects a response.
type RequestThunk func(ctx context.Context, args ...any) (any, error)

// NotificationThunk is a bound fire-and-forget call to one peer method.
type NotificationThunk func(ctx context.Context, args ...any) error

// Proxy builds named thunks over a Caller.
type Proxy struct {
	caller Caller
}

// New builds a Proxy over caller.
func New(caller Caller) *Proxy {
	return &Proxy{caller: caller}
}

// Request returns a thunk that invokes method as a request, passing args
// positionally.
func (p *Proxy) Request(method string) RequestThunk {
	return func(ctx context.Context, args ...any) (any, error) {
		return p.caller.InvokeRequest(ctx, method, args, nil)
	}
}

// Notification returns a thunk that invokes method as a notification.
func (p *Proxy) Notification(method string) NotificationThunk {
	return func(ctx context.Context, args ...any) error {
		return p.caller.InvokeNotification(ctx, method, args, nil)
	}
}

// BindRequests builds a named thunk for every method in methods, for
// callers that want a fixed, explicit surface declared up front instead of
// calling Request per method name ad hoc.
func (p *Proxy) BindRequests(methods ...string) map[string]RequestThunk {
	out := make(map[string]RequestThunk, len(methods))
	for _, m := range methods {
		out[m] = p.Request(m)
	}
	return out
}

// BindNotifications builds a named thunk for every notification method in
// methods.
func (p *Proxy) BindNotifications(methods ...string) map[string]NotificationThunk {
	out := make(map[string]NotificationThunk, len(methods))
	for _, m := range methods {
		out[m] = p.Notification(m)
	}
	return out
}
