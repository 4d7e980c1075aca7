// Package service defines the external-collaborator contract the dispatcher
// consumes: a service object exposes request/notification handler maps and,
// per handler, a declared parameter spec. The core never reflects on a
// handler's Go function signature; registration declares the shape
// up front, matching the design notes' guidance to replace runtime
// introspection with a declared spec.
// file: internal/service/service.go
package service

import (
	"context"
)

// HandlerFunc is a registered request handler. ctx carries the
// handler-context capability object (peer-calling + abort/close-after-
// response), attached by the dispatcher and read back with
// dispatcher.FromContext; args/kwargs are the resolved
// positional/named parameters.
type HandlerFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// NotificationFunc is a registered notification handler: same shape as
// HandlerFunc but no return value reaches the peer.
type NotificationFunc func(ctx context.Context, args []any, kwargs map[string]any) error

// ParamSpec declares a handler's formal parameter shape, replacing runtime
// reflection on the handler's actual Go signature.
type ParamSpec struct {
	// PossibleArgs names every positional/named parameter the handler
	// accepts, in declaration order.
	PossibleArgs []string
	// RequiredCount is how many of PossibleArgs (from the front) have no
	// default and so must be supplied.
	RequiredCount int
	// VariadicPositional reports whether extra positional arguments beyond
	// PossibleArgs are accepted.
	VariadicPositional bool
	// VariadicNamed reports whether extra named arguments beyond
	// PossibleArgs are accepted.
	VariadicNamed bool
}

// Compatible reports whether args/kwargs satisfy this parameter spec, per
// the compatibility rule: with positional args, len(args) must be >=
// required and <= possible (or variadic positional); with named args,
// every required name must be present and extras are only allowed when
// VariadicNamed; with neither, RequiredCount must be zero.
func (p ParamSpec) Compatible(args []any, kwargs map[string]any) bool {
	switch {
	case len(args) > 0:
		return len(args) >= p.RequiredCount &&
			(len(args) <= len(p.PossibleArgs) || p.VariadicPositional)
	case len(kwargs) > 0:
		required := p.PossibleArgs[:min(p.RequiredCount, len(p.PossibleArgs))]
		for _, name := range required {
			if _, ok := kwargs[name]; !ok {
				return false
			}
		}
		if p.VariadicNamed {
			return true
		}
		allowed := make(map[string]bool, len(p.PossibleArgs))
		for _, name := range p.PossibleArgs {
			allowed[name] = true
		}
		for name := range kwargs {
			if !allowed[name] {
				return false
			}
		}
		return true
	default:
		return p.RequiredCount == 0
	}
}

// Registry is the concrete, in-repo implementation of the "service object"
// external collaborator: two lookup maps plus declared specs, built via
// RegisterRequest/RegisterNotification. Dispatcher consumes only the
// RequestHandler/NotificationHandler lookups.
type Registry struct {
	requests      map[string]requestEntry
	notifications map[string]notificationEntry
}

type requestEntry struct {
	fn   HandlerFunc
	spec ParamSpec
}

type notificationEntry struct {
	fn   NotificationFunc
	spec ParamSpec
}

// NewRegistry builds an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		requests:      make(map[string]requestEntry),
		notifications: make(map[string]notificationEntry),
	}
}

// RegisterRequest adds a request handler under method, with its declared
// parameter spec.
func (r *Registry) RegisterRequest(method string, spec ParamSpec, fn HandlerFunc) *Registry {
	r.requests[method] = requestEntry{fn: fn, spec: spec}
	return r
}

// RegisterNotification adds a notification handler under method.
func (r *Registry) RegisterNotification(method string, spec ParamSpec, fn NotificationFunc) *Registry {
	r.notifications[method] = notificationEntry{fn: fn, spec: spec}
	return r
}

// RequestHandler looks up a registered request handler and its spec.
func (r *Registry) RequestHandler(method string) (HandlerFunc, ParamSpec, bool) {
	e, ok := r.requests[method]
	return e.fn, e.spec, ok
}

// NotificationHandler looks up a registered notification handler and its
// spec.
func (r *Registry) NotificationHandler(method string) (NotificationFunc, ParamSpec, bool) {
	e, ok := r.notifications[method]
	return e.fn, e.spec, ok
}
