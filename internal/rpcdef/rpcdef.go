// Package rpcdef provides the pure, allocation-only functions that build
// well-formed request/notification/response envelopes and classify incoming
// messages. It has no dependency on the transport, codec or dispatcher:
// every function here operates purely on map[string]any / []any values,
// mirroring bsonrpc/definitions.py in the original source.
// file: internal/rpcdef/rpcdef.go
package rpcdef

// ProtocolTag names the reserved envelope key carrying the protocol
// version, either "jsonrpc" or "bsonrpc".
type ProtocolTag string

const (
	TagJSONRPC  ProtocolTag = "jsonrpc"
	TagBSONRPC  ProtocolTag = "bsonrpc"
	ProtoVersion            = "2.0"
)

// ParamsPresentation controls how a call with no positional or named
// arguments renders its "params" member.
type ParamsPresentation int

const (
	// ParamsOmitWhenEmpty leaves "params" absent entirely (the default).
	ParamsOmitWhenEmpty ParamsPresentation = iota
	// ParamsEmptyArray renders "params" as an empty array.
	ParamsEmptyArray
)

// Definitions builds and classifies envelopes for one protocol tag.
type Definitions struct {
	Tag ProtocolTag
}

// New returns a Definitions bound to the given protocol tag.
func New(tag ProtocolTag) *Definitions {
	return &Definitions{Tag: tag}
}

func resolveParams(args []any, kwargs map[string]any, singleArg bool) any {
	if singleArg && len(args) == 1 {
		return args[0]
	}
	if len(args) > 0 {
		return args
	}
	if len(kwargs) > 0 {
		return kwargs
	}
	return nil
}

// Request builds a request envelope. id must be non-nil (string or int64).
func (d *Definitions) Request(id any, method string, args []any, kwargs map[string]any, singleArg bool, presentation ParamsPresentation) map[string]any {
	msg := map[string]any{
		string(d.Tag): ProtoVersion,
		"id":          id,
		"method":      method,
	}
	d.applyParams(msg, args, kwargs, singleArg, presentation)
	return msg
}

// Notification builds a notification envelope (no id).
func (d *Definitions) Notification(method string, args []any, kwargs map[string]any, singleArg bool, presentation ParamsPresentation) map[string]any {
	msg := map[string]any{
		string(d.Tag): ProtoVersion,
		"method":      method,
	}
	d.applyParams(msg, args, kwargs, singleArg, presentation)
	return msg
}

func (d *Definitions) applyParams(msg map[string]any, args []any, kwargs map[string]any, singleArg bool, presentation ParamsPresentation) {
	if len(args) > 0 || len(kwargs) > 0 {
		msg["params"] = resolveParams(args, kwargs, singleArg)
		return
	}
	if presentation == ParamsEmptyArray {
		msg["params"] = []any{}
	}
}

// OKResponse builds a successful response envelope.
func (d *Definitions) OKResponse(id any, result any) map[string]any {
	return map[string]any{
		string(d.Tag): ProtoVersion,
		"id":          id,
		"result":      result,
	}
}

// ErrorResponse builds an error response envelope. id may be nil for
// parse-error / invalid-request responses that precede id extraction.
func (d *Definitions) ErrorResponse(id any, errObj any) map[string]any {
	return map[string]any{
		string(d.Tag): ProtoVersion,
		"id":          id,
		"error":       errObj,
	}
}

// --- Classifiers -----------------------------------------------------------

func asMap(msg any) (map[string]any, bool) {
	m, ok := msg.(map[string]any)
	return m, ok
}

func validID(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case string, int, int32, int64, float64:
		return true
	default:
		return false
	}
}

// IsRequest reports whether msg is a request: has a non-null id and a
// string method, no result, no error.
func IsRequest(msg any) bool {
	m, ok := asMap(msg)
	if !ok {
		return false
	}
	method, hasMethod := m["method"].(string)
	_, hasResult := m["result"]
	_, hasError := m["error"]
	return hasMethod && method != "" && validID(m["id"]) && !hasResult && !hasError
}

// IsNotification reports whether msg is a notification: has a string
// method, no id, no result, no error.
func IsNotification(msg any) bool {
	m, ok := asMap(msg)
	if !ok {
		return false
	}
	method, hasMethod := m["method"].(string)
	id, hasID := m["id"]
	_, hasResult := m["result"]
	_, hasError := m["error"]
	return hasMethod && method != "" && (!hasID || id == nil) && !hasResult && !hasError
}

// IsResponse reports whether msg is a response: has id and exactly one of
// result/error.
func IsResponse(msg any) bool {
	m, ok := asMap(msg)
	if !ok {
		return false
	}
	_, hasID := m["id"]
	_, hasResult := m["result"]
	_, hasError := m["error"]
	return hasID && (hasResult != hasError)
}

// IsErrorResponse reports whether msg is a response carrying an error.
func IsErrorResponse(msg any) bool {
	m, ok := asMap(msg)
	if !ok {
		return false
	}
	_, hasError := m["error"]
	return IsResponse(msg) && hasError
}

// IsNilIDErrorResponse reports whether msg is an error response whose id is
// null — undeliverable to any waiter, logged only.
func IsNilIDErrorResponse(msg any) bool {
	m, ok := asMap(msg)
	if !ok {
		return false
	}
	id, hasID := m["id"]
	return IsErrorResponse(msg) && hasID && id == nil
}

// IsBatchRequest reports whether msg is a non-empty slice where every
// element is a request or notification.
func IsBatchRequest(msg any) bool {
	items, ok := msg.([]any)
	if !ok || len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !IsRequest(item) && !IsNotification(item) {
			return false
		}
	}
	return true
}

// IsBatchResponse reports whether msg is a non-empty slice where every
// element is a response.
func IsBatchResponse(msg any) bool {
	items, ok := msg.([]any)
	if !ok || len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !IsResponse(item) {
			return false
		}
	}
	return true
}

// ExtractID returns m["id"] normalized, or nil if m has no usable id.
func ExtractID(m map[string]any) any {
	id, ok := m["id"]
	if !ok {
		return nil
	}
	return NormalizeID(id)
}

// NormalizeID collapses JSON's float64 number decoding (and Go int
// literals) to int64 so ids compare equal regardless of codec.
func NormalizeID(id any) any {
	switch v := id.(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return id
	}
}
