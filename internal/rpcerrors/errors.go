// file: internal/rpcerrors/errors.go
package rpcerrors

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// FramingError marks a structurally impossible frame: the stream is
// desynchronised and the connection must close. Recoverable only by a new
// connection.
type FramingError struct {
	cause   error
	Context string
}

func NewFramingError(context string, cause error) *FramingError {
	return &FramingError{Context: context, cause: cause}
}

func (e *FramingError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("framing error (%s): %v", e.Context, e.cause)
	}
	return fmt.Sprintf("framing error: %s", e.Context)
}

func (e *FramingError) Unwrap() error { return e.cause }

// DecodingError marks a well-framed message whose payload failed to parse.
// Recoverable: a parse_error response is sent and the stream continues.
type DecodingError struct {
	cause error
	Raw   []byte
}

func NewDecodingError(raw []byte, cause error) *DecodingError {
	return &DecodingError{Raw: raw, cause: errors.Wrap(cause, "decode message")}
}

func (e *DecodingError) Error() string { return e.cause.Error() }
func (e *DecodingError) Unwrap() error { return e.cause }

// EncodingError marks a failure to serialize an outgoing message. Fatal for
// the connection that raised it.
type EncodingError struct {
	cause error
}

func NewEncodingError(cause error) *EncodingError {
	return &EncodingError{cause: errors.Wrap(cause, "encode message")}
}

func (e *EncodingError) Error() string { return e.cause.Error() }
func (e *EncodingError) Unwrap() error { return e.cause }

// SchemaError marks a well-formed value (valid JSON/BSON) that is not a
// recognised request/notification/response/batch envelope.
type SchemaError struct {
	Reason string
}

func NewSchemaError(reason string) *SchemaError {
	return &SchemaError{Reason: reason}
}

func (e *SchemaError) Error() string { return "invalid request: " + e.Reason }

// WireError is the `error` member of a JSON-RPC/BSON-RPC response.
type WireError struct {
	Code    Code            `json:"code" bson:"code"`
	Message string          `json:"message" bson:"message"`
	Data    json.RawMessage `json:"data,omitempty" bson:"data,omitempty"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewWireError builds a WireError, JSON-encoding data when present.
func NewWireError(code Code, message string, data any) *WireError {
	we := &WireError{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			we.Data = raw
		}
	}
	return we
}

// MethodNotFound, InvalidParams, and ServerError are the typed errors a
// caller sees when a peer's error response is promoted back into invoke
// Request's return value.
type MethodNotFound struct{ Method string }

func (e *MethodNotFound) Error() string { return "method not found: " + e.Method }

type InvalidParams struct{ Detail string }

func (e *InvalidParams) Error() string { return "invalid params: " + e.Detail }

type ServerError struct {
	Message string
	Data    json.RawMessage
}

func (e *ServerError) Error() string { return "server error: " + e.Message }

// ErrTimeout is returned when a local invoke_request wait expires before a
// matching response arrives.
var ErrTimeout = errors.New("bsonrpc: timeout")

// ErrClosed is returned to every outstanding caller when the endpoint is
// closed, locally or by the peer.
var ErrClosed = errors.New("bsonrpc: closed")

// FromWireError converts a peer's wire error object into a typed Go error
// for the caller of invoke_request.
func FromWireError(we *WireError) error {
	switch we.Code {
	case CodeMethodNotFound:
		return &MethodNotFound{Method: we.Message}
	case CodeInvalidParams:
		return &InvalidParams{Detail: we.Message}
	default:
		return &ServerError{Message: we.Message, Data: we.Data}
	}
}
