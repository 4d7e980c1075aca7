// file: internal/codec/json.go
package codec

import (
	"bytes"
	"encoding/json"

	"github.com/dkoosis/bsonrpc/internal/framing"
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
)

// jsonEnvelopeKeys defines the stable field order used when encoding a
// single envelope, so two encodings of an equal message produce identical
// bytes (the round-trip law in the testable-properties section requires
// this).
var jsonEnvelopeKeys = []string{"jsonrpc", "bsonrpc", "id", "method", "params", "result", "error"}

// JSON implements Codec for JSON-RPC 2.0 messages, combined with a framing
// strategy for Wrap/Extract.
type JSON struct {
	Framing framing.Framing
}

// NewJSON builds a JSON codec using the given framing strategy.
func NewJSON(f framing.Framing) *JSON {
	return &JSON{Framing: f}
}

// SupportsBatch implements Codec; JSON-RPC batches are supported.
func (JSON) SupportsBatch() bool { return true }

// Encode implements Codec. msg is either map[string]any (single message) or
// []any (batch).
func (c *JSON) Encode(msg any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, msg); err != nil {
		return nil, rpcerrors.NewEncodingError(err)
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, msg any) error {
	switch v := msg.(type) {
	case map[string]any:
		return encodeEnvelope(buf, v)
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			m, ok := item.(map[string]any)
			if !ok {
				return errNotEnvelope
			}
			if err := encodeEnvelope(buf, m); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
}

var errNotEnvelope = &envelopeTypeError{}

type envelopeTypeError struct{}

func (*envelopeTypeError) Error() string { return "batch element is not a map[string]any envelope" }

func encodeEnvelope(buf *bytes.Buffer, m map[string]any) error {
	buf.WriteByte('{')
	first := true
	written := make(map[string]bool, len(m))

	writeField := func(key string) error {
		val, ok := m[key]
		if !ok {
			return nil
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		written[key] = true

		keyBytes, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(valBytes)
		return nil
	}

	for _, key := range jsonEnvelopeKeys {
		if err := writeField(key); err != nil {
			return err
		}
	}
	// Any keys outside the known envelope fields (unlikely, but kept for
	// forward compatibility) are emitted afterwards in map order.
	for key := range m {
		if written[key] {
			continue
		}
		if err := writeField(key); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// Decode implements Codec.
func (c *JSON) Decode(payload []byte) (any, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, rpcerrors.NewDecodingError(payload, err)
	}
	return normalize(raw), nil
}

// normalize converts the generic decode tree (map[string]interface{},
// []interface{}, json.Number, ...) into the map[string]any / []any /
// int64|float64|string|bool|nil shape the rest of the module expects.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}
