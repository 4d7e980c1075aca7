// file: internal/codec/bson.go
package codec

import (
	"encoding/binary"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/dkoosis/bsonrpc/internal/framing"
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
)

// BSON implements Codec using go.mongodb.org/mongo-driver/bson. BSON-RPC
// supports only top-level mappings, never batches, and the framing is the
// fixed 4-byte length prefix baked into the BSON wire format itself.
type BSON struct {
	MaxFrameSize int
}

// NewBSON builds a BSON codec. maxFrameSize bounds incoming document size;
// zero selects framing.DefaultMaxBSONFrameSize.
func NewBSON(maxFrameSize int) *BSON {
	return &BSON{MaxFrameSize: maxFrameSize}
}

// SupportsBatch implements Codec; BSON-RPC batches are unavailable.
func (*BSON) SupportsBatch() bool { return false }

// Framing returns the framing.Framing matching this codec's configured
// maximum document size.
func (c *BSON) Framing() framing.Framing {
	return framing.BSON{MaxFrameSize: c.MaxFrameSize}
}

// Encode implements Codec. msg must be a map[string]any; batches and other
// non-mapping values are rejected outright. A value bson cannot marshal is
// returned as an EncodingError rather than silently dropped.
func (c *BSON) Encode(msg any) ([]byte, error) {
	m, ok := msg.(map[string]any)
	if !ok {
		return nil, rpcerrors.NewEncodingError(errBSONBatchUnsupported)
	}
	out, err := bson.Marshal(m)
	if err != nil {
		return nil, rpcerrors.NewEncodingError(err)
	}
	return out, nil
}

var errBSONBatchUnsupported = &bsonBatchError{}

type bsonBatchError struct{}

func (*bsonBatchError) Error() string {
	return "BSON-RPC does not support batches or non-mapping top-level values"
}

// Decode implements Codec.
func (c *BSON) Decode(payload []byte) (any, error) {
	if len(payload) < 4 {
		return nil, rpcerrors.NewDecodingError(payload, errBSONTooShort)
	}
	declared := int(int32(binary.LittleEndian.Uint32(payload[:4])))
	if declared != len(payload) {
		return nil, rpcerrors.NewDecodingError(payload, errBSONLengthMismatch)
	}
	var raw bson.M
	if err := bson.Unmarshal(payload, &raw); err != nil {
		return nil, rpcerrors.NewDecodingError(payload, err)
	}
	return normalizeBSON(raw), nil
}

var (
	errBSONTooShort       = &bsonShortError{}
	errBSONLengthMismatch = &bsonLengthError{}
)

type bsonShortError struct{}

func (*bsonShortError) Error() string { return "BSON payload shorter than length prefix" }

type bsonLengthError struct{}

func (*bsonLengthError) Error() string { return "BSON payload length does not match declared length prefix" }

// normalizeBSON converts bson.M / bson.A / bson int32 values into the
// map[string]any / []any / int64 shape the rest of the module expects.
func normalizeBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	case int32:
		return int64(t)
	default:
		return v
	}
}
