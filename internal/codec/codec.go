// Package codec serializes/deserializes a structured message value to and
// from bytes, combining an encoding (JSON or BSON) with a framing.Framing
// strategy.
// file: internal/codec/codec.go
package codec

// Codec turns a decoded message value (map[string]any for a single
// message, []any for a batch) into bytes ready to hand to framing.Wrap,
// and turns extracted frame bytes back into a message value.
type Codec interface {
	// Encode serializes msg. Returns *rpcerrors.EncodingError on failure.
	Encode(msg any) ([]byte, error)

	// Decode deserializes frame payload bytes into a message value.
	// Returns *rpcerrors.DecodingError on failure.
	Decode(payload []byte) (any, error)

	// SupportsBatch reports whether this codec can encode/decode a batch
	// (a top-level array). BSON does not.
	SupportsBatch() bool
}
