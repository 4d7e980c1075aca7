// Package framing implements the interchangeable JSON-RPC framing
// strategies (RFC-7464, Netstring, Frameless) plus the BSON length-prefix
// framing. A Framing turns a byte buffer into discrete message frames and
// back; it never inspects the payload itself.
// file: internal/framing/framing.go
package framing

import (
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
)

// Framing extracts message frames from a byte buffer and wraps outgoing
// message bytes into frames. Extract must be tolerant of partial input:
// it returns (nil, buf, nil) unchanged when buf does not yet contain a
// complete frame, and a *rpcerrors.FramingError when buf is structurally
// impossible (the stream is desynchronised).
type Framing interface {
	// Extract attempts to pull one complete frame's payload out of buf.
	// On success it returns the payload and the remaining, unconsumed
	// bytes. On partial input it returns (nil, buf, nil). On a framing
	// error it returns (nil, buf, err).
	Extract(buf []byte) (frame []byte, rest []byte, err error)

	// Wrap encodes a single message's bytes into a complete frame.
	Wrap(payload []byte) []byte
}

var (
	_ Framing = RFC7464{}
	_ Framing = Netstring{}
	_ Framing = Frameless{}
	_ Framing = BSON{}
)

func frameErr(context string) error {
	return rpcerrors.NewFramingError(context, nil)
}
