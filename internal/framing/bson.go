// file: internal/framing/bson.go
package framing

import "encoding/binary"

// DefaultMaxBSONFrameSize bounds a single BSON document's declared length.
const DefaultMaxBSONFrameSize = 16 * 1024 * 1024 // 16MiB

// BSON implements the BSON wire framing: the first four bytes are a
// little-endian int32 total document length, including themselves.
type BSON struct {
	// MaxFrameSize bounds the declared length. Zero means
	// DefaultMaxBSONFrameSize.
	MaxFrameSize int
}

func (b BSON) maxSize() int {
	if b.MaxFrameSize > 0 {
		return b.MaxFrameSize
	}
	return DefaultMaxBSONFrameSize
}

// Extract implements Framing.
func (b BSON) Extract(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, buf, nil
	}
	length := int(int32(binary.LittleEndian.Uint32(buf[:4])))
	if length < 5 {
		return nil, buf, frameErr("BSON declared length below minimum document size")
	}
	if length > b.maxSize() {
		return nil, buf, frameErr("BSON declared length exceeds configured maximum")
	}
	if len(buf) < length {
		return nil, buf, nil
	}
	return buf[:length], buf[length:], nil
}

// Wrap implements Framing; a BSON document already carries its own
// length prefix, so Wrap is the identity function.
func (b BSON) Wrap(payload []byte) []byte {
	return payload
}
