// Package socketqueue implements the duplex queue bound to one stream: a
// background receiver decodes incoming frames onto an inbound channel, and a
// background sender drains an outbound channel onto the stream. Close is
// idempotent and unblocks every waiter on either side.
// file: internal/socketqueue/socketqueue.go
package socketqueue

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/bsonrpc/internal/codec"
	"github.com/dkoosis/bsonrpc/internal/framing"
	"github.com/dkoosis/bsonrpc/internal/logging"
	"github.com/dkoosis/bsonrpc/internal/rpcerrors"
)

// readBufferSize is the chunk size the receiver reads from the stream
// before running Framing.Extract over the accumulated buffer.
const readBufferSize = 4096

// outboundCapacity bounds Put's buffering before it blocks the caller.
const outboundCapacity = 64

// Inbound is one item delivered to a SocketQueue consumer: exactly one of
// Message, DecodeErr, FrameErr is set, or Sentinel is true marking
// end-of-stream.
type Inbound struct {
	Message   any
	DecodeErr *rpcerrors.DecodingError
	FrameErr  *rpcerrors.FramingError
	Sentinel  bool
}

// Stream is the duplex byte stream a SocketQueue is bound to.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// SocketQueue binds a Stream to a Framing + Codec pair and runs the
// receiver/sender goroutines.
type SocketQueue struct {
	stream  Stream
	framing framing.Framing
	codec   codec.Codec
	log     logging.Logger

	inbound  chan Inbound
	outbound chan any

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds and starts a SocketQueue's receiver and sender goroutines.
func New(stream Stream, f framing.Framing, c codec.Codec, log logging.Logger) *SocketQueue {
	if log == nil {
		log = logging.GetNoopLogger()
	}
	q := &SocketQueue{
		stream:   stream,
		framing:  f,
		codec:    c,
		log:      log.WithField("component", "socketqueue"),
		inbound:  make(chan Inbound, outboundCapacity),
		outbound: make(chan any, outboundCapacity),
		closed:   make(chan struct{}),
	}
	go q.receiveLoop()
	go q.sendLoop()
	return q
}

// Put enqueues an outgoing message. Non-blocking up to the outbound
// channel's capacity.
func (q *SocketQueue) Put(msg any) {
	select {
	case q.outbound <- msg:
	case <-q.closed:
	}
}

// drainMarker is a sentinel Put onto the outbound channel; the sender
// closes its done channel once every message queued ahead of the marker
// has actually been written to the stream.
type drainMarker struct {
	done chan struct{}
}

// Drain blocks until every message Put before this call has been written
// to the underlying stream (or the queue closes first). Close callers use
// this to avoid closing the stream out from under a response that was
// just Put but not yet flushed.
func (q *SocketQueue) Drain() {
	done := make(chan struct{})
	select {
	case q.outbound <- drainMarker{done: done}:
	case <-q.closed:
		return
	}
	select {
	case <-done:
	case <-q.closed:
	}
}

// Get blocks until an inbound item or the end-of-stream sentinel arrives.
// Once the queue is closed, items already delivered are still returned
// first; after that Get returns the sentinel.
func (q *SocketQueue) Get(ctx context.Context) Inbound {
	select {
	case item, ok := <-q.inbound:
		if !ok {
			return Inbound{Sentinel: true}
		}
		return item
	case <-ctx.Done():
		return Inbound{Sentinel: true}
	case <-q.closed:
		select {
		case item := <-q.inbound:
			return item
		default:
			return Inbound{Sentinel: true}
		}
	}
}

// Close idempotently shuts the queue down: it closes the underlying
// stream (unblocking any in-flight Read/Write), stops the sender, and
// ensures a sentinel is observable by any Get caller.
func (q *SocketQueue) Close() error {
	var closeErr error
	q.closeOnce.Do(func() {
		close(q.closed)
		closeErr = q.stream.Close()
	})
	return closeErr
}

func (q *SocketQueue) receiveLoop() {
	defer func() {
		select {
		case q.inbound <- Inbound{Sentinel: true}:
		case <-q.closed:
		}
	}()

	reader := bufio.NewReaderSize(q.stream, readBufferSize)
	var buf []byte
	chunk := make([]byte, readBufferSize)

	for {
		for {
			frame, rest, err := q.framing.Extract(buf)
			if err != nil {
				var fe *rpcerrors.FramingError
				if !errors.As(err, &fe) {
					fe = rpcerrors.NewFramingError("extract", err)
				}
				q.log.Error("Framing error; closing connection.", "error", fe)
				q.deliver(Inbound{FrameErr: fe})
				_ = q.Close()
				return
			}
			if frame == nil {
				buf = rest
				break
			}
			buf = rest
			msg, derr := q.codec.Decode(frame)
			if derr != nil {
				var de *rpcerrors.DecodingError
				if !errors.As(derr, &de) {
					de = rpcerrors.NewDecodingError(frame, derr)
				}
				q.log.Warn("Decoding error; continuing stream.", "error", de)
				if !q.deliver(Inbound{DecodeErr: de}) {
					return
				}
				continue
			}
			if !q.deliver(Inbound{Message: msg}) {
				return
			}
		}

		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			continue
		}
		if err != nil {
			q.log.Debug("Stream read ended.", "error", err)
			return
		}
	}
}

func (q *SocketQueue) deliver(item Inbound) bool {
	select {
	case q.inbound <- item:
		return true
	case <-q.closed:
		return false
	}
}

func (q *SocketQueue) sendLoop() {
	for {
		select {
		case msg := <-q.outbound:
			if dm, ok := msg.(drainMarker); ok {
				close(dm.done)
				continue
			}
			q.sendOne(msg)
		case <-q.closed:
			return
		}
	}
}

func (q *SocketQueue) sendOne(msg any) {
	payload, err := q.codec.Encode(msg)
	if err != nil {
		q.log.Error("Encoding error; closing connection.", "error", err)
		_ = q.Close()
		return
	}
	frame := q.framing.Wrap(payload)
	if err := writeFull(q.stream, frame); err != nil {
		q.log.Error("Write error; closing connection.", "error", err)
		_ = q.Close()
	}
}

func writeFull(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
