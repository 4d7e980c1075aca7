// file: internal/socketqueue/socketqueue_test.go
package socketqueue

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/bsonrpc/internal/codec"
	"github.com/dkoosis/bsonrpc/internal/framing"
)

func TestSocketQueue_PutGetRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sendQ := New(clientConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)
	recvQ := New(serverConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)
	defer sendQ.Close()
	defer recvQ.Close()

	msg := map[string]any{"jsonrpc": "2.0", "id": int64(1), "method": "ping"}
	sendQ.Put(msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item := recvQ.Get(ctx)

	require.False(t, item.Sentinel)
	require.Nil(t, item.FrameErr)
	require.Nil(t, item.DecodeErr)
	assert.Equal(t, msg, item.Message)
}

func TestSocketQueue_GarbageInputProducesFramingErrorThenSentinel(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	recvQ := New(serverConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)
	defer recvQ.Close()

	go func() {
		_, _ = clientConn.Write([]byte("not a valid frame at all"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first := recvQ.Get(ctx)
	require.NotNil(t, first.FrameErr)

	second := recvQ.Get(ctx)
	assert.True(t, second.Sentinel)
}

func TestSocketQueue_DecodingErrorIsRecoverable(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	sendQ := New(clientConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)
	recvQ := New(serverConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)
	defer sendQ.Close()
	defer recvQ.Close()

	f := framing.RFC7464{}
	go func() {
		_, _ = clientConn.Write(f.Wrap([]byte(`not json`)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bad := recvQ.Get(ctx)
	require.NotNil(t, bad.DecodeErr)

	msg := map[string]any{"jsonrpc": "2.0", "id": int64(1), "result": "ok"}
	sendQ.Put(msg)
	good := recvQ.Get(ctx)
	require.Nil(t, good.DecodeErr)
	assert.Equal(t, msg, good.Message)
}

func TestSocketQueue_CloseIsIdempotent(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	q := New(clientConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}

func TestSocketQueue_DrainFlushesBeforeClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	sendQ := New(clientConn, framing.RFC7464{}, codec.NewJSON(framing.RFC7464{}), nil)

	msg := map[string]any{"jsonrpc": "2.0", "id": int64(1), "result": "ok"}
	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := serverConn.Read(buf)
		received <- buf[:n]
	}()

	sendQ.Put(msg)
	sendQ.Drain()
	require.NoError(t, sendQ.Close())

	select {
	case b := <-received:
		assert.NotEmpty(t, b)
	case <-time.After(time.Second):
		t.Fatal("expected the message to be flushed to the peer before Close returned")
	}
}
