// file: internal/framing/framing_test.go
package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRFC7464_WrapExtractRoundTrip(t *testing.T) {
	f := RFC7464{}
	payload := []byte(`{"jsonrpc":"2.0","method":"ping"}`)
	wrapped := f.Wrap(payload)

	frame, rest, err := f.Extract(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, frame)
	assert.Empty(t, rest)
}

func TestRFC7464_PartialInput(t *testing.T) {
	f := RFC7464{}
	wrapped := f.Wrap([]byte(`{"a":1}`))

	for cut := 0; cut < len(wrapped)-1; cut++ {
		frame, rest, err := f.Extract(wrapped[:cut])
		require.NoError(t, err)
		assert.Nil(t, frame)
		assert.Equal(t, wrapped[:cut], rest)
	}
}

func TestRFC7464_MissingStartMarker(t *testing.T) {
	f := RFC7464{}
	_, _, err := f.Extract([]byte("not a frame"))
	require.Error(t, err)
}

func TestRFC7464_TwoFramesInOneBuffer(t *testing.T) {
	f := RFC7464{}
	buf := append(f.Wrap([]byte("one")), f.Wrap([]byte("two"))...)

	frame1, rest, err := f.Extract(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), frame1)

	frame2, rest, err := f.Extract(rest)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), frame2)
	assert.Empty(t, rest)
}

func TestRFC7464_EmbeddedStartMarkerBeforeEndMarker(t *testing.T) {
	f := RFC7464{}
	buf := []byte{rfc7464Start, 'a', rfc7464Start, 'b', rfc7464End}

	_, _, err := f.Extract(buf)
	require.Error(t, err)
}

func TestNetstring_WrapExtractRoundTrip(t *testing.T) {
	f := Netstring{}
	payload := []byte(`{"id":1}`)
	wrapped := f.Wrap(payload)
	assert.Equal(t, "8:{\"id\":1},", string(wrapped))

	frame, rest, err := f.Extract(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, frame)
	assert.Empty(t, rest)
}

func TestNetstring_PartialInput(t *testing.T) {
	f := Netstring{}
	wrapped := f.Wrap([]byte("hello world"))

	frame, rest, err := f.Extract(wrapped[:3])
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, wrapped[:3], rest)
}

func TestNetstring_MissingEndMarker(t *testing.T) {
	f := Netstring{}
	_, _, err := f.Extract([]byte("5:helloX"))
	require.Error(t, err)
}

func TestFrameless_WrapExtractRoundTrip(t *testing.T) {
	f := Frameless{}
	payload := []byte(`{"a":1,"b":"two"}`)

	frame, rest, err := f.Extract(payload)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(frame))
	assert.Empty(t, rest)
}

func TestFrameless_PartialInput(t *testing.T) {
	f := Frameless{}
	partial := []byte(`{"a":1,"b":`)

	frame, rest, err := f.Extract(partial)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, partial, rest)
}

func TestFrameless_EscapedBraceInString(t *testing.T) {
	f := Frameless{}
	payload := []byte(`{"note":"a brace: } and a quote: \""}`)

	frame, rest, err := f.Extract(payload)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(frame))
	assert.Empty(t, rest)
}

func TestFrameless_TwoObjectsBackToBack(t *testing.T) {
	f := Frameless{}
	buf := []byte(`{"a":1}{"b":2}`)

	frame1, rest, err := f.Extract(buf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(frame1))

	frame2, rest, err := f.Extract(rest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(frame2))
	assert.Empty(t, rest)
}

func TestBSON_WrapExtractRoundTrip(t *testing.T) {
	f := BSON{}
	// A minimal well-formed BSON-length-prefixed blob: 5-byte length-only
	// document is the smallest valid declared length per the spec.
	payload := []byte{5, 0, 0, 0, 0}

	frame, rest, err := f.Extract(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, frame)
	assert.Empty(t, rest)
}

func TestBSON_PartialInput(t *testing.T) {
	f := BSON{}
	payload := []byte{10, 0, 0, 0, 1, 2, 3}

	frame, rest, err := f.Extract(payload)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, payload, rest)
}

func TestBSON_OversizedFrameRejected(t *testing.T) {
	f := BSON{MaxFrameSize: 16}
	buf := make([]byte, 4)
	buf[0], buf[1], buf[2], buf[3] = 32, 0, 0, 0 // declares a 32-byte document

	_, _, err := f.Extract(buf)
	require.Error(t, err)
}

func TestBSON_DeclaredLengthBelowMinimum(t *testing.T) {
	f := BSON{}
	buf := []byte{4, 0, 0, 0}

	_, _, err := f.Extract(buf)
	require.Error(t, err)
}
