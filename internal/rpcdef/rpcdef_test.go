// file: internal/rpcdef/rpcdef_test.go
package rpcdef

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinitions_RequestAndNotification(t *testing.T) {
	d := New(TagJSONRPC)

	req := d.Request(int64(1), "swapper", []any{"hi"}, nil, false, ParamsOmitWhenEmpty)
	assert.Equal(t, "2.0", req["jsonrpc"])
	assert.Equal(t, int64(1), req["id"])
	assert.Equal(t, "swapper", req["method"])
	assert.Equal(t, []any{"hi"}, req["params"])

	notif := d.Notification("yaman", nil, nil, false, ParamsOmitWhenEmpty)
	_, hasID := notif["id"]
	assert.False(t, hasID)
	_, hasParams := notif["params"]
	assert.False(t, hasParams)
}

func TestDefinitions_EmptyArgsPresentation(t *testing.T) {
	d := New(TagJSONRPC)

	omitted := d.Request(int64(1), "ping", nil, nil, false, ParamsOmitWhenEmpty)
	_, hasParams := omitted["params"]
	assert.False(t, hasParams)

	emptyArray := d.Request(int64(1), "ping", nil, nil, false, ParamsEmptyArray)
	assert.Equal(t, []any{}, emptyArray["params"])
}

func TestDefinitions_OKAndErrorResponse(t *testing.T) {
	d := New(TagBSONRPC)

	ok := d.OKResponse(int64(5), "result-value")
	assert.Equal(t, "2.0", ok["bsonrpc"])
	assert.Equal(t, "result-value", ok["result"])

	errResp := d.ErrorResponse(nil, map[string]any{"code": int64(-32700), "message": "Parse error"})
	assert.Nil(t, errResp["id"])
	assert.NotNil(t, errResp["error"])
}

func TestIsRequest(t *testing.T) {
	assert.True(t, IsRequest(map[string]any{"id": int64(1), "method": "swapper"}))
	assert.False(t, IsRequest(map[string]any{"method": "swapper"}))                       // no id: notification
	assert.False(t, IsRequest(map[string]any{"id": int64(1), "result": "x"}))              // response
	assert.False(t, IsRequest(map[string]any{"id": int64(1), "method": "x", "result": 1})) // both
}

func TestIsNotification(t *testing.T) {
	assert.True(t, IsNotification(map[string]any{"method": "yaman"}))
	assert.False(t, IsNotification(map[string]any{"id": int64(1), "method": "yaman"}))
}

func TestIsResponse(t *testing.T) {
	assert.True(t, IsResponse(map[string]any{"id": int64(1), "result": "ok"}))
	assert.True(t, IsResponse(map[string]any{"id": int64(1), "error": map[string]any{}}))
	assert.False(t, IsResponse(map[string]any{"id": int64(1), "result": "ok", "error": nil}))
	assert.False(t, IsResponse(map[string]any{"method": "x"}))
}

func TestIsNilIDErrorResponse(t *testing.T) {
	assert.True(t, IsNilIDErrorResponse(map[string]any{"id": nil, "error": map[string]any{"code": int64(-32700)}}))
	assert.False(t, IsNilIDErrorResponse(map[string]any{"id": int64(1), "error": map[string]any{}}))
}

func TestIsBatchRequestAndResponse(t *testing.T) {
	batchReq := []any{
		map[string]any{"id": int64(1), "method": "a"},
		map[string]any{"method": "b"},
	}
	assert.True(t, IsBatchRequest(batchReq))
	assert.False(t, IsBatchResponse(batchReq))

	batchResp := []any{
		map[string]any{"id": int64(1), "result": "ok"},
		map[string]any{"id": int64(2), "error": map[string]any{}},
	}
	assert.True(t, IsBatchResponse(batchResp))
	assert.False(t, IsBatchRequest(batchResp))

	assert.False(t, IsBatchRequest([]any{}))
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, int64(5), NormalizeID(float64(5)))
	assert.Equal(t, int64(5), NormalizeID(5))
	assert.Equal(t, int64(5), NormalizeID(int32(5)))
	assert.Equal(t, "abc", NormalizeID("abc"))
}

func TestExtractID(t *testing.T) {
	assert.Equal(t, int64(7), ExtractID(map[string]any{"id": float64(7)}))
	assert.Nil(t, ExtractID(map[string]any{}))
}
