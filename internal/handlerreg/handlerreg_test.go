package handlerreg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

func TestDispatchReturnsMethodNotFoundForUnregistered(t *testing.T) {
	r := New(0)
	result := r.Dispatch(&protocol.Request{Request: "missing"})
	require.NotNil(t, result.Err)
	assert.Equal(t, rpcerr.MethodNotFound, result.Err.Code)
}

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register("greet", NewStringHandler(func(req *protocol.Request) (string, error) {
		return "hello", nil
	})))

	result := r.Dispatch(&protocol.Request{Request: "greet"})
	assert.Nil(t, result.Err)
	assert.Equal(t, "hello", result.Value)
}

func TestHandlerErrorIsWrappedAsInternalError(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register("fail", NewStringHandler(func(req *protocol.Request) (string, error) {
		return "", fmt.Errorf("plain failure")
	})))

	result := r.Dispatch(&protocol.Request{Request: "fail"})
	require.NotNil(t, result.Err)
	assert.Equal(t, rpcerr.InternalError, result.Err.Code)
}

func TestHandlerRpcErrIsPreservedNotRewrapped(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register("denied", NewStringHandler(func(req *protocol.Request) (string, error) {
		return "", rpcerr.New(rpcerr.InvalidParams, "bad arg")
	})))

	result := r.Dispatch(&protocol.Request{Request: "denied"})
	require.NotNil(t, result.Err)
	assert.Equal(t, rpcerr.InvalidParams, result.Err.Code)
}

func TestRegisterEnforcesMaxHandlers(t *testing.T) {
	r := New(1)
	require.NoError(t, r.Register("first", NewStringHandler(func(req *protocol.Request) (string, error) { return "", nil })))
	err := r.Register("second", NewStringHandler(func(req *protocol.Request) (string, error) { return "", nil }))
	assert.Error(t, err)
}

func TestReRegisteringSameNameDoesNotCountTowardCapacity(t *testing.T) {
	r := New(1)
	h := NewStringHandler(func(req *protocol.Request) (string, error) { return "", nil })
	require.NoError(t, r.Register("only", h))
	assert.NoError(t, r.Register("only", h))
}

func TestUnregisterAndHas(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register("temp", NewBoolHandler(func(req *protocol.Request) (bool, error) { return true, nil })))
	assert.True(t, r.Has("temp"))
	assert.True(t, r.Unregister("temp"))
	assert.False(t, r.Has("temp"))
	assert.False(t, r.Unregister("temp"))
}

func TestAsyncHandlerBlocksUntilReported(t *testing.T) {
	r := New(0)
	require.NoError(t, r.Register("async", NewAsyncObjectHandler(func(req *protocol.Request) (map[string]interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})))

	result := r.Dispatch(&protocol.Request{Request: "async"})
	assert.Nil(t, result.Err)
	assert.Equal(t, map[string]interface{}{"ok": true}, result.Value)
}
