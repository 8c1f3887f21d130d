package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestAssignsIDAndTimestamp(t *testing.T) {
	r := NewRequest("chan-1", "ping", nil)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "chan-1", r.ChannelID)
	assert.Equal(t, "ping", r.Request)
	assert.Greater(t, r.Timestamp, float64(0))
}

func TestNewSuccessResponseMarshalsResult(t *testing.T) {
	resp, err := NewSuccessResponse("req-1", "chan-1", map[string]interface{}{"ok": true})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"ok": true}`, string(resp.Result))
}

func TestNewErrorResponseOmitsDataWhenDetailsEmpty(t *testing.T) {
	resp := NewErrorResponse("req-1", "chan-1", -32601, "Method not found", "")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Nil(t, resp.Error.Data)
}

func TestNewErrorResponseIncludesDetails(t *testing.T) {
	resp := NewErrorResponse("req-1", "chan-1", -32602, "Invalid params", "missing field 'name'")
	require.NotNil(t, resp.Error.Data)
	assert.Equal(t, "missing field 'name'", resp.Error.Data.Details)
}

func TestEffectiveTimeoutFallsBackToDefault(t *testing.T) {
	r := &Request{}
	assert.Equal(t, 10*time.Second, r.EffectiveTimeout(10*time.Second))
}

func TestEffectiveTimeoutUsesOwnValue(t *testing.T) {
	own := 2.5
	r := &Request{Timeout: &own}
	assert.Equal(t, time.Duration(2.5*float64(time.Second)), r.EffectiveTimeout(30*time.Second))
}
