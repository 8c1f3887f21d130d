package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Name string `json:"name"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(0)
	framed, err := c.Encode("request", samplePayload{Name: "alice"})
	require.NoError(t, err)

	msgType, payload, remainder, err := c.Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, "request", msgType)
	assert.Empty(t, remainder)

	var out samplePayload
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, "alice", out.Name)
}

func TestEncodeDirectDecodeDirectRoundTrip(t *testing.T) {
	c := New(0)
	framed, err := c.EncodeDirect(samplePayload{Name: "bob"})
	require.NoError(t, err)

	payload, remainder, err := c.DecodeDirect(framed)
	require.NoError(t, err)
	assert.Empty(t, remainder)

	var out samplePayload
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, "bob", out.Name)
}

func TestDecodeIncompleteBufferIsNotAHardError(t *testing.T) {
	c := New(0)
	framed, err := c.EncodeDirect(samplePayload{Name: "carol"})
	require.NoError(t, err)

	truncated := framed[:len(framed)-2]
	_, _, err = c.DecodeDirect(truncated)
	require.Error(t, err)
	_, ok := err.(incomplete)
	assert.True(t, ok, "truncated-but-otherwise-valid frame must report the incomplete sentinel")
}

func TestDecodeRejectsOversizedDeclaredLength(t *testing.T) {
	c := New(8)
	framed, err := New(0).EncodeDirect(samplePayload{Name: "this name is long enough to exceed the tiny max frame size"})
	require.NoError(t, err)

	_, _, err = c.DecodeDirect(framed)
	require.Error(t, err)
	_, ok := err.(incomplete)
	assert.False(t, ok, "an over-max declared length is a hard framing error, not incomplete")
}

func TestEncodeRejectsZeroLengthBody(t *testing.T) {
	c := New(0)
	_, err := c.frame(nil)
	assert.Error(t, err)
}

func TestExtractAllHandlesMultipleFramesAndTrailingPartial(t *testing.T) {
	c := New(0)
	f1, _ := c.Encode("request", samplePayload{Name: "one"})
	f2, _ := c.Encode("request", samplePayload{Name: "two"})
	partial, _ := c.Encode("request", samplePayload{Name: "three"})
	partial = partial[:len(partial)-3]

	buf := append(append(append([]byte{}, f1...), f2...), partial...)
	frames, remainder, err := c.ExtractAll(buf)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
	assert.Equal(t, partial, remainder)
}

func TestExtractAllPropagatesHardErrors(t *testing.T) {
	c := New(0)
	buf := []byte{0, 0, 0, 0, 1, 2, 3}
	_, _, err := c.ExtractAll(buf)
	assert.Error(t, err)
}
