// Package wire implements the length-prefixed JSON frame format shared by
// the datagram client and server.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
)

// LengthPrefixSize is the size of the big-endian frame length prefix.
const LengthPrefixSize = 4

// DefaultMaxFrameSize is the default body size ceiling (10 MiB).
const DefaultMaxFrameSize = 10 * 1024 * 1024

// envelope is the "enveloped" wire wrapper: a type tag plus the raw JSON
// payload, used by Encode/Decode.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Codec encodes and decodes length-prefixed JSON frames with a configurable
// maximum body size.
type Codec struct {
	MaxFrameSize int
}

// New returns a Codec with the given maximum frame body size. A zero or
// negative size falls back to DefaultMaxFrameSize.
func New(maxFrameSize int) *Codec {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Codec{MaxFrameSize: maxFrameSize}
}

func framingErr(details string) error {
	return rpcerr.New(rpcerr.MessageFramingError, details)
}

// Encode wraps payload in a "request"/"response" envelope tagged by
// msgType, serializes it to JSON, and prefixes the result with its
// big-endian length. Fails if the body would exceed MaxFrameSize.
func (c *Codec) Encode(msgType string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, framingErr(fmt.Sprintf("failed to marshal payload: %v", err))
	}
	env := envelope{Type: msgType, Payload: body}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return nil, framingErr(fmt.Sprintf("failed to marshal envelope: %v", err))
	}
	return c.frame(envBytes)
}

// EncodeDirect serializes payload to JSON with no envelope and a length
// prefix. Smaller on the wire than Encode; used when the message type can
// be inferred structurally by the reader.
func (c *Codec) EncodeDirect(payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, framingErr(fmt.Sprintf("failed to marshal payload: %v", err))
	}
	return c.frame(body)
}

func (c *Codec) frame(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, framingErr("zero length message body")
	}
	if len(body) > c.MaxFrameSize {
		return nil, framingErr(fmt.Sprintf("message size %d exceeds maximum %d", len(body), c.MaxFrameSize))
	}
	prefix := make([]byte, LengthPrefixSize)
	binary.BigEndian.PutUint32(prefix, uint32(len(body)))
	out := make([]byte, 0, LengthPrefixSize+len(body))
	out = append(out, prefix...)
	out = append(out, body...)
	return out, nil
}

// incomplete is a sentinel marker distinguishing "not enough bytes yet"
// from a genuinely malformed frame, so ExtractAll can tell them apart.
type incomplete struct{ reason string }

func (i incomplete) Error() string { return i.reason }

// Decode reads exactly one frame from the head of buf. It returns the
// envelope type, the raw JSON payload, and whatever of buf follows the
// frame. Fails with MessageFramingError on any violation of the framing
// contract; a short buffer fails with an internal incomplete marker that
// ExtractAll recognizes but Decode's caller should treat as a hard error.
func (c *Codec) Decode(buf []byte) (msgType string, payload json.RawMessage, remainder []byte, err error) {
	if len(buf) < LengthPrefixSize {
		return "", nil, buf, incomplete{"buffer too small for length prefix"}
	}
	length := binary.BigEndian.Uint32(buf[:LengthPrefixSize])
	if length == 0 {
		return "", nil, buf, framingErr("message length cannot be zero")
	}
	if int(length) > c.MaxFrameSize {
		return "", nil, buf, framingErr(fmt.Sprintf("message length %d exceeds maximum %d", length, c.MaxFrameSize))
	}
	total := LengthPrefixSize + int(length)
	if len(buf) < total {
		return "", nil, buf, incomplete{"buffer too small for complete message"}
	}
	body := buf[LengthPrefixSize:total]
	rest := buf[total:]

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, buf, framingErr(fmt.Sprintf("failed to parse envelope JSON: %v", err))
	}
	if env.Type == "" || len(env.Payload) == 0 {
		return "", nil, buf, framingErr("envelope missing required fields (type, payload)")
	}
	return env.Type, env.Payload, rest, nil
}

// DecodeDirect reads exactly one non-enveloped frame from the head of buf,
// returning the raw body JSON and the remainder.
func (c *Codec) DecodeDirect(buf []byte) (payload json.RawMessage, remainder []byte, err error) {
	if len(buf) < LengthPrefixSize {
		return nil, buf, incomplete{"buffer too small for length prefix"}
	}
	length := binary.BigEndian.Uint32(buf[:LengthPrefixSize])
	if length == 0 {
		return nil, buf, framingErr("message length cannot be zero")
	}
	if int(length) > c.MaxFrameSize {
		return nil, buf, framingErr(fmt.Sprintf("message length %d exceeds maximum %d", length, c.MaxFrameSize))
	}
	total := LengthPrefixSize + int(length)
	if len(buf) < total {
		return nil, buf, incomplete{"buffer too small for complete message"}
	}
	body := make(json.RawMessage, length)
	copy(body, buf[LengthPrefixSize:total])
	return body, buf[total:], nil
}

// Frame is one decoded enveloped message, as returned by ExtractAll.
type Frame struct {
	Type    string
	Payload json.RawMessage
}

// ExtractAll repeatedly decodes frames from the head of buf until fewer
// than LengthPrefixSize bytes, or a declared-but-not-yet-arrived frame,
// remain. A short trailing frame is never an error: its bytes are returned
// as remainder. A malformed complete frame still fails immediately.
func (c *Codec) ExtractAll(buf []byte) ([]Frame, []byte, error) {
	var frames []Frame
	cur := buf
	for len(cur) > 0 {
		msgType, payload, rest, err := c.Decode(cur)
		if err != nil {
			if _, ok := err.(incomplete); ok {
				break
			}
			return nil, buf, err
		}
		frames = append(frames, Frame{Type: msgType, Payload: payload})
		cur = rest
	}
	return frames, cur, nil
}
