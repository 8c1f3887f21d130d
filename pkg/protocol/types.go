// Package protocol holds the wire-level data model shared by the client and
// server: requests, responses, and the error shape a response carries.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request is a single outbound call: a name that selects a handler, a
// channel tag echoed back on the response, and optional arguments.
type Request struct {
	ID        string                 `json:"id"`
	ChannelID string                 `json:"channel_id"`
	Request   string                 `json:"request"`
	ReplyTo   string                 `json:"reply_to,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Timeout   *float64               `json:"timeout,omitempty"`
	Timestamp float64                `json:"timestamp"`
}

// Response correlates to exactly one Request via RequestID. Exactly one of
// Result/Error is populated.
type Response struct {
	RequestID string          `json:"request_id"`
	ChannelID string          `json:"channel_id"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *WireError      `json:"error,omitempty"`
	Timestamp float64         `json:"timestamp"`
}

// WireError is the response-envelope shape of a taxonomy error: a plain
// integer code (never the named alias), a message, and optional details.
type WireError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *WireEData `json:"data,omitempty"`
}

// WireEData is the optional detail payload on a WireError.
type WireEData struct {
	Details string `json:"details,omitempty"`
}

func now() float64 {
	t := time.Now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// NewRequest builds a Request with a fresh id and current timestamp,
// leaving ReplyTo and Timeout for the caller to fill in.
func NewRequest(channelID, name string, args map[string]interface{}) *Request {
	return &Request{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		Request:   name,
		Args:      args,
		Timestamp: now(),
	}
}

// NewSuccessResponse builds a Response carrying a successful result.
func NewSuccessResponse(requestID, channelID string, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{
		RequestID: requestID,
		ChannelID: channelID,
		Success:   true,
		Result:    raw,
		Timestamp: now(),
	}, nil
}

// NewErrorResponse builds a Response carrying a taxonomy error.
func NewErrorResponse(requestID, channelID string, code int, message, details string) *Response {
	resp := &Response{
		RequestID: requestID,
		ChannelID: channelID,
		Success:   false,
		Error:     &WireError{Code: code, Message: message},
		Timestamp: now(),
	}
	if details != "" {
		resp.Error.Data = &WireEData{Details: details}
	}
	return resp
}

// EffectiveTimeout returns the request's own timeout if set, else def.
func (r *Request) EffectiveTimeout(def time.Duration) time.Duration {
	if r.Timeout == nil {
		return def
	}
	return time.Duration(*r.Timeout * float64(time.Second))
}
