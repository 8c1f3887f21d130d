// Package rpcerr defines the JSON-RPC-compatible error taxonomy carried in
// response envelopes and raised from client calls.
package rpcerr

import (
	"encoding/json"
	"fmt"
)

// Code is a JSON-RPC 2.0 error code, extended with implementation-defined
// values for transport, framing and dispatch failures specific to this
// protocol.
type Code int

const (
	ParseError     Code = -32700
	InvalidRequest Code = -32600
	MethodNotFound Code = -32601
	InvalidParams  Code = -32602
	InternalError  Code = -32603

	ServerError         Code = -32000
	SocketError         Code = -32007
	HandlerTimeout      Code = -32006
	MessageFramingError Code = -32011
)

func (c Code) String() string {
	switch c {
	case ParseError:
		return "PARSE_ERROR"
	case InvalidRequest:
		return "INVALID_REQUEST"
	case MethodNotFound:
		return "METHOD_NOT_FOUND"
	case InvalidParams:
		return "INVALID_PARAMS"
	case InternalError:
		return "INTERNAL_ERROR"
	case ServerError:
		return "SERVER_ERROR"
	case SocketError:
		return "SOCKET_ERROR"
	case HandlerTimeout:
		return "HANDLER_TIMEOUT"
	case MessageFramingError:
		return "MESSAGE_FRAMING_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR_%d", int(c))
	}
}

// Message returns the standard human-readable message for the code.
func (c Code) Message() string {
	switch c {
	case ParseError:
		return "Parse error"
	case InvalidRequest:
		return "Invalid Request"
	case MethodNotFound:
		return "Method not found"
	case InvalidParams:
		return "Invalid params"
	case InternalError:
		return "Internal error"
	case ServerError:
		return "Server error"
	case SocketError:
		return "Socket error"
	case HandlerTimeout:
		return "Handler timeout"
	case MessageFramingError:
		return "Message framing error"
	default:
		return "Unknown error"
	}
}

// Data carries optional structured context alongside an Error.
type Data struct {
	Details string                 `json:"details,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Value   interface{}            `json:"value,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error is the wire representation of a taxonomy error, also usable as a Go
// error via Error().
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    *Data  `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil && e.Data.Details != "" {
		return fmt.Sprintf("rpc error %d: %s - %s", int(e.Code), e.Message, e.Data.Details)
	}
	return fmt.Sprintf("rpc error %d: %s", int(e.Code), e.Message)
}

// New builds a taxonomy error with the code's standard message and optional
// free-text details.
func New(code Code, details string) *Error {
	e := &Error{Code: code, Message: code.Message()}
	if details != "" {
		e.Data = &Data{Details: details}
	}
	return e
}

// NewField builds a validation-flavored error identifying the offending
// field path.
func NewField(code Code, field, details string) *Error {
	return &Error{
		Code:    code,
		Message: code.Message(),
		Data: &Data{
			Details: details,
			Field:   field,
		},
	}
}

// MarshalJSON emits Code as a plain integer, matching the wire contract.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(&struct {
		Code int `json:"code"`
		*alias
	}{Code: int(e.Code), alias: (*alias)(e)})
}

// UnmarshalJSON reads Code back from a plain integer.
func (e *Error) UnmarshalJSON(data []byte) error {
	type alias Error
	aux := &struct {
		Code int `json:"code"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	e.Code = Code(aux.Code)
	return nil
}

// As extracts a *Error from err if it (or something it wraps) is one.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	type wrapper interface{ Unwrap() error }
	if w, ok := err.(wrapper); ok {
		return As(w.Unwrap())
	}
	return nil, false
}
