// Package dgramclient implements the requesting half of the datagram RPC
// framework: for each call it binds an ephemeral reply socket, sends one
// framed request datagram to the server, waits for the correlated
// response on the reply socket, and tears the ephemeral socket down again
// — connectionless, with no persistent session state between calls.
package dgramclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/corvidlabs/dgramrpc/internal/correlation"
	"github.com/corvidlabs/dgramrpc/internal/manifest"
	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
	"github.com/corvidlabs/dgramrpc/internal/sockutil"
	"github.com/corvidlabs/dgramrpc/internal/timeoutmgr"
	"github.com/corvidlabs/dgramrpc/internal/wire"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

// RequestOptions customizes one call. The zero value uses the client's
// DefaultTimeout and an empty channel tag.
type RequestOptions struct {
	Timeout   time.Duration
	ChannelID string
}

func mergeOptions(def time.Duration, opts ...RequestOptions) RequestOptions {
	o := RequestOptions{Timeout: def}
	for _, given := range opts {
		if given.Timeout > 0 {
			o.Timeout = given.Timeout
		}
		if given.ChannelID != "" {
			o.ChannelID = given.ChannelID
		}
	}
	return o
}

// Client sends requests to one server socket path.
type Client struct {
	socketPath string
	config     Config
	codec      *wire.Codec
	logger     *zap.Logger

	manifest  *manifest.Manifest
	validator *manifest.Validator

	timeouts    *timeoutmgr.Manager
	correlation *correlation.Registry
}

// New validates cfg and socketPath and returns a Client bound to it. No
// socket is opened until a request is sent.
func New(socketPath string, cfg Config) (*Client, error) {
	if socketPath == "" {
		return nil, rpcerr.New(rpcerr.SocketError, "socket path cannot be empty")
	}
	if err := sockutil.ValidatePath(socketPath, false, ""); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{
		socketPath:  socketPath,
		config:      cfg,
		codec:       wire.New(cfg.MaxMessageSize),
		logger:      zap.NewNop(),
		timeouts:    timeoutmgr.New(),
		correlation: correlation.New(),
	}, nil
}

// SetLogger replaces the client's zap logger. A nil logger is ignored.
func (c *Client) SetLogger(l *zap.Logger) {
	if l != nil {
		c.logger = l
	}
}

// SetManifest attaches m, enabling argument validation in Send when
// EnableValidation is set.
func (c *Client) SetManifest(m *manifest.Manifest) {
	c.manifest = m
	c.validator = manifest.NewValidator(m)
}

// Manifest returns the manifest previously attached with SetManifest, or
// the one fetched by FetchManifest, or nil.
func (c *Client) Manifest() *manifest.Manifest { return c.manifest }

// SocketPath returns the server socket path this client targets.
func (c *Client) SocketPath() string { return c.socketPath }

// Close cancels every pending correlated request and releases timers.
func (c *Client) Close() error {
	c.correlation.CancelAll()
	c.timeouts.Close()
	return nil
}

// FetchManifest requests the server's "manifest" built-in and attaches the
// result, enabling argument validation for subsequent calls.
func (c *Client) FetchManifest(ctx context.Context) (*manifest.Manifest, error) {
	resp, err := c.Send(ctx, "manifest", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	m, err := manifest.ParseJSON(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fetched manifest: %w", err)
	}
	c.SetManifest(m)
	return m, nil
}

func (c *Client) validateArgs(name string, args map[string]interface{}) error {
	if !c.config.EnableValidation || c.validator == nil {
		return nil
	}
	if !c.manifest.HasRequest(name) {
		return nil
	}
	report := c.validator.ValidateRequest(name, args)
	if !report.Valid {
		return rpcerr.New(rpcerr.InvalidParams, fmt.Sprintf("request '%s' failed argument validation: %v", name, report.Errors))
	}
	return nil
}

// Send performs one synchronous request/response round trip: it binds an
// ephemeral reply socket scoped to this call, sends the framed request,
// and blocks until either a correlated response arrives or ctx/timeout
// elapses. The ephemeral socket is always torn down before Send returns.
func (c *Client) Send(ctx context.Context, name string, args map[string]interface{}, opts ...RequestOptions) (*protocol.Response, error) {
	o := mergeOptions(c.config.DefaultTimeout, opts...)

	if err := c.validateArgs(name, args); err != nil {
		return nil, err
	}

	req := protocol.NewRequest(o.ChannelID, name, args)
	timeoutSeconds := o.Timeout.Seconds()
	req.Timeout = &timeoutSeconds
	replyPath := sockutil.UniqueReplyPath()
	req.ReplyTo = replyPath

	// Size policy is enforced before any syscall: encoding (and therefore
	// the max_message_size check) happens before the reply socket is bound.
	framed, err := c.codec.EncodeDirect(req)
	if err != nil {
		return nil, err
	}

	replyAddr, err := sockutil.MakeAddr(replyPath)
	if err != nil {
		return nil, err
	}
	replyConn, err := net.ListenUnixgram("unixgram", replyAddr)
	if err != nil {
		return nil, rpcerr.New(rpcerr.SocketError, fmt.Sprintf("failed to bind reply socket: %v", err))
	}
	defer func() {
		replyConn.Close()
		_ = sockutil.RemoveSocketFile(replyPath)
	}()

	deadline := time.Now().Add(o.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	serverAddr, err := sockutil.MakeAddr(c.socketPath)
	if err != nil {
		return nil, err
	}
	sendConn, err := net.DialUnix("unixgram", nil, serverAddr)
	if err != nil {
		return nil, rpcerr.New(rpcerr.SocketError, fmt.Sprintf("failed to dial server socket: %v", err))
	}
	defer sendConn.Close()

	if err := sendConn.SetWriteDeadline(time.Now().Add(c.config.DatagramTimeout)); err != nil {
		return nil, rpcerr.New(rpcerr.SocketError, err.Error())
	}
	if _, err := sendConn.Write(framed); err != nil {
		return nil, rpcerr.New(rpcerr.SocketError, fmt.Sprintf("failed to send request datagram: %v", err))
	}

	if err := replyConn.SetReadDeadline(deadline); err != nil {
		return nil, rpcerr.New(rpcerr.SocketError, err.Error())
	}
	buffer := make([]byte, c.config.MaxMessageSize+wire.LengthPrefixSize+64)
	n, err := replyConn.Read(buffer)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, rpcerr.New(rpcerr.HandlerTimeout, fmt.Sprintf("request '%s' timed out waiting for a response", name))
		}
		return nil, rpcerr.New(rpcerr.SocketError, fmt.Sprintf("failed to read response datagram: %v", err))
	}

	payload, _, err := c.codec.DecodeDirect(buffer[:n])
	if err != nil {
		return nil, err
	}
	var resp protocol.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, rpcerr.New(rpcerr.ParseError, fmt.Sprintf("failed to decode response: %v", err))
	}
	if resp.RequestID != req.ID {
		return nil, rpcerr.New(rpcerr.InvalidRequest, fmt.Sprintf("response correlation mismatch: expected %s, got %s", req.ID, resp.RequestID))
	}

	if !resp.Success {
		wireErr := resp.Error
		if wireErr == nil {
			return nil, rpcerr.New(rpcerr.InternalError, "server reported failure without an error envelope")
		}
		details := wireErr.Message
		if wireErr.Data != nil && wireErr.Data.Details != "" {
			details = fmt.Sprintf("%s: %s", wireErr.Message, wireErr.Data.Details)
		}
		return nil, rpcerr.New(rpcerr.Code(wireErr.Code), details)
	}

	if c.config.EnableValidation && c.validator != nil && c.manifest != nil && c.manifest.HasRequest(name) {
		var decoded interface{}
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &decoded); err != nil {
				return nil, rpcerr.New(rpcerr.ParseError, fmt.Sprintf("failed to decode result for response validation: %v", err))
			}
		}
		report := c.validator.ValidateResponse(name, decoded)
		if !report.Valid {
			return nil, rpcerr.New(rpcerr.InvalidParams, fmt.Sprintf("response for '%s' failed shape validation: %v", name, report.Errors))
		}
	}

	return &resp, nil
}

// SendNoResponse sends name/args as a fire-and-forget datagram: no reply
// socket is bound and the call returns as soon as the write completes.
func (c *Client) SendNoResponse(ctx context.Context, name string, args map[string]interface{}) error {
	if err := c.validateArgs(name, args); err != nil {
		return err
	}
	req := protocol.NewRequest("", name, args)

	framed, err := c.codec.EncodeDirect(req)
	if err != nil {
		return err
	}
	serverAddr, err := sockutil.MakeAddr(c.socketPath)
	if err != nil {
		return err
	}
	conn, err := net.DialUnix("unixgram", nil, serverAddr)
	if err != nil {
		return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("failed to dial server socket: %v", err))
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.config.DatagramTimeout)); err != nil {
		return rpcerr.New(rpcerr.SocketError, err.Error())
	}
	if _, err := conn.Write(framed); err != nil {
		return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("failed to send request datagram: %v", err))
	}
	return nil
}

// Ping is a convenience wrapper around the "ping" built-in request.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Send(ctx, "ping", nil)
	return err == nil
}

// TestConnection reports whether the server socket can currently be
// dialed, without sending any data.
func (c *Client) TestConnection(ctx context.Context) error {
	serverAddr, err := sockutil.MakeAddr(c.socketPath)
	if err != nil {
		return err
	}
	conn, err := net.DialUnix("unixgram", nil, serverAddr)
	if err != nil {
		return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("connection test failed: %v", err))
	}
	return conn.Close()
}
