// Package dgramserver implements the request/response server half of the
// datagram RPC framework: it binds a Unix-domain SOCK_DGRAM socket, decodes
// one framed request per datagram, dispatches it to a registered handler
// (or answers a built-in request directly), and sends the framed response
// back to the reply path the request named.
package dgramserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/corvidlabs/dgramrpc/internal/handlerreg"
	"github.com/corvidlabs/dgramrpc/internal/manifest"
	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
	"github.com/corvidlabs/dgramrpc/internal/sockutil"
	"github.com/corvidlabs/dgramrpc/internal/wire"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

// pollInterval bounds how long Stop may take to interrupt the receive
// loop: the loop rechecks the running flag every time a read deadline
// expires, never more than pollInterval after Stop is called.
const pollInterval = 1 * time.Second

// Server answers requests delivered over a SOCK_DGRAM Unix-domain socket.
type Server struct {
	config    Config
	codec     *wire.Codec
	handlers  *handlerreg.Registry
	manifest  *manifest.Manifest
	validator *manifest.Validator
	logger    *zap.Logger
	activity  *activityTracker
	sem       *semaphore.Weighted

	events

	mu         sync.Mutex
	conn       *net.UnixConn
	socketPath string
	running    bool
	wg         sync.WaitGroup
	startedAt  time.Time
}

// New returns a Server configured by cfg. An unset MaxConnections or
// DefaultTimeout falls back to DefaultConfig's values.
func New(cfg Config) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultConfig().MaxConnections
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultConfig().MaxMessageSize
	}
	return &Server{
		config:   cfg,
		codec:    wire.New(cfg.MaxMessageSize),
		handlers: handlerreg.New(0),
		logger:   zap.NewNop(),
		activity: newActivityTracker(cfg.MaxConnections),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
	}
}

// SetLogger replaces the server's zap logger. A nil logger is ignored.
func (s *Server) SetLogger(l *zap.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetManifest attaches m, enabling the "manifest" built-in request and
// binding the validator returned by Validator. Incoming requests are not
// validated against m by the dispatch path.
func (s *Server) SetManifest(m *manifest.Manifest) {
	s.manifest = m
	s.validator = manifest.NewValidator(m)
}

// RegisterHandler registers handler under name. Fails if name collides
// with a reserved built-in request.
func (s *Server) RegisterHandler(name string, handler handlerreg.Handler) error {
	if builtinNames[name] {
		return reservedNameErr(name)
	}
	return s.handlers.Register(name, handler)
}

// Validator exposes the manifest validator bound by SetManifest, or nil if
// none is configured.
func (s *Server) Validator() *manifest.Validator { return s.validator }

// StartListening binds path and runs the receive loop until Stop is
// called. It blocks the calling goroutine. A failure to bind is returned;
// read errors inside the loop are logged, emitted as "error" events, and
// the loop keeps running. Before returning it waits for in-flight handler
// goroutines to finish.
func (s *Server) StartListening(path string) error {
	if err := sockutil.ValidatePath(path, false, ""); err != nil {
		return err
	}
	if s.config.CleanupOnStart {
		if err := sockutil.RemoveSocketFile(path); err != nil {
			return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("cannot remove stale socket file: %v", err))
		}
	}
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("cannot resolve socket address: %v", err))
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("cannot bind socket: %v", err))
	}

	s.mu.Lock()
	s.conn = conn
	s.socketPath = path
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("listening", zap.String("path", path))
	s.emit("listening", path)

	buffer := make([]byte, s.config.MaxMessageSize+wire.LengthPrefixSize+64)
	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			break
		}

		_ = conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, _, err := conn.ReadFromUnix(buffer)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.mu.Lock()
			stillRunning := s.running
			s.mu.Unlock()
			if !stillRunning {
				break
			}
			s.logger.Warn("read error", zap.Error(err))
			s.emit("error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleDatagram(data)
		}()
	}

	s.wg.Wait()
	if s.config.CleanupOnShutdown {
		_ = sockutil.RemoveSocketFile(path)
	}
	s.emit("shutdown", path)
	return nil
}

// Stop signals the receive loop to exit and closes the listening socket,
// returning without waiting for in-flight handler goroutines; the caller
// of StartListening observes its own return once those have finished.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsRunning reports whether the receive loop is active.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) handleDatagram(data []byte) {
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	payload, _, err := s.codec.DecodeDirect(data)
	if err != nil {
		s.logger.Warn("frame decode failed", zap.Error(err))
		s.emit("error", err)
		return
	}

	var req protocol.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("request decode failed", zap.Error(err))
		s.emit("error", err)
		return
	}

	s.activity.Touch(req.ChannelID, req.ReplyTo)
	s.emit("request", &req)

	resp := s.processRequest(&req)

	s.emit("response", resp)
	if req.ReplyTo != "" {
		s.sendResponse(resp, req.ReplyTo)
	}
}

func (s *Server) processRequest(req *protocol.Request) *protocol.Response {
	if result, rpcErr, handled := s.handleBuiltin(req); handled {
		if rpcErr != nil {
			return protocol.NewErrorResponse(req.ID, req.ChannelID, int(rpcErr.Code), rpcErr.Message, detailOf(rpcErr))
		}
		resp, err := protocol.NewSuccessResponse(req.ID, req.ChannelID, result)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, req.ChannelID, int(rpcerr.InternalError), err.Error(), "")
		}
		return resp
	}

	deadline := req.EffectiveTimeout(s.config.DefaultTimeout)
	if s.config.DefaultTimeout > 0 && deadline > s.config.DefaultTimeout {
		deadline = s.config.DefaultTimeout
	}

	type outcome struct {
		res handlerreg.Result
	}
	done := make(chan outcome, 1)
	go func() {
		done <- outcome{res: s.handlers.Dispatch(req)}
	}()

	select {
	case o := <-done:
		if o.res.Err != nil {
			return protocol.NewErrorResponse(req.ID, req.ChannelID, int(o.res.Err.Code), o.res.Err.Message, detailOf(o.res.Err))
		}
		resp, err := protocol.NewSuccessResponse(req.ID, req.ChannelID, o.res.Value)
		if err != nil {
			return protocol.NewErrorResponse(req.ID, req.ChannelID, int(rpcerr.InternalError), err.Error(), "")
		}
		return resp
	case <-time.After(deadline):
		return protocol.NewErrorResponse(req.ID, req.ChannelID, int(rpcerr.HandlerTimeout),
			fmt.Sprintf("handler for '%s' did not complete within %s", req.Request, deadline), "")
	}
}

func detailOf(e *rpcerr.Error) string {
	if e.Data == nil {
		return ""
	}
	return e.Data.Details
}

func (s *Server) sendResponse(resp *protocol.Response, replyToPath string) {
	addr, err := sockutil.MakeAddr(replyToPath)
	if err != nil {
		s.logger.Warn("invalid reply path", zap.String("path", replyToPath), zap.Error(err))
		s.emit("error", err)
		return
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		s.logger.Warn("cannot reach reply socket", zap.String("path", replyToPath), zap.Error(err))
		s.emit("error", err)
		return
	}
	defer conn.Close()

	framed, err := s.codec.EncodeDirect(resp)
	if err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
		s.emit("error", err)
		return
	}
	if _, err := conn.Write(framed); err != nil {
		s.logger.Warn("response write failed", zap.String("path", replyToPath), zap.Error(err))
		s.emit("error", err)
	}
}
