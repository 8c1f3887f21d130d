package dgramserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidlabs/dgramrpc/internal/handlerreg"
	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
	"github.com/corvidlabs/dgramrpc/pkg/dgramclient"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

func newTestSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(os.TempDir(), fmt.Sprintf("dgramrpc-test-%d.sock", time.Now().UnixNano()))
}

func startTestServer(t *testing.T, configure func(*Server)) (string, func()) {
	t.Helper()
	path := newTestSocketPath(t)
	cfg := DefaultConfig()
	srv := New(cfg)
	if configure != nil {
		configure(srv)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.StartListening(path) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "server socket was never created")

	return path, func() {
		srv.Stop()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down in time")
		}
		os.Remove(path)
	}
}

func TestPingRoundTrip(t *testing.T) {
	path, cleanup := startTestServer(t, nil)
	defer cleanup()

	client, err := dgramclient.New(path, dgramclient.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.Ping(context.Background()))
}

func TestEchoPassesArgsThrough(t *testing.T) {
	path, cleanup := startTestServer(t, nil)
	defer cleanup()

	client, err := dgramclient.New(path, dgramclient.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Send(context.Background(), "echo", map[string]interface{}{"hello": "world"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"args": {"hello": "world"}}`, string(resp.Result))
}

func TestMethodNotFoundForUnregisteredRequest(t *testing.T) {
	path, cleanup := startTestServer(t, nil)
	defer cleanup()

	client, err := dgramclient.New(path, dgramclient.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send(context.Background(), "no_such_request", nil)
	require.Error(t, err)
	rpcErr, ok := rpcerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.MethodNotFound, rpcErr.Code)
}

func TestRegisteredHandlerIsDispatched(t *testing.T) {
	path, cleanup := startTestServer(t, func(s *Server) {
		_ = s.RegisterHandler("add", handlerreg.NewIntHandler(func(req *protocol.Request) (int, error) {
			a, _ := req.Args["a"].(float64)
			b, _ := req.Args["b"].(float64)
			return int(a + b), nil
		}))
	})
	defer cleanup()

	client, err := dgramclient.New(path, dgramclient.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Send(context.Background(), "add", map[string]interface{}{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, "5", string(resp.Result))
}

func TestHandlerTimeoutProducesTimeoutError(t *testing.T) {
	path, cleanup := startTestServer(t, func(s *Server) {
		_ = s.RegisterHandler("slow", handlerreg.NewAsyncObjectHandler(func(req *protocol.Request) (map[string]interface{}, error) {
			time.Sleep(2 * time.Second)
			return map[string]interface{}{}, nil
		}))
	})
	defer cleanup()

	client, err := dgramclient.New(path, dgramclient.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send(context.Background(), "slow", nil, dgramclient.RequestOptions{Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	rpcErr, ok := rpcerr.As(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.HandlerTimeout, rpcErr.Code)
}

func TestOversizedPayloadIsRejected(t *testing.T) {
	path := newTestSocketPath(t)
	cfg := DefaultConfig()
	cfg.MaxMessageSize = 64
	srv := New(cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.StartListening(path) }()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer func() {
		srv.Stop()
		<-errCh
		os.Remove(path)
	}()

	clientCfg := dgramclient.DefaultConfig()
	client, err := dgramclient.New(path, clientCfg)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	bigArgs := map[string]interface{}{"blob": make([]byte, 8192)}
	_, err = client.Send(ctx, "echo", bigArgs, dgramclient.RequestOptions{Timeout: 300 * time.Millisecond})
	assert.Error(t, err)
}

func TestGetInfoReportsHandlerCount(t *testing.T) {
	path, cleanup := startTestServer(t, func(s *Server) {
		_ = s.RegisterHandler("noop", handlerreg.NewBoolHandler(func(req *protocol.Request) (bool, error) { return true, nil }))
	})
	defer cleanup()

	client, err := dgramclient.New(path, dgramclient.DefaultConfig())
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.Send(context.Background(), "get_info", nil)
	require.NoError(t, err)
	require.True(t, resp.Success)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	assert.EqualValues(t, 1, info["handler_count"])
}

func TestStopInterruptsListenLoopPromptly(t *testing.T) {
	path := newTestSocketPath(t)
	srv := New(DefaultConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.StartListening(path) }()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, srv.Stop())

	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not interrupt the receive loop within a bounded delay")
	}
	assert.Less(t, time.Since(start), 3*time.Second)
	os.Remove(path)
}
