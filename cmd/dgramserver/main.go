// Command dgramserver runs a standalone datagram RPC server bound to a
// Unix-domain socket path, answering ping/echo/get_info/manifest built-ins
// plus whatever handlers this binary registers.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/corvidlabs/dgramrpc/internal/handlerreg"
	"github.com/corvidlabs/dgramrpc/pkg/dgramserver"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

func main() {
	socketPath := flag.String("socket", "/tmp/dgramrpc.sock", "Unix datagram socket path to bind")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := dgramserver.DefaultConfig()
	cfg.DebugLogging = *debug
	srv := dgramserver.New(cfg)
	srv.SetLogger(logger)

	if err := srv.RegisterHandler("time", handlerreg.NewObjectHandler(handleTime)); err != nil {
		logger.Fatal("failed to register handler", zap.Error(err))
	}

	srv.On("error", func(data interface{}) {
		if err, ok := data.(error); ok {
			logger.Warn("server event: error", zap.Error(err))
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		_ = srv.Stop()
	}()

	logger.Info("starting dgramserver", zap.String("socket", *socketPath))
	if err := srv.StartListening(*socketPath); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func handleTime(req *protocol.Request) (map[string]interface{}, error) {
	return map[string]interface{}{"unix_seconds": req.Timestamp}, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
