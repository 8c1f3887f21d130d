package dgramserver

import "time"

// Config configures a Server before StartListening is called.
type Config struct {
	SocketPath        string
	MaxConnections    int
	DefaultTimeout    time.Duration
	MaxMessageSize    int
	CleanupOnStart    bool
	CleanupOnShutdown bool
	DebugLogging      bool
}

// DefaultConfig returns the conventional defaults: 100 tracked clients, a
// 30s default handler deadline, a 64KiB datagram buffer, and socket file
// cleanup on both start and shutdown.
func DefaultConfig() Config {
	return Config{
		MaxConnections:    100,
		DefaultTimeout:    30 * time.Second,
		MaxMessageSize:    64 * 1024,
		CleanupOnStart:    true,
		CleanupOnShutdown: true,
	}
}
