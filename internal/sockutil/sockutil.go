// Package sockutil builds and validates Unix-domain datagram socket
// addresses and generates unique ephemeral reply paths.
package sockutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corvidlabs/dgramrpc/internal/rpcerr"
)

// MaxPathLength is the typical platform limit on a Unix-domain socket path
// (sun_path, including the trailing NUL the kernel appends).
const MaxPathLength = 108

// ValidatePath enforces the address policy shared by client and server:
// non-empty, no NUL bytes, within the platform length limit. When strict is
// true, it additionally rejects a path whose canonical form escapes root.
func ValidatePath(path string, strict bool, root string) error {
	if path == "" {
		return rpcerr.New(rpcerr.SocketError, "socket path cannot be empty")
	}
	if len(path) >= MaxPathLength {
		return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("socket path length %d exceeds platform limit %d", len(path), MaxPathLength))
	}
	if strings.ContainsRune(path, 0) {
		return rpcerr.New(rpcerr.SocketError, "socket path contains a NUL byte")
	}
	if strict {
		if root == "" {
			root = os.TempDir()
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return rpcerr.New(rpcerr.SocketError, fmt.Sprintf("cannot resolve root: %v", err))
		}
		clean := filepath.Clean(path)
		if !filepath.IsAbs(clean) {
			clean = filepath.Join(absRoot, clean)
		}
		if !strings.HasPrefix(clean, absRoot) {
			return rpcerr.New(rpcerr.SocketError, "socket path escapes the approved root")
		}
	}
	return nil
}

// MakeAddr resolves path into a Unix-domain datagram address, after
// running it through ValidatePath (non-strict).
func MakeAddr(path string) (*net.UnixAddr, error) {
	if err := ValidatePath(path, false, ""); err != nil {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, rpcerr.New(rpcerr.SocketError, fmt.Sprintf("cannot resolve socket address: %v", err))
	}
	return addr, nil
}

// UniqueReplyPath returns an absolute path, under os.TempDir(), built from
// a nanosecond timestamp, the process id, and a random hex suffix. Distinct
// calls never collide even at microsecond resolution.
func UniqueReplyPath() string {
	var buf [2]byte
	_, _ = rand.Read(buf[:])
	suffix := hex.EncodeToString(buf[:])
	name := fmt.Sprintf("dgramrpc-reply-%d-%d-%s.sock", os.Getpid(), time.Now().UnixNano(), suffix)
	return filepath.Join(os.TempDir(), name)
}

// RemoveSocketFile unlinks the socket file at path, tolerating its absence.
func RemoveSocketFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
