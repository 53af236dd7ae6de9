// Package transport provides the per-application unix-socket channel layer.
//
// Every application owns one socket file named after it; a Channel is a single
// dialed connection to such a socket, carrying exactly one request/response
// exchange or one streaming session. Channels are never pooled or reused —
// each call dials fresh and closes on every exit path.
package transport

import (
	"net"
	"os"
	"path/filepath"
	"time"

	"peerlink/codec"
)

// SockDirEnv overrides the socket directory, mainly for tests.
const SockDirEnv = "PEERLINK_SOCK_DIR"

// SocketDir returns the directory holding all application socket files.
// Precedence: $PEERLINK_SOCK_DIR, $XDG_RUNTIME_DIR/peerlink, $TMPDIR/peerlink.
func SocketDir() string {
	if dir := os.Getenv(SockDirEnv); dir != "" {
		return dir
	}
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, "peerlink")
	}
	return filepath.Join(os.TempDir(), "peerlink")
}

// SocketPath returns the socket file for the named application.
func SocketPath(app string) string {
	return filepath.Join(SocketDir(), app+".sock")
}

// Listen opens the application's socket for inbound connections.
// A stale socket file is removed first, in case the previous instance was not
// killed cleanly.
func Listen(app string) (net.Listener, error) {
	if err := os.MkdirAll(SocketDir(), 0o700); err != nil {
		return nil, err
	}
	socketPath := SocketPath(app)
	_ = os.Remove(socketPath)
	return net.Listen("unix", socketPath)
}

// Connect makes a best-effort dial to the named application's socket and
// wraps the connection in a Channel. An error means "not reachable right now"
// — the caller decides whether to launch the target and retry.
func Connect(app string, codecType codec.CodecType, dialTimeout time.Duration) (*Channel, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.Dial("unix", SocketPath(app))
	if err != nil {
		return nil, err
	}
	return NewChannel(conn, codecType), nil
}
