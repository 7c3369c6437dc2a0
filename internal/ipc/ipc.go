// Package ipc provides the local control-socket channel rscvctl uses to talk
// to a running rscvd daemon (§4.8 of SPEC_FULL.md) instead of dialing the
// daemon's transport directly. Only the transport (Unix socket or named pipe)
// lives here; the newline-delimited JSON request/response protocol carried
// over it is internal/ctlproto.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the control channel.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/rscvd.sock, falling back to
//     $TMPDIR/rscvd.sock  (override with $RSCV_SOCKET)
//   - Windows:       \\.\pipe\rscvd
func SocketPath() string {
	if s := os.Getenv("RSCV_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether an rscvd daemon appears to be listening on the
// control socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates and returns a net.Listener on the control socket path.
func Listen() (net.Listener, error) {
	path := SocketPath()
	return listenIPC(path)
}

// Dial connects to a running daemon's control socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
