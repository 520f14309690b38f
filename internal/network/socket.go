package network

import (
	"context"
	"fmt"
	"net"
	"rdcp/internal/global"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Creates a TCP listener on the requested port, walking forward through
// the fallback range when the port is taken. Returns the port actually
// bound so callers can persist it.
func ListenWithFallback(address string, basePort int) (listener net.Listener, boundPort int, err error) {
	if basePort < 1 || basePort > 65535 {
		err = fmt.Errorf("invalid base port %d", basePort)
		return
	}

	// Using x/sys/unix package for more up-to-date syscall numbers
	cfg := net.ListenConfig{
		Control: func(network, addr string, c syscall.RawConn) error {
			var sockErr error
			c.Control(func(fd uintptr) {
				// Allow fast rebinding after a restart
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			return sockErr
		},
	}

	var lastErr error
	for offset := 0; offset < global.PortFallbackRange; offset++ {
		candidate := basePort + offset
		if candidate > 65535 {
			break
		}

		listener, lastErr = cfg.Listen(context.Background(), "tcp", fmt.Sprintf("%s:%d", address, candidate))
		if lastErr == nil {
			boundPort = candidate
			return
		}
	}

	err = fmt.Errorf("failed to bind any port in %d-%d: %v", basePort, basePort+global.PortFallbackRange-1, lastErr)
	return
}

// Dials the remote endpoint with a hard connect timeout
func DialTimeout(host string, port int, timeout time.Duration) (conn net.Conn, err error) {
	if port < 1 || port > 65535 {
		err = fmt.Errorf("invalid port %d", port)
		return
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err = dialer.Dial("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		err = fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
		return
	}
	return
}

// Applies the socket options every streaming connection runs with:
// no Nagle delay and deep kernel buffers for frame bursts
func TuneConn(conn net.Conn) {
	tcpConn, isTCP := conn.(*net.TCPConn)
	if !isTCP {
		return
	}

	tcpConn.SetNoDelay(true)
	tcpConn.SetReadBuffer(global.SocketBufferSize)
	tcpConn.SetWriteBuffer(global.SocketBufferSize)
}
