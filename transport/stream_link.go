package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StreamLink is the TCP-backed PointLink variant: a reliable stream
// transport with nodelay enabled (Nagle disabled), full write/read exchanged
// concurrently per round (spec §4.1 "Stream variant").
type StreamLink struct {
	role Role
	conn net.Conn

	sendMu sync.Mutex
	recvMu sync.Mutex
}

var _ Link = (*StreamLink)(nil)

// NewStreamLink wraps an already-connected net.Conn (typically a
// *net.TCPConn from Accept or Dial) with the given Role, disabling
// Nagle's algorithm if the connection supports it.
func NewStreamLink(role Role, conn net.Conn) *StreamLink {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &StreamLink{role: role, conn: conn}
}

func (l *StreamLink) Role() Role { return l.role }

// Exchange writes send and reads recv concurrently on the same
// connection. Per-direction mutexes guard against overlapping calls,
// though the engine never issues them (spec §4.1).
func (l *StreamLink) Exchange(ctx context.Context, send, recv []byte) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.sendMu.Lock()
		defer l.sendMu.Unlock()
		if len(send) == 0 {
			return nil
		}
		_, err := writeFull(l.conn, send)
		return err
	})

	g.Go(func() error {
		l.recvMu.Lock()
		defer l.recvMu.Unlock()
		if len(recv) == 0 {
			return nil
		}
		_, err := io.ReadFull(l.conn, recv)
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("transport: stream exchange: %w", err)
	}
	return nil
}

func writeFull(w io.Writer, b []byte) (int, error) {
	n, err := w.Write(b)
	if err != nil {
		return n, err
	}
	if n != len(b) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Close shuts down the write side (for a *net.TCPConn), then closes the
// connection. Unread inbound data is not drained before the close.
func (l *StreamLink) Close() error {
	if tc, ok := l.conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}
	return l.conn.Close()
}
