package topology

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/kwil-collective/allgather/transport"
)

// streamBackend bootstraps PointLinks over plain reliable TCP streams
// (spec §4.1 "Stream variant").
type streamBackend struct {
	ln          net.Listener
	dialer      net.Dialer
	dialTimeout time.Duration
}

func newStreamBackend(dialTimeout time.Duration) *streamBackend {
	return &streamBackend{dialTimeout: dialTimeout}
}

func (b *streamBackend) Listen(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	b.ln = ln
	return nil
}

func (b *streamBackend) AcceptRaw(ctx context.Context) (io.ReadWriter, func(transport.Role) transport.Link, error) {
	conn, err := b.ln.Accept()
	if err != nil {
		return nil, nil, err
	}
	toLink := func(role transport.Role) transport.Link {
		return transport.NewStreamLink(role, conn)
	}
	return conn, toLink, nil
}

func (b *streamBackend) ConnectRaw(ctx context.Context, addr string) (io.ReadWriter, func(transport.Role) transport.Link, error) {
	dialCtx, cancel := context.WithTimeout(ctx, b.dialTimeout)
	defer cancel()
	conn, err := b.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	toLink := func(role transport.Role) transport.Link {
		return transport.NewStreamLink(role, conn)
	}
	return conn, toLink, nil
}

func (b *streamBackend) Close() error {
	if b.ln == nil {
		return nil
	}
	return b.ln.Close()
}
