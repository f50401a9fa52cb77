package topology

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/kwil-collective/allgather/transport"
)

// secureBackend bootstraps PointLinks over a QUIC connection-oriented
// secure datagram transport, one bidirectional substream per peer
// (spec §4.1 "Secure-multiplexed variant").
type secureBackend struct {
	ln          *quic.Listener
	clientConf  *quic.Config
	dialTimeout time.Duration

	mu    sync.Mutex
	conns []quic.Connection
}

func newSecureBackend(dialTimeout time.Duration) (*secureBackend, error) {
	return &secureBackend{
		clientConf:  &quic.Config{MaxIdleTimeout: 30 * time.Second},
		dialTimeout: dialTimeout,
	}, nil
}

func (b *secureBackend) Listen(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving udp address: %w", err)
	}
	pconn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}
	tlsConf, err := transport.GenerateSelfSignedTLSConfig()
	if err != nil {
		return err
	}
	ln, err := quic.Listen(pconn, tlsConf, &quic.Config{MaxIdleTimeout: 30 * time.Second})
	if err != nil {
		return fmt.Errorf("quic listen: %w", err)
	}
	b.ln = ln
	return nil
}

func (b *secureBackend) AcceptRaw(ctx context.Context) (io.ReadWriter, func(transport.Role) transport.Link, error) {
	conn, err := b.ln.Accept(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, nil, err
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	toLink := func(role transport.Role) transport.Link {
		return transport.NewSecureLink(role, conn, st)
	}
	return st, toLink, nil
}

func (b *secureBackend) ConnectRaw(ctx context.Context, addr string) (io.ReadWriter, func(transport.Role) transport.Link, error) {
	dialCtx, cancel := context.WithTimeout(ctx, b.dialTimeout)
	defer cancel()
	conn, err := quic.DialAddr(dialCtx, addr, transport.ClientTLSConfig(), b.clientConf)
	if err != nil {
		return nil, nil, err
	}
	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, err
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	toLink := func(role transport.Role) transport.Link {
		return transport.NewSecureLink(role, conn, st)
	}
	return st, toLink, nil
}

// Close closes every peer connection with application error code 0 and
// then closes the listening endpoint. quic-go has no single "wait for
// idle" primitive analogous to quinn's Endpoint::wait_idle (spec §9
// Open Questions); each connection is closed explicitly instead once
// its link has already been closed by Topology.Close.
func (b *secureBackend) Close() error {
	for _, c := range b.conns {
		_ = c.CloseWithError(0, "finished")
	}
	if b.ln == nil {
		return nil
	}
	return b.ln.Close()
}
