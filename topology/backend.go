package topology

import (
	"context"
	"io"
	"time"

	"github.com/kwil-collective/allgather/transport"
)

// backend abstracts the transport-specific halves of bootstrap (listen,
// accept, connect) behind the common PointLink contract, so that the
// accept/connect pairing algorithm (spec §4.2) is written exactly once
// and shared by both the stream and secure transports (spec §9
// "Transport behind a single abstraction").
type backend interface {
	// Listen binds the local listening endpoint at addr.
	Listen(ctx context.Context, addr string) error

	// AcceptRaw blocks for one inbound connection and returns a
	// handshake read-writer plus a finalize closure that, given the
	// assigned Role, produces the concrete Link.
	AcceptRaw(ctx context.Context) (rw io.ReadWriter, toLink func(transport.Role) transport.Link, err error)

	// ConnectRaw makes one outbound connection attempt to addr.
	ConnectRaw(ctx context.Context, addr string) (rw io.ReadWriter, toLink func(transport.Role) transport.Link, err error)

	// Close releases endpoint-level resources (listener/socket). Dial
	// calls it when bootstrap fails; after a successful bootstrap it is
	// called once, by Topology.Close, after the links are closed.
	Close() error
}

func newBackend(kind transport.Kind, dialTimeout time.Duration) (backend, error) {
	switch kind {
	case transport.KindSecure:
		return newSecureBackend(dialTimeout)
	default:
		return newStreamBackend(dialTimeout), nil
	}
}
