// Package transport implements the PointLink abstraction: a full-duplex
// reliable byte channel between two parties, carrying one Role, behind a
// single interface with two concrete backends (a TCP stream and a QUIC
// secure-multiplexed substream).
package transport

import (
	"context"
	"errors"
)

// Role is the per-link orientation assigned during bootstrap. The party
// with the numerically smaller id (the accepting side) is Server; the
// greater id (the connecting side) is Client.
// After bootstrap both roles perform symmetric full-duplex exchanges —
// Role only discriminates which side of the owned window the share
// engine grows (spec §4.3), not any transport-level asymmetry.
type Role uint8

const (
	Client Role = iota
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// Kind selects which concrete Link implementation a Topology should
// bootstrap with.
type Kind uint8

const (
	KindStream Kind = iota
	KindSecure
)

// ErrClosed is returned by Exchange once a Link has been closed.
var ErrClosed = errors.New("transport: link closed")

// Link is a single bidirectional transport channel between two parties.
// Implementations must serialize concurrent Exchange calls against the
// same direction (callers are expected not to overlap calls on one
// Link, but the invariant is guarded defensively, see spec §4.1).
type Link interface {
	// Exchange writes every byte of send and reads exactly len(recv)
	// bytes into recv, with both directions progressing concurrently.
	// It returns only once both directions have returned; a failure in
	// one direction does not interrupt the other, and the first error
	// is reported.
	Exchange(ctx context.Context, send, recv []byte) error

	// Role reports this link's assigned orientation.
	Role() Role

	// Close releases the transport resources. It is not idempotent: the
	// behaviour of a second call is not defined, matching the
	// Topology-level close contract (spec §4.4).
	Close() error
}
