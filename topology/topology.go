package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/kwil-collective/allgather/collective"
	"github.com/kwil-collective/allgather/core/log"
	"github.com/kwil-collective/allgather/share"
	"github.com/kwil-collective/allgather/transport"
)

// Topology is the fixed assembly of L PointLinks owned by one party
// after bootstrap (spec §3 "Topology"). A Topology supports exactly one
// Share call in flight at a time, and exactly one Close.
type Topology struct {
	myID collective.ID
	n    int
	l    int

	links   []transport.Link
	backend backend
	logger  log.Logger
}

// MyID returns this party's id within the collective.
func (t *Topology) MyID() collective.ID { return t.myID }

// N returns the number of parties in the collective.
func (t *Topology) N() int { return t.n }

// L returns log2(N), the number of rounds / links.
func (t *Topology) L() int { return t.l }

// Links returns the bootstrap-assigned PointLinks, indexed by
// dimension. The slice and its contents must not be mutated by callers.
func (t *Topology) Links() []transport.Link { return t.links }

// Share runs the recursive-halving all-gather (spec §4.3) over buf,
// which must have length t.N()*chunkSize with slot t.MyID() already
// populated with this party's contribution.
func (t *Topology) Share(ctx context.Context, buf []byte, chunkSize int) error {
	return share.Share(ctx, t.links, t.myID, buf, chunkSize)
}

// Close closes every link and, for the secure transport, the shared
// endpoint (spec §4.4). Close is not idempotent: a topology supports
// exactly one close.
func (t *Topology) Close() error {
	var errs []error
	for d, link := range t.links {
		if link == nil {
			continue
		}
		if err := link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing link dimension %d: %w", d, err))
		}
	}
	if err := t.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing endpoint: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
