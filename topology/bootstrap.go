package topology

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kwil-collective/allgather/collective"
	"github.com/kwil-collective/allgather/transport"
)

// Dial bootstraps a Topology for myID over the given participant list:
// for each dimension d in [0, L), it pairs with peer myID^2^d and
// establishes exactly one PointLink. The smaller id accepts and takes the
// Server role; the greater id connects and takes the Client role
// (spec §4.2). participants must be identical, in the same order,
// across every party.
func Dial(ctx context.Context, myID collective.ID, participants []collective.Participant, opts ...Option) (*Topology, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	n := len(participants)
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Errorf("%w: got %d", ErrNotPowerOfTwo, n))
	}
	if int(myID) >= n {
		return nil, fmt.Errorf("topology: my id %d out of range for %d participants", myID, n)
	}

	l := bits.TrailingZeros(uint(n))
	sessionID := uuid.New()
	logger := o.logger.New("TOPOLOGY").With("id", myID, "n", n, "bootstrap", sessionID.String())

	be, err := newBackend(o.kind, o.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("topology: constructing backend: %w", err)
	}

	if err := be.Listen(ctx, participants[myID].Address); err != nil {
		return nil, fmt.Errorf("topology: listen at %s: %w", participants[myID].Address, err)
	}

	links := make([]transport.Link, l)
	var mu sync.Mutex
	install := func(d int, link transport.Link) error {
		mu.Lock()
		defer mu.Unlock()
		if links[d] != nil {
			return fmt.Errorf("%w: %d", ErrDuplicateLink, d)
		}
		links[d] = link
		return nil
	}

	acceptCount := l - bits.OnesCount32(myID)

	g, gctx := errgroup.WithContext(ctx)

	if acceptCount > 0 {
		g.Go(func() error {
			remaining := acceptCount
			for remaining > 0 {
				rw, toLink, err := be.AcceptRaw(gctx)
				if err != nil {
					return fmt.Errorf("accepting connection: %w", err)
				}
				peerID, err := readPeerID(rw)
				if err != nil {
					return fmt.Errorf("reading peer id preamble: %w", err)
				}
				mask := myID ^ peerID
				if mask == 0 || mask&(mask-1) != 0 {
					return fmt.Errorf("%w: ours=%d peer=%d", ErrPeerIDMismatch, myID, peerID)
				}
				d := bits.TrailingZeros32(mask)
				if err := install(d, toLink(transport.Server)); err != nil {
					return err
				}
				logger.Debugf("accepted link dimension=%d peer=%d", d, peerID)
				remaining--
			}
			return nil
		})
	}

	if myID != 0 {
		for d := 0; d < l; d++ {
			d := d
			peerID := myID ^ (collective.ID(1) << uint(d))
			if peerID >= myID {
				continue
			}
			g.Go(func() error {
				rw, toLink, err := dialWithRetry(gctx, be, participants[peerID].Address, o.retryAttempts, o.retryBackoff)
				if err != nil {
					return fmt.Errorf("connecting to peer %d: %w", peerID, err)
				}
				if err := writePeerID(rw, myID); err != nil {
					return fmt.Errorf("writing peer id preamble: %w", err)
				}
				if err := install(d, toLink(transport.Client)); err != nil {
					return err
				}
				logger.Debugf("connected link dimension=%d peer=%d", d, peerID)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		_ = be.Close()
		return nil, err
	}

	for d, link := range links {
		if link == nil {
			_ = be.Close()
			return nil, fmt.Errorf("topology: link for dimension %d was never established", d)
		}
	}

	logger.Infof("bootstrap complete: %d links", l)

	return &Topology{
		myID:    myID,
		n:       n,
		l:       l,
		links:   links,
		backend: be,
		logger:  logger,
	}, nil
}

// readPeerID reads the 4-byte big-endian peer id handshake preamble
// (spec §4.2 step 2, §6 "Bootstrap handshake").
func readPeerID(r io.Reader) (collective.ID, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return collective.ID(binary.BigEndian.Uint32(buf[:])), nil
}

// writePeerID writes the 4-byte big-endian peer id handshake preamble.
func writePeerID(w io.Writer, id collective.ID) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], id)
	_, err := w.Write(buf[:])
	return err
}

// dialWithRetry retries a connect attempt up to attempts times with a
// fixed backoff between attempts, to tolerate peers that have not yet
// bound their listening endpoint (spec §4.2 step 3). Applied uniformly
// to both transports per spec §9's Open Questions.
func dialWithRetry(ctx context.Context, be backend, addr string, attempts int, backoff time.Duration) (io.ReadWriter, func(transport.Role) transport.Link, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		rw, toLink, err := be.ConnectRaw(ctx, addr)
		if err == nil {
			return rw, toLink, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, nil, fmt.Errorf("%w to %s after %d attempts: %v", ErrRetriesExhausted, addr, attempts, lastErr)
}
