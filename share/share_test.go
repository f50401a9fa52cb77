package share

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kwil-collective/allgather/collective"
	"github.com/kwil-collective/allgather/transport"
)

// hypercubeLinks builds the L PointLinks each of n in-process parties
// would have received from a real topology.Dial, wired over net.Pipe
// instead of TCP sockets so the tests run without touching the network.
func hypercubeLinks(t *testing.T, n int) [][]transport.Link {
	t.Helper()
	l := collective.Log2(n)
	links := make([][]transport.Link, n)
	for i := range links {
		links[i] = make([]transport.Link, l)
	}
	for d := 0; d < l; d++ {
		bit := 1 << uint(d)
		for i := 0; i < n; i++ {
			if i&bit != 0 {
				continue
			}
			peer := i | bit
			a, b := net.Pipe()
			// peer > i always, since peer has the extra bit set; as in
			// topology.Dial, the smaller id is Server.
			links[i][d] = transport.NewStreamLink(transport.Server, a)
			links[peer][d] = transport.NewStreamLink(transport.Client, b)
		}
	}
	return links
}

func closeLinks(links [][]transport.Link) {
	for _, party := range links {
		for _, l := range party {
			_ = l.Close()
		}
	}
}

func runShareAll(t *testing.T, n, chunkSize int) (bufs, contributions [][]byte) {
	t.Helper()
	links := hypercubeLinks(t, n)
	defer closeLinks(links)

	contributions = make([][]byte, n)
	for i := range contributions {
		contributions[i] = make([]byte, chunkSize)
		if chunkSize > 0 {
			_, err := rand.Read(contributions[i])
			require.NoError(t, err)
		}
	}

	bufs = make([][]byte, n)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			buf := make([]byte, n*chunkSize)
			copy(buf[i*chunkSize:(i+1)*chunkSize], contributions[i])
			if err := Share(gctx, links[i], collective.ID(i), buf, chunkSize); err != nil {
				return err
			}
			bufs[i] = buf
			return nil
		})
	}
	require.NoError(t, g.Wait())

	return bufs, contributions
}

func TestShareRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 16, 32} {
		for _, chunkSize := range []int{0, 1, 64, 4096} {
			n, chunkSize := n, chunkSize
			t.Run("", func(t *testing.T) {
				bufs, contributions := runShareAll(t, n, chunkSize)
				if chunkSize == 0 {
					return
				}

				// The all-gather invariant is concatenation in id order
				// (spec §8 testable property 1), not merely that every
				// party converged to the same bytes as each other — a
				// deterministic, symmetric mis-ordering (e.g. descending
				// id) would still pass a cross-party-only check.
				expected := make([]byte, 0, n*chunkSize)
				for _, c := range contributions {
					expected = append(expected, c...)
				}

				for i, buf := range bufs {
					assert.True(t, bytes.Equal(buf, expected), "party %d does not hold the id-ordered concatenation", i)
				}
			})
		}
	}
}

func TestShareNoOpForSingleParty(t *testing.T) {
	buf := []byte("hello")
	err := Share(context.Background(), nil, 0, buf, len(buf))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf)
}

func TestShareInvariantFinalWindowSpansWholeBuffer(t *testing.T) {
	const n, chunkSize = 8, 16
	links := hypercubeLinks(t, n)
	defer closeLinks(links)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			buf := make([]byte, n*chunkSize)
			start, end, partSize, err := run(gctx, links[i], collective.ID(i), buf, chunkSize)
			if err != nil {
				return err
			}
			if start != 0 || end != n*chunkSize || partSize != n*chunkSize {
				return errors.New("final window does not span the whole buffer")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestSharePanicsOnBufferSizeMismatch(t *testing.T) {
	links := hypercubeLinks(t, 4)
	defer closeLinks(links)
	assert.Panics(t, func() {
		_ = Share(context.Background(), links[0], 0, make([]byte, 3), 2)
	})
}

// abortLink wraps a Link and fails every Exchange, to exercise the
// transport-abort error propagation path (spec §8 concrete scenario:
// N=2, transport abort).
type abortLink struct {
	transport.Link
}

func (abortLink) Exchange(ctx context.Context, send, recv []byte) error {
	return errors.New("simulated transport abort")
}

func TestShareTransportAbortPropagatesError(t *testing.T) {
	links := hypercubeLinks(t, 2)
	defer closeLinks(links)

	var wrapped [1]transport.Link
	wrapped[0] = abortLink{links[0][0]}

	err := Share(context.Background(), wrapped[:], 0, make([]byte, 2), 1)
	assert.Error(t, err)
}

// countingLink records the length of every send/recv pair passed to
// Exchange, in round order, so per-round sizes can be asserted directly
// (spec §8 concrete scenario: N=4, C=2 per-round send sizes).
type countingLink struct {
	transport.Link
	mu    sync.Mutex
	sizes []int
}

func (c *countingLink) Exchange(ctx context.Context, send, recv []byte) error {
	c.mu.Lock()
	c.sizes = append(c.sizes, len(send))
	c.mu.Unlock()
	return c.Link.Exchange(ctx, send, recv)
}

func TestSharePerRoundSendSizesDouble(t *testing.T) {
	const n, chunkSize = 4, 2
	links := hypercubeLinks(t, n)
	defer closeLinks(links)

	counters := make([]*countingLink, len(links[0]))
	for d := range links[0] {
		counters[d] = &countingLink{Link: links[0][d]}
		links[0][d] = counters[d]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			buf := make([]byte, n*chunkSize)
			return Share(gctx, links[i], collective.ID(i), buf, chunkSize)
		})
	}
	require.NoError(t, g.Wait())

	for d, c := range counters {
		want := chunkSize << uint(d)
		assert.Equal(t, want, c.sizes[0], "round %d", d)
	}
}
