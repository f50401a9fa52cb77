package topology

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/kwil-collective/allgather/collective"
	"github.com/kwil-collective/allgather/transport"
)

// freePorts finds n free localhost ports by briefly binding and
// releasing them, for building a participant list before Dial binds
// the real listeners (teacher style: probe, release, reuse).
func freePorts(t *testing.T, n int) []uint16 {
	t.Helper()
	ports := make([]uint16, n)
	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		ports[i] = uint16(ln.Addr().(*net.TCPAddr).Port)
		require.NoError(t, ln.Close())
	}
	return ports
}

func participantsAt(ports []uint16) []collective.Participant {
	parties := make([]collective.Participant, len(ports))
	for i, p := range ports {
		parties[i] = collective.Participant{ID: collective.ID(i), Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(int(p)))}
	}
	return parties
}

func dialAll(t *testing.T, participants []collective.Participant) []*Topology {
	t.Helper()
	n := len(participants)
	topos := make([]*Topology, n)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			topo, err := Dial(gctx, collective.ID(i), participants, WithRetry(20, 50*time.Millisecond))
			if err != nil {
				return err
			}
			topos[i] = topo
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return topos
}

func closeAll(topos []*Topology) {
	for _, t := range topos {
		if t != nil {
			_ = t.Close()
		}
	}
}

func TestBootstrapLinkCountAndRoles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	ports := freePorts(t, 8)
	participants := participantsAt(ports)
	topos := dialAll(t, participants)
	defer closeAll(topos)

	l := collective.Log2(len(participants))
	for i, topo := range topos {
		require.Equal(t, l, topo.L())
		require.Len(t, topo.Links(), l)

		for d, link := range topo.Links() {
			peer := collective.ID(uint32(i) ^ (1 << uint(d)))
			wantServer := collective.ID(i) < peer
			if wantServer {
				assert.Equal(t, transport.Server, link.Role(), "party %d dimension %d", i, d)
			} else {
				assert.Equal(t, transport.Client, link.Role(), "party %d dimension %d", i, d)
			}
		}
	}
}

func TestBootstrapSingleParty(t *testing.T) {
	ports := freePorts(t, 1)
	participants := participantsAt(ports)
	topos := dialAll(t, participants)
	defer closeAll(topos)

	require.Equal(t, 0, topos[0].L())
	require.Empty(t, topos[0].Links())
}

func TestBootstrapRejectsNonPowerOfTwo(t *testing.T) {
	ports := freePorts(t, 3)
	participants := participantsAt(ports)
	assert.Panics(t, func() {
		_, _ = Dial(context.Background(), 0, participants)
	})
}

func TestBootstrapIsOrderIndependent(t *testing.T) {
	// Repeated bootstraps over fresh port sets must converge to the
	// same role/link-count structure regardless of goroutine scheduling
	// order between the acceptor and the per-dimension connectors
	// (spec §8 testable property 6).
	for i := 0; i < 3; i++ {
		ports := freePorts(t, 4)
		participants := participantsAt(ports)
		topos := dialAll(t, participants)
		for _, topo := range topos {
			assert.Len(t, topo.Links(), 2)
		}
		closeAll(topos)
	}
}
