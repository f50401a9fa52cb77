// Package collective holds the data model shared by the transport,
// topology and share packages: party identity and the participant list
// that every party in a collective must construct identically.
package collective

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/multiformats/go-multiaddr"
)

// ID identifies a party in [0, N). N must be a power of two.
type ID = uint32

// Log2 returns log2(n), asserting n is a power of two. It panics
// otherwise, matching the precondition-violation-is-fatal policy for
// programmer errors (spec §7).
func Log2(n int) int {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("collective: party count %d is not a power of two", n))
	}
	return bits.TrailingZeros(uint(n))
}

// Participant is a single party's identity: its id and the network
// address it listens on. Every party in a collective must construct
// the same ordered participant list; element i always has id == i.
type Participant struct {
	ID      ID
	Address string // host:port, suitable for net.Dial / net.Listen
}

// String renders the participant as a multiaddr string for log lines,
// e.g. "/ip4/127.0.0.1/tcp/12400/id/0", the same way a connected peer's
// address is rendered via Multiaddr.String() elsewhere in the corpus.
// There is no registered multiaddr protocol for a flat collective id,
// so the id is appended as a plain suffix after the validated,
// canonicalized host/port component.
func (p Participant) String() string {
	host, port, err := net.SplitHostPort(p.Address)
	if err != nil {
		return fmt.Sprintf("/id/%d/addr/%s", p.ID, p.Address)
	}
	proto := "ip4"
	if strings.Contains(host, ":") {
		proto = "ip6"
	}
	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%s", proto, host, port))
	if err != nil {
		return fmt.Sprintf("/id/%d/addr/%s", p.ID, p.Address)
	}
	return fmt.Sprintf("%s/id/%d", addr.String(), p.ID)
}

// DefaultParticipants builds a participant list of the default localhost
// pattern: n parties at 127.0.0.1, ports basePort..basePort+n-1.
func DefaultParticipants(n int, basePort uint16) []Participant {
	parties := make([]Participant, n)
	for i := 0; i < n; i++ {
		parties[i] = Participant{
			ID:      ID(i),
			Address: net.JoinHostPort("127.0.0.1", strconv.Itoa(int(basePort)+i)),
		}
	}
	return parties
}

// ParticipantsFromFile parses the participant list text layout from a
// file: first line N, followed by N lines each an IPv4 address; port
// for party i is basePort+i.
func ParticipantsFromFile(path string, basePort uint16) ([]Participant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening participant file: %w", err)
	}
	defer f.Close()
	return ParticipantsFromReader(f, basePort)
}

// ParticipantsFromReader parses the participant list text layout:
//
//	<N>
//	<addr_0>
//	<addr_1>
//	...
//	<addr_{N-1}>
func ParticipantsFromReader(r io.Reader, basePort uint16) ([]Participant, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("parsing participant count: %w", scanErr(scanner))
	}
	n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("parsing participant count: %w", err)
	}
	if n <= 0 {
		return nil, fmt.Errorf("invalid participant count %d", n)
	}

	parties := make([]Participant, 0, n)
	for i := 0; i < n; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("parsing participant %d address: %w", i, scanErr(scanner))
		}
		addr := strings.TrimSpace(scanner.Text())
		if addr == "" {
			return nil, fmt.Errorf("empty address for participant %d", i)
		}
		port := int(basePort) + i
		parties = append(parties, Participant{
			ID:      ID(i),
			Address: net.JoinHostPort(addr, strconv.Itoa(port)),
		})
	}
	return parties, nil
}

func scanErr(s *bufio.Scanner) error {
	if err := s.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
