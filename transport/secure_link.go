package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"
)

// SecureLink is the QUIC-backed PointLink variant: a single bidirectional
// substream on a connection-oriented secure datagram transport (spec
// §4.1 "Secure-multiplexed variant"). Certificate verification is
// skipped on the client side; peer identity is carried in-band via the
// bootstrap handshake (spec §4.2, §6).
type SecureLink struct {
	role Role
	conn quic.Connection
	st   quic.Stream

	sendMu sync.Mutex
	recvMu sync.Mutex
}

var _ Link = (*SecureLink)(nil)

// NewSecureLink wraps an established QUIC connection and one
// bidirectional stream with the given Role.
func NewSecureLink(role Role, conn quic.Connection, st quic.Stream) *SecureLink {
	return &SecureLink{role: role, conn: conn, st: st}
}

func (l *SecureLink) Role() Role { return l.role }

func (l *SecureLink) Exchange(ctx context.Context, send, recv []byte) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.sendMu.Lock()
		defer l.sendMu.Unlock()
		if len(send) == 0 {
			return nil
		}
		_, err := writeFull(l.st, send)
		return err
	})

	g.Go(func() error {
		l.recvMu.Lock()
		defer l.recvMu.Unlock()
		if len(recv) == 0 {
			return nil
		}
		_, err := io.ReadFull(l.st, recv)
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("transport: secure exchange: %w", err)
	}
	return nil
}

// Close finishes the send side of the substream. The QUIC connection
// itself is closed once at Topology.Close, not per-link (spec §4.4,
// §9 Open Questions); there is no wait for the endpoint to go idle.
func (l *SecureLink) Close() error {
	return l.st.Close()
}

// GenerateSelfSignedTLSConfig produces a server tls.Config backed by a
// freshly minted self-signed certificate. The core merely needs a
// secure channel between two endpoints with agreed identities; identity
// itself is asserted in-band via the bootstrap handshake (spec §1, §6).
func GenerateSelfSignedTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating tls key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, fmt.Errorf("generating tls serial: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"collective-share"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating self-signed cert: %w", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"collective-share"},
	}, nil
}

// ClientTLSConfig accepts any server certificate: the peer set is known
// out-of-band from the participant list, and higher-layer protocols
// built on this primitive apply their own cryptographic authentication
// to message contents (spec §6 "Secure transport policy").
func ClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"collective-share"},
	}
}
