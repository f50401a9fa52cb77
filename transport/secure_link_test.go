package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quicLoopback(t *testing.T) (*SecureLink, *SecureLink) {
	t.Helper()

	udpAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	pconn, err := net.ListenUDP("udp", udpAddr)
	require.NoError(t, err)

	tlsConf, err := GenerateSelfSignedTLSConfig()
	require.NoError(t, err)

	ln, err := quic.Listen(pconn, tlsConf, &quic.Config{MaxIdleTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type accepted struct {
		conn quic.Connection
		st   quic.Stream
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			ch <- accepted{err: err}
			return
		}
		st, err := conn.AcceptStream(ctx)
		ch <- accepted{conn, st, err}
	}()

	clientConn, err := quic.DialAddr(ctx, pconn.LocalAddr().String(), ClientTLSConfig(), &quic.Config{MaxIdleTimeout: 10 * time.Second})
	require.NoError(t, err)
	clientStream, err := clientConn.OpenStreamSync(ctx)
	require.NoError(t, err)

	a := <-ch
	require.NoError(t, a.err)

	return NewSecureLink(Server, a.conn, a.st), NewSecureLink(Client, clientConn, clientStream)
}

func TestSecureLinkExchangeRoundTrip(t *testing.T) {
	server, client := quicLoopback(t)
	defer server.Close()
	defer client.Close()

	serverSend := []byte("from-server")
	clientSend := []byte("from-client")
	serverRecv := make([]byte, len(clientSend))
	clientRecv := make([]byte, len(serverSend))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- server.Exchange(ctx, serverSend, serverRecv) }()
	go func() { errCh <- client.Exchange(ctx, clientSend, clientRecv) }()

	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)

	assert.Equal(t, clientSend, serverRecv)
	assert.Equal(t, serverSend, clientRecv)
}

func TestSecureLinkExchangeZeroLength(t *testing.T) {
	server, client := quicLoopback(t)
	defer server.Close()
	defer client.Close()

	ctx := context.Background()
	errCh := make(chan error, 2)
	go func() { errCh <- server.Exchange(ctx, nil, nil) }()
	go func() { errCh <- client.Exchange(ctx, nil, nil) }()

	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)
}

func TestSecureLinkRole(t *testing.T) {
	server, client := quicLoopback(t)
	defer server.Close()
	defer client.Close()

	assert.Equal(t, Server, server.Role())
	assert.Equal(t, Client, client.Role())
}
