package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "gateway.example.test"},
		DNSNames:     []string{"gateway.example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestResolve(t *testing.T) {
	e, err := NewEstablisher()
	require.NoError(t, err)
	hosts, err := e.Resolve(context.Background(), "localhost", "8443")
	require.NoError(t, err)
	require.Equal(t, "localhost", hosts.Hostname)
	require.NotEmpty(t, hosts.Addrs)
	for _, addr := range hosts.Addrs {
		_, port, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		require.Equal(t, "8443", port)
	}
}

func TestResolveUnknownService(t *testing.T) {
	e, err := NewEstablisher()
	require.NoError(t, err)
	_, err = e.Resolve(context.Background(), "localhost", "no-such-service")
	require.ErrorIs(t, err, ErrResolution)
}

func TestSecureConnectEmptyHostname(t *testing.T) {
	e, err := NewEstablisher()
	require.NoError(t, err)
	_, err = e.SecureConnect(context.Background(), "", HostSet{})
	require.ErrorIs(t, err, ErrSNI)
}

func TestSecureConnectNoReachableHost(t *testing.T) {
	e, err := NewEstablisher()
	require.NoError(t, err)
	_, err = e.SecureConnect(context.Background(), "example.test", HostSet{
		Hostname: "example.test",
		Addrs:    []string{"127.0.0.1:1"},
	})
	require.ErrorIs(t, err, ErrConnection)
}

// The server name must reach the server inside the ClientHello, before the
// handshake completes.
func TestSecureConnectSetsSNI(t *testing.T) {
	cert := selfSignedCert(t)
	received := make(chan string, 1)
	serverConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			received <- hello.ServerName
			return nil, nil
		},
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverConfig)
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.(*tls.Conn).Handshake()
		conn.Close()
	}()

	e, err := NewEstablisher(WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	stream, err := e.SecureConnect(context.Background(), "gateway.example.test", HostSet{
		Hostname: "gateway.example.test",
		Addrs:    []string{ln.Addr().String()},
	})
	require.NoError(t, err)
	defer stream.Disconnect()
	require.Equal(t, "gateway.example.test", <-received)
}

func TestSecureConnectHandshakeFailure(t *testing.T) {
	// A plain TCP listener that never speaks TLS.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	e, err := NewEstablisher(WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	_, err = e.SecureConnect(context.Background(), "example.test", HostSet{
		Hostname: "example.test",
		Addrs:    []string{ln.Addr().String()},
	})
	require.ErrorIs(t, err, ErrHandshake)
}

func TestSecureDisconnectIdempotent(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	e, err := NewEstablisher(WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	stream, err := e.SecureConnect(context.Background(), "127.0.0.1", HostSet{
		Hostname: "127.0.0.1",
		Addrs:    []string{ts.Listener.Addr().String()},
	})
	require.NoError(t, err)

	stream.Disconnect()
	stream.Disconnect()
}

func TestUpgradeToGateway(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusInternalError, "")
		typ, b, err := c.Read(r.Context())
		if err != nil {
			return
		}
		_ = c.Write(r.Context(), typ, b)
		// Block until the peer closes.
		_, _, _ = c.Read(r.Context())
	}))
	defer ts.Close()

	e, err := NewEstablisher(WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	gs, err := e.UpgradeToGateway(ctx, ts.Listener.Addr().String(), "/?v=10&encoding=json")
	require.NoError(t, err)

	require.NoError(t, gs.Write(ctx, websocket.MessageText, []byte(`{"op":1,"d":null}`)))
	typ, b, err := gs.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	require.Equal(t, `{"op":1,"d":null}`, string(b))

	gs.Disconnect()
	gs.Disconnect()
}

func TestUpgradeToGatewayRefused(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no upgrade here", http.StatusBadRequest)
	}))
	defer ts.Close()

	e, err := NewEstablisher(WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	_, err = e.UpgradeToGateway(context.Background(), ts.Listener.Addr().String(), "/")
	require.ErrorIs(t, err, ErrGatewayHandshake)
}
