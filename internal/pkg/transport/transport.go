// Package transport establishes secure streams to the gateway and API hosts.
//
// It covers the full ladder: hostname resolution, TCP connect, TLS handshake
// with SNI, and the WebSocket upgrade for the gateway path. Streams are
// exclusively owned by whoever opened them and must be released on every
// exit path, which Disconnect guarantees by being idempotent.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// readLimit is the maximum inbound gateway frame size. The READY event for
// a bot in many guilds can run well past the library default of 32KiB.
const readLimit = 1 << 22

// HostSet is the resolved address candidates for one hostname and service,
// in resolver order. It is produced per connection attempt and not reused.
type HostSet struct {
	Hostname string
	Addrs    []string
}

// SecureStream is one TLS stream bound to a single peer.
type SecureStream struct {
	*tls.Conn
	tcp    net.Conn
	mu     sync.Mutex
	closed bool
}

// Disconnect shuts the stream down gracefully and force-closes the
// underlying transport regardless of the shutdown outcome. A peer that
// already tore the connection down is informational, not an error.
// Safe to call more than once.
func (s *SecureStream) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.Conn.CloseWrite(); err != nil {
		if errors.Is(err, net.ErrClosed) {
			logger.Debug("peer has closed connection")
		} else {
			logger.WithError(err).Warn("tls connection has closed ungracefully")
		}
	}
	if err := s.tcp.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.WithError(err).Warn("close transport failed")
	}
}

// GatewayStream is an upgraded WebSocket stream to the gateway.
type GatewayStream struct {
	*websocket.Conn
	stream *SecureStream
}

// Disconnect closes the WebSocket with a normal closure and then releases
// the secure stream beneath it. Idempotent.
func (g *GatewayStream) Disconnect() {
	if err := g.Conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		logger.WithError(err).Debug("websocket close")
	}
	if g.stream != nil {
		g.stream.Disconnect()
	}
}

// Establisher opens secure streams.
type Establisher struct {
	dialer    *net.Dialer
	resolver  *net.Resolver
	tlsConfig *tls.Config
}

// Cfg configures an Establisher.
type Cfg func(*Establisher) error

// WithTLSConfig sets the template TLS client configuration. The server name
// is still filled in per connect when the template leaves it empty.
func WithTLSConfig(cfg *tls.Config) Cfg {
	return func(e *Establisher) error {
		e.tlsConfig = cfg
		return nil
	}
}

// WithDialer sets the TCP dialer.
func WithDialer(d *net.Dialer) Cfg {
	return func(e *Establisher) error {
		e.dialer = d
		return nil
	}
}

// NewEstablisher creates a new Establisher with the given configuration.
func NewEstablisher(cfgs ...Cfg) (*Establisher, error) {
	e := &Establisher{
		dialer:    &net.Dialer{},
		resolver:  net.DefaultResolver,
		tlsConfig: &tls.Config{},
	}
	for _, cfg := range cfgs {
		if err := cfg(e); err != nil {
			return nil, errors.Wrap(err, "apply Establisher cfg failed")
		}
	}
	return e, nil
}

// Resolve looks up the address candidates for hostname and service.
func (e *Establisher) Resolve(ctx context.Context, hostname, service string) (HostSet, error) {
	port, err := e.resolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		logger.WithError(err).Error("failed to resolve service")
		return HostSet{}, errors.Wrapf(ErrResolution, "lookup service %s", service)
	}
	addrs, err := e.resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		logger.WithError(err).Error("failed to resolve host")
		return HostSet{}, errors.Wrapf(ErrResolution, "lookup host %s", hostname)
	}
	hosts := HostSet{Hostname: hostname}
	for _, addr := range addrs {
		hosts.Addrs = append(hosts.Addrs, net.JoinHostPort(addr.IP.String(), strconv.Itoa(port)))
	}
	return hosts, nil
}

// SecureConnect dials the host candidates in resolver order and performs a
// TLS handshake with the SNI set to hostname. On handshake failure the
// half-open TCP connection is closed before the error surfaces.
func (e *Establisher) SecureConnect(ctx context.Context, hostname string, hosts HostSet) (*SecureStream, error) {
	if hostname == "" {
		logger.Error("failed to set tls sni")
		return nil, ErrSNI
	}
	tlsConfig := e.tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = hostname
	}

	var tcp net.Conn
	var err error
	for _, addr := range hosts.Addrs {
		tcp, err = e.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("addr", addr).Debug("connect candidate failed")
	}
	if tcp == nil {
		logger.WithError(err).Error("failed to connect to host")
		return nil, errors.Wrapf(ErrConnection, "connect %s", hostname)
	}

	conn := tls.Client(tcp, tlsConfig)
	if err := conn.HandshakeContext(ctx); err != nil {
		logger.WithError(err).Error("failed to establish secure connection")
		if cerr := tcp.Close(); cerr != nil {
			logger.WithError(cerr).Warn("close transport after handshake failure failed")
		}
		return nil, errors.Wrapf(ErrHandshake, "handshake with %s", hostname)
	}

	return &SecureStream{Conn: conn, tcp: tcp}, nil
}

// UpgradeToGateway resolves the gateway hostname, secure-connects to it and
// performs the WebSocket upgrade with the given handshake option.
func (e *Establisher) UpgradeToGateway(ctx context.Context, hostname, option string) (*GatewayStream, error) {
	var stream *SecureStream
	client := &http.Client{
		Transport: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, service, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrapf(err, "split dial address %s failed", addr)
				}
				hosts, err := e.Resolve(ctx, host, service)
				if err != nil {
					return nil, err
				}
				s, err := e.SecureConnect(ctx, host, hosts)
				if err != nil {
					return nil, err
				}
				stream = s
				return s, nil
			},
		},
	}

	conn, _, err := websocket.Dial(ctx, "wss://"+hostname+option, &websocket.DialOptions{
		HTTPClient: client,
	})
	if err != nil {
		logger.WithError(err).Error("failed to handshake on websocket layer with gateway")
		if stream != nil {
			stream.Disconnect()
		}
		return nil, errors.Wrapf(ErrGatewayHandshake, "upgrade with %s", hostname)
	}
	conn.SetReadLimit(readLimit)
	return &GatewayStream{Conn: conn, stream: stream}, nil
}
