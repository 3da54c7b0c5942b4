package transport

import "github.com/pkg/errors"

// ErrResolution indicates that hostname resolution failed.
var ErrResolution = errors.New("failed to resolve hostname")

// ErrConnection indicates that no resolved host could be connected to.
var ErrConnection = errors.New("failed to connect to host")

// ErrSNI indicates that no server name was available for the TLS handshake.
var ErrSNI = errors.New("failed to set tls sni")

// ErrHandshake indicates that the TLS handshake failed.
var ErrHandshake = errors.New("failed to establish secure connection")

// ErrGatewayHandshake indicates that the WebSocket upgrade with the gateway failed.
var ErrGatewayHandshake = errors.New("failed to handshake on websocket layer")
