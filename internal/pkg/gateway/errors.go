package gateway

import "github.com/pkg/errors"

// ErrSend indicates that writing a frame to the gateway failed.
var ErrSend = errors.New("failed to send gateway frame")

// ErrReceive indicates that reading a frame from the gateway failed.
var ErrReceive = errors.New("failed to receive gateway frame")

// ErrReconnectRequested indicates that the gateway asked this client to
// drop the connection and resume on a fresh one.
var ErrReconnectRequested = errors.New("gateway requested reconnect")

// ErrSessionInvalidated indicates that the gateway rejected the session.
var ErrSessionInvalidated = errors.New("gateway invalidated session")
