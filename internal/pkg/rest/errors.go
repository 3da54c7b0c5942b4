package rest

import "github.com/pkg/errors"

// ErrSend indicates that the HTTP request could not be written.
var ErrSend = errors.New("failed to send http request")

// ErrReceive indicates that the HTTP response could not be read.
var ErrReceive = errors.New("failed to receive http response")

// ErrParse indicates that the response body was not parseable.
var ErrParse = errors.New("failed to parse http response")
