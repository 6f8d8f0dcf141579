package transport

import "errors"

// ErrNotConnected is returned by sinks with no open link.
var ErrNotConnected = errors.New("transport: not connected")
