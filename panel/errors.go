package panel

import (
	"errors"
	"fmt"
)

// ErrUnknownEncoder is returned for an encoder index the poller does not have.
var ErrUnknownEncoder = errors.New("panel: unknown encoder")

// WriteError reports a message the transport failed to put on the wire.
type WriteError struct {
	Controller uint8
	Value      uint8
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("panel: write cc %d=%d: %v", e.Controller, e.Value, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
