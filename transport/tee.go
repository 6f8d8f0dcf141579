package transport

import (
	"errors"
	"log/slog"
	"sync/atomic"
)

// Sender is anything that can put a message on a wire.
type Sender interface {
	Send(msg []byte) error
}

// Tee sends every message to a primary sink and any number of mirrors.
// Only the primary's error is returned; mirror failures are counted and
// logged at debug level.
type Tee struct {
	primary Sender
	mirrors []Sender
	logger  *slog.Logger

	mirrorErrors atomic.Uint64
}

func NewTee(primary Sender, logger *slog.Logger, mirrors ...Sender) *Tee {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tee{primary: primary, mirrors: mirrors, logger: logger}
}

// Send writes to the primary first; mirrors only see messages the primary
// accepted.
func (t *Tee) Send(msg []byte) error {
	if err := t.primary.Send(msg); err != nil {
		return err
	}
	for _, m := range t.mirrors {
		if err := m.Send(msg); err != nil {
			t.mirrorErrors.Add(1)
			if !errors.Is(err, ErrNotConnected) {
				t.logger.Debug("tee: mirror send failed", "err", err)
			}
		}
	}
	return nil
}

// Reset resets the primary link when it supports it.
func (t *Tee) Reset() error {
	if r, ok := t.primary.(interface{ Reset() error }); ok {
		return r.Reset()
	}
	return nil
}

// MirrorErrors is the number of failed mirror sends.
func (t *Tee) MirrorErrors() uint64 { return t.mirrorErrors.Load() }
