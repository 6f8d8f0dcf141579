package transport

import (
	"errors"
	"testing"
)

type sink struct {
	got [][]byte
	err error
}

func (s *sink) Send(msg []byte) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, msg)
	return nil
}

type resettable struct {
	sink
	resets int
}

func (r *resettable) Reset() error {
	r.resets++
	return nil
}

func TestTeeMirrorsAcceptedMessages(t *testing.T) {
	primary := &resettable{}
	mirror := &sink{}
	down := &sink{err: ErrNotConnected}
	tee := NewTee(primary, nil, mirror, down)

	if err := tee.Send([]byte{0xBF, 0x00, 0x7F}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(primary.got) != 1 || len(mirror.got) != 1 {
		t.Fatalf("primary %d, mirror %d messages, want 1, 1", len(primary.got), len(mirror.got))
	}
	if tee.MirrorErrors() != 1 {
		t.Fatalf("mirror errors = %d, want 1", tee.MirrorErrors())
	}

	primary.err = errors.New("gone")
	if err := tee.Send([]byte{0xBF, 0x00, 0x00}); err == nil {
		t.Fatal("primary error swallowed")
	}
	if len(mirror.got) != 1 {
		t.Fatal("mirror received a message the primary rejected")
	}

	if err := tee.Reset(); err != nil || primary.resets != 1 {
		t.Fatalf("Reset = %v, resets = %d", err, primary.resets)
	}
}
