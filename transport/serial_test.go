package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"go.bug.st/serial"
)

// fakePort satisfies serial.Port through the embedded interface; only the
// methods Serial uses are implemented.
type fakePort struct {
	serial.Port
	written  bytes.Buffer
	writes   []int // bytes accepted per call; -1 fails the call
	closed   bool
	writeErr error
}

func (f *fakePort) Write(p []byte) (int, error) {
	if len(f.writes) == 0 {
		f.written.Write(p)
		return len(p), nil
	}
	n := f.writes[0]
	f.writes = f.writes[1:]
	if n < 0 {
		return 0, f.writeErr
	}
	if n > len(p) {
		n = len(p)
	}
	f.written.Write(p[:n])
	return n, nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func openFake(ports ...*fakePort) (openFunc, *int) {
	calls := 0
	return func(name string, mode *serial.Mode) (serial.Port, error) {
		if calls >= len(ports) {
			return nil, errors.New("no such device")
		}
		p := ports[calls]
		calls++
		return p, nil
	}, &calls
}

func TestSerialSendRetriesShortWrites(t *testing.T) {
	port := &fakePort{writes: []int{1, 1}}
	open, _ := openFake(port)
	s, err := openSerial("/dev/ttyTEST", DefaultBaud, open, nil)
	if err != nil {
		t.Fatalf("openSerial: %v", err)
	}
	msg := []byte{0xBF, 0x01, 0x7F}
	if err := s.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(port.written.Bytes(), msg) {
		t.Fatalf("written % X, want % X", port.written.Bytes(), msg)
	}
}

func TestSerialSendGivesUp(t *testing.T) {
	cause := errors.New("EIO")
	port := &fakePort{writes: []int{-1, -1, -1}, writeErr: cause}
	open, _ := openFake(port)
	s, err := openSerial("/dev/ttyTEST", DefaultBaud, open, nil)
	if err != nil {
		t.Fatalf("openSerial: %v", err)
	}
	if err := s.Send([]byte{0xBF, 0x00, 0x00}); !errors.Is(err, cause) {
		t.Fatalf("Send = %v, want %v", err, cause)
	}
}

func TestSerialSendZeroProgressIsShortWrite(t *testing.T) {
	port := &fakePort{writes: []int{0, 0, 0}}
	open, _ := openFake(port)
	s, _ := openSerial("/dev/ttyTEST", DefaultBaud, open, nil)
	if err := s.Send([]byte{0xBF, 0x00, 0x00}); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("Send = %v, want short write", err)
	}
}

func TestSerialReset(t *testing.T) {
	first, second := &fakePort{}, &fakePort{}
	open, calls := openFake(first, second)
	s, err := openSerial("/dev/ttyTEST", DefaultBaud, open, nil)
	if err != nil {
		t.Fatalf("openSerial: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !first.closed {
		t.Fatal("old port not closed")
	}
	if *calls != 2 {
		t.Fatalf("open called %d times, want 2", *calls)
	}
	if err := s.Send([]byte{0xBF, 0x02, 0x7F}); err != nil {
		t.Fatalf("Send after reset: %v", err)
	}
	if second.written.Len() != 3 {
		t.Fatalf("new port got %d bytes, want 3", second.written.Len())
	}

	// No more devices: reset fails and the link stays down.
	if err := s.Reset(); err == nil {
		t.Fatal("Reset succeeded without a device")
	}
	if err := s.Send([]byte{0xBF, 0x02, 0x7F}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send on dead link = %v, want ErrNotConnected", err)
	}
}
