// Package transport carries encoded MIDI messages off the host: a UART for
// the panel link and, optionally, a host MIDI output port as a mirror.
package transport

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// DefaultBaud is the panel link rate.
	DefaultBaud = 1_000_000

	// DefaultRetries is how many times a failed write is retried before the
	// error is returned.
	DefaultRetries = 2
)

type openFunc func(name string, mode *serial.Mode) (serial.Port, error)

// Serial wraps a go.bug.st/serial port with a retrying message writer.
type Serial struct {
	name    string
	mode    *serial.Mode
	port    serial.Port
	open    openFunc
	retries int
	logger  *slog.Logger
}

// OpenSerial opens the named serial device at the given baud rate, 8N1.
func OpenSerial(name string, baud int, logger *slog.Logger) (*Serial, error) {
	return openSerial(name, baud, serial.Open, logger)
}

func openSerial(name string, baud int, open openFunc, logger *slog.Logger) (*Serial, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Serial{
		name: name,
		mode: &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		open:    open,
		retries: DefaultRetries,
		logger:  logger,
	}
	p, err := open(name, s.mode)
	if err != nil {
		logger.Error("serial: failed to open port", "device", name, "baud", baud, "err", err)
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	s.port = p
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return s, nil
}

// SetRetries sets how many extra attempts a failed write gets.
func (s *Serial) SetRetries(n int) {
	if n < 0 {
		n = 0
	}
	s.retries = n
}

// Send writes msg in full. A failed or short write is retried from where it
// stopped.
func (s *Serial) Send(msg []byte) error {
	if s.port == nil {
		return ErrNotConnected
	}
	rest := msg
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		n, err := s.port.Write(rest)
		rest = rest[n:]
		if len(rest) == 0 {
			return nil
		}
		if err == nil {
			err = io.ErrShortWrite
		}
		lastErr = err
		s.logger.Debug("serial: write retry", "attempt", attempt+1, "remaining", len(rest), "err", err)
	}
	return fmt.Errorf("serial: write %s: %w", s.name, lastErr)
}

// Reset closes and reopens the port.
func (s *Serial) Reset() error {
	s.logger.Warn("serial: resetting link", "device", s.name)
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	p, err := s.open(s.name, s.mode)
	if err != nil {
		return fmt.Errorf("serial: reopen %s: %w", s.name, err)
	}
	s.port = p
	s.logger.Info("serial: port reopened", "device", s.name, "baud", s.mode.BaudRate)
	return nil
}

// Close closes the underlying serial port.
func (s *Serial) Close() error {
	s.logger.Info("serial: closing port", "device", s.name)
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// PortInfo describes a serial device found on the host.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// ListPorts enumerates serial devices, with USB details where available.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial: list ports: %w", err)
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return out, nil
}
