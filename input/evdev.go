// Package input feeds encoder counters and key events from Linux input
// devices to the panel.
package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/holoplot/go-evdev"

	"github.com/chase3718/iopanel/panel"
)

const (
	keyRelease = 0
	keyPress   = 1
)

// Device reads one evdev node and routes its events: EV_REL codes move
// bound counters, EV_KEY codes push press/release events onto the queue.
type Device struct {
	path   string
	dev    *evdev.InputDevice
	queue  *Queue
	logger *slog.Logger

	encoders map[evdev.EvCode]*Counter
	keys     map[evdev.EvCode]int
}

// OpenDevice opens the input node at path. Key events go to queue.
func OpenDevice(path string, queue *Queue, logger *slog.Logger) (*Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	d := newDevice(path, dev, queue, logger)
	name, _ := dev.Name()
	d.logger.Info("input: device opened", "path", path, "name", name)
	return d, nil
}

func newDevice(path string, dev *evdev.InputDevice, queue *Queue, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		path:     path,
		dev:      dev,
		queue:    queue,
		logger:   logger,
		encoders: make(map[evdev.EvCode]*Counter),
		keys:     make(map[evdev.EvCode]int),
	}
}

func (d *Device) Path() string { return d.path }

// BindEncoder routes relative events with the given code to c.
func (d *Device) BindEncoder(code evdev.EvCode, c *Counter) {
	d.encoders[code] = c
}

// BindKey maps a key code to a panel key index.
func (d *Device) BindKey(code evdev.EvCode, index int) {
	d.keys[code] = index
}

// Grab takes the device exclusively so key presses do not leak to a console.
func (d *Device) Grab() error {
	return d.dev.Grab()
}

// Run reads events until ctx is done or the device fails. Closing the
// device on cancellation unblocks the pending read.
func (d *Device) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = d.dev.Close() })
	defer stop()

	for {
		ev, err := d.dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("input: read %s: %w", d.path, err)
		}
		d.handle(ev)
	}
}

// Close releases the device.
func (d *Device) Close() error {
	err := d.dev.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

func (d *Device) handle(ev *evdev.InputEvent) {
	switch ev.Type {
	case evdev.EV_REL:
		c, ok := d.encoders[ev.Code]
		if !ok {
			return
		}
		c.Add(ev.Value)
	case evdev.EV_KEY:
		index, ok := d.keys[ev.Code]
		if !ok {
			return
		}
		var pressed bool
		switch ev.Value {
		case keyPress:
			pressed = true
		case keyRelease:
		default:
			// autorepeat
			return
		}
		if !d.queue.Push(panel.KeyEvent{Index: index, Pressed: pressed}) {
			d.logger.Warn("input: key queue full, event dropped",
				"path", d.path, "key", index, "pressed", pressed, "dropped", d.queue.Dropped())
		}
	}
}

// ParseRelCode resolves "REL_DIAL" style names or a numeric code.
func ParseRelCode(s string) (evdev.EvCode, error) {
	return parseCode(s, evdev.RELFromString)
}

// ParseKeyCode resolves "KEY_1" style names or a numeric code.
func ParseKeyCode(s string) (evdev.EvCode, error) {
	return parseCode(s, evdev.KEYFromString)
}

func parseCode(s string, names map[string]evdev.EvCode) (evdev.EvCode, error) {
	s = strings.TrimSpace(s)
	if code, ok := names[strings.ToUpper(s)]; ok {
		return code, nil
	}
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("input: unknown event code %q", s)
	}
	return evdev.EvCode(n), nil
}
