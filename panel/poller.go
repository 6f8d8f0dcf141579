// Package panel translates encoder movement and key presses into a stream of
// MIDI Control Change messages.
//
// Every encoder click becomes one message: 127 for a step up, 0 for a step
// down, so the receiver counts messages instead of reading values. Keys send
// 127 on press and 0 on release, on controllers numbered after the encoders.
package panel

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"
)

// failureBackoff is slept after a failed cycle.
const failureBackoff = 100 * time.Millisecond

// Config describes a Poller.
type Config struct {
	Encoders []EncoderCounter
	Keys     KeyQueue
	Out      Sender

	// Channel is the wire channel nibble, 0..15.
	Channel uint8

	// Idle is slept after a cycle that emitted nothing. Zero busy-polls.
	Idle time.Duration

	Logger *slog.Logger
}

// Poller owns the per-encoder snapshots and runs the poll loop. It is not
// safe for concurrent use; Stats may be read from anywhere.
type Poller struct {
	encoders []EncoderCounter
	keys     KeyQueue
	out      Sender
	channel  uint8
	idle     time.Duration
	logger   *slog.Logger

	state *encoderState
	stats Stats

	// pending is a key event whose write failed; it goes out first next
	// cycle.
	pending *KeyEvent
}

// NewPoller snapshots every encoder's current position as its starting point.
func NewPoller(cfg Config) (*Poller, error) {
	if cfg.Out == nil {
		return nil, errors.New("panel: nil sender")
	}
	if cfg.Channel > 15 {
		return nil, fmt.Errorf("panel: channel %d out of range", cfg.Channel)
	}
	keys := cfg.Keys
	if keys == nil {
		keys = noKeys{}
	}
	if len(cfg.Encoders) > MaxController+1 {
		return nil, fmt.Errorf("panel: %d encoders exceed controller range", len(cfg.Encoders))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		encoders: cfg.Encoders,
		keys:     keys,
		out:      cfg.Out,
		channel:  cfg.Channel,
		idle:     cfg.Idle,
		logger:   logger,
		state:    newEncoderState(cfg.Encoders),
	}, nil
}

// Stats returns the poller's counters.
func (p *Poller) Stats() *Stats { return &p.stats }

// EncoderCount is the number of encoders, which is also the controller
// number of key 0.
func (p *Poller) EncoderCount() int { return len(p.encoders) }

// DrainKeyEvents yields buffered key events oldest first and stops when the
// queue is empty. An event that failed to send on the previous cycle comes
// before anything still queued.
func (p *Poller) DrainKeyEvents() iter.Seq[KeyEvent] {
	return func(yield func(KeyEvent) bool) {
		if p.pending != nil {
			ev := *p.pending
			p.pending = nil
			if !yield(ev) {
				return
			}
		}
		for {
			ev, ok := p.keys.Next()
			if !ok || !yield(ev) {
				return
			}
		}
	}
}

// ReadEncoderDelta returns how far encoder ch has moved since the last
// commit. It does not change any state. ch must be in [0, EncoderCount()).
func (p *Poller) ReadEncoderDelta(ch int) int {
	return p.state.delta(ch, p.encoders[ch].Position())
}

// CommitEncoderPosition records encoder ch's current position as observed.
// Movement between the last ReadEncoderDelta and this call is absorbed.
// ch must be in [0, EncoderCount()).
func (p *Poller) CommitEncoderPosition(ch int) {
	p.state.commit(ch, p.encoders[ch].Position())
}

// Emit encodes one Control Change and writes it to the transport.
func (p *Poller) Emit(controller, value uint8) error {
	msg := CC{Controller: controller, Value: value}.Encode(p.channel)
	if err := p.out.Send(msg); err != nil {
		p.stats.writeErrors.Add(1)
		return &WriteError{Controller: controller, Value: value, Err: err}
	}
	p.stats.emitted.Add(1)
	p.logger.Debug("panel: cc", "cc", controller, "value", value, "channel", p.channel)
	return nil
}

// TranslateDelta emits abs(delta) messages on encoder ch's controller, all
// carrying 127 for positive movement or 0 for negative. It returns how many
// were written before any error.
func (p *Poller) TranslateDelta(ch, delta int) (int, error) {
	if ch < 0 || ch >= len(p.encoders) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownEncoder, ch)
	}
	if delta == 0 {
		return 0, nil
	}
	value := tickValue(delta)
	n := delta
	if n < 0 {
		n = -n
	}
	for i := 0; i < n; i++ {
		if err := p.Emit(uint8(ch), value); err != nil {
			return i, err
		}
	}
	return n, nil
}

// Cycle runs one pass of the loop: drain every pending key event, then
// translate and commit each encoder in index order. It reports whether any
// message was emitted.
//
// On a write failure the cycle stops. A key event that failed to send is
// kept and retried first; the failing encoder's snapshot advances only by
// the ticks actually sent, so the remainder goes out on a later cycle.
func (p *Poller) Cycle() (bool, error) {
	emitted := false
	base := len(p.encoders)
	for ev := range p.DrainKeyEvents() {
		controller := base + ev.Index
		if ev.Index < 0 || controller > MaxController {
			p.logger.Warn("panel: key out of controller range", "key", ev.Index)
			continue
		}
		if err := p.Emit(uint8(controller), keyValue(ev.Pressed)); err != nil {
			p.pending = &ev
			return emitted, err
		}
		emitted = true
	}

	for ch := range p.encoders {
		pos := p.encoders[ch].Position()
		delta := p.state.delta(ch, pos)
		sent, err := p.TranslateDelta(ch, delta)
		if err != nil {
			p.state.advance(ch, delta, sent)
			return emitted || sent > 0, err
		}
		p.CommitEncoderPosition(ch)
		emitted = emitted || sent > 0
	}
	return emitted, nil
}

// Run polls until ctx is done. Write failures are logged and, when the
// sender supports it, the link is reset; the loop then carries on.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("panel: polling",
		"encoders", len(p.encoders),
		"channel", p.channel,
		"idle", p.idle,
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		emitted, err := p.Cycle()
		wait := time.Duration(0)
		switch {
		case err != nil:
			p.handleFailure(err)
			wait = failureBackoff
		case !emitted:
			wait = p.idle
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}

func (p *Poller) handleFailure(err error) {
	var we *WriteError
	if !errors.As(err, &we) {
		p.logger.Error("panel: cycle failed", "err", err)
		return
	}
	p.logger.Warn("panel: write failed", "cc", we.Controller, "value", we.Value, "err", we.Err)
	r, ok := p.out.(Resetter)
	if !ok {
		return
	}
	if err := r.Reset(); err != nil {
		p.logger.Error("panel: link reset failed", "err", err)
		return
	}
	p.stats.resets.Add(1)
	p.logger.Info("panel: link reset")
}

type noKeys struct{}

func (noKeys) Next() (KeyEvent, bool) { return KeyEvent{}, false }
