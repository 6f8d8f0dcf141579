package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chase3718/iopanel/input"
	"github.com/chase3718/iopanel/panel"
)

type countingSender struct{ msgs [][]byte }

func (s *countingSender) Send(msg []byte) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

// tickingReader moves its counter as soon as it starts, then waits.
type tickingReader struct {
	counter *input.Counter
	steps   int32
	err     error
}

func (r *tickingReader) Run(ctx context.Context) error {
	r.counter.Add(r.steps)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func newServePoller(t *testing.T, c *input.Counter, out panel.Sender) *panel.Poller {
	t.Helper()
	p, err := panel.NewPoller(panel.Config{
		Encoders: []panel.EncoderCounter{c},
		Out:      out,
		Channel:  panel.DefaultChannel,
		Idle:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	return p
}

func TestServeSendsTicksFromReaderStartup(t *testing.T) {
	c := input.NewCounter(1, false)
	out := &countingSender{}
	p := newServePoller(t, c, out)

	var bgDone atomic.Bool
	bg := func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		bgDone.Store(true)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := serve(ctx, p, []reader{&tickingReader{counter: c, steps: 3}}, bg); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if len(out.msgs) != 3 {
		t.Fatalf("sent %d messages, want 3", len(out.msgs))
	}
	if !bgDone.Load() {
		t.Fatal("serve returned before its background task")
	}
}

func TestServeStopsOnReaderFault(t *testing.T) {
	c := input.NewCounter(1, false)
	p := newServePoller(t, c, &countingSender{})
	fault := errors.New("device unplugged")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	err := serve(ctx, p, []reader{&tickingReader{counter: c, err: fault}})
	if !errors.Is(err, fault) {
		t.Fatalf("serve = %v, want %v", err, fault)
	}
	if time.Since(start) > time.Second {
		t.Fatal("serve kept running after a reader fault")
	}
}
