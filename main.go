package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chase3718/iopanel/config"
	"github.com/chase3718/iopanel/input"
	"github.com/chase3718/iopanel/panel"
	"github.com/chase3718/iopanel/transport"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Main --------------------

func main() {
	configPath := flag.String("config", "iopanel.yaml", "panel config file (defaults are used if it does not exist)")
	debug := flag.Bool("debug", false, "enable debug logging; logs every CC sent")
	serialDev := flag.String("serial", "", "serial port device (overrides config)")
	baud := flag.Int("baud", 0, "serial baud rate (overrides config)")
	midiOut := flag.String("midi-out", "", "mirror to the host MIDI output whose name contains this (overrides config)")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	flag.Parse()

	initLogger(*debug)

	if *listPorts {
		if err := printPorts(); err != nil {
			logger.Error("list ports failed", "err", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *midiOut != "" {
		cfg.MIDI.MirrorPort = *midiOut
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "err", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error("iopanel failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger.Info("iopanel starting",
		"serial", cfg.Serial.Device,
		"baud", cfg.Serial.Baud,
		"channel", cfg.MIDI.Channel,
		"encoders", len(cfg.Encoders),
		"keys", len(cfg.Keys),
		"mirror", cfg.MIDI.MirrorPort,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sp, err := transport.OpenSerial(cfg.Serial.Device, cfg.Serial.Baud, logger)
	if err != nil {
		return err
	}
	defer sp.Close()
	sp.SetRetries(cfg.Serial.Retries)

	var out panel.Sender = sp
	var tee *transport.Tee
	var background []func(context.Context)
	if cfg.MIDI.MirrorPort != "" {
		watcher, err := transport.NewOutWatcher([]string{cfg.MIDI.MirrorPort}, logger)
		if err != nil {
			return fmt.Errorf("midi mirror: %w", err)
		}
		// serve waits for watcher.Run before this runs.
		defer watcher.Close()
		background = append(background, watcher.Run)
		tee = transport.NewTee(sp, logger, watcher)
		out = tee
	}

	queue := input.NewQueue(cfg.Poll.QueueSize)
	inputs, err := openInputs(cfg, queue)
	if err != nil {
		return err
	}
	defer inputs.Close()

	// The poller snapshots the counters here, before any reader runs.
	poller, err := panel.NewPoller(panel.Config{
		Encoders: inputs.encoders,
		Keys:     queue,
		Out:      out,
		Channel:  uint8(cfg.MIDI.Channel),
		Idle:     cfg.Poll.Idle,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if cfg.Poll.StatsInterval > 0 {
		background = append(background, func(ctx context.Context) {
			logStats(ctx, cfg.Poll.StatsInterval, poller, queue, tee)
		})
	}

	readers := make([]reader, len(inputs.devices))
	for i, d := range inputs.devices {
		readers[i] = d
	}

	logger.Info("running")
	if err := serve(ctx, poller, readers, background...); err != nil {
		return err
	}
	logger.Info("iopanel stopped", "emitted", poller.Stats().Snapshot().Emitted)
	return nil
}

// reader is an input source that feeds the poller from its own goroutine.
type reader interface {
	Run(ctx context.Context) error
}

// serve starts the readers and background tasks, then polls until ctx is
// done or a reader fails. A failed reader is a hardware fault and ends the
// run with its error. serve returns only after every goroutine it started
// has returned.
func serve(ctx context.Context, p *panel.Poller, readers []reader, background ...func(context.Context)) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for _, bg := range background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bg(ctx)
		}()
	}
	for _, r := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				cancel(err)
			}
		}()
	}

	_ = p.Run(ctx)
	cancel(nil)
	wg.Wait()

	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return nil
	}
	return cause
}

func logStats(ctx context.Context, every time.Duration, p *panel.Poller, q *input.Queue, tee *transport.Tee) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.Stats().Snapshot()
			attrs := []any{
				"emitted", s.Emitted,
				"write_errors", s.WriteErrors,
				"resets", s.Resets,
				"keys_dropped", q.Dropped(),
			}
			if tee != nil {
				attrs = append(attrs, "mirror_errors", tee.MirrorErrors())
			}
			logger.Info("stats", attrs...)
		}
	}
}

func printPorts() error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.USB {
			fmt.Printf("%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.Serial, p.Product)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}
