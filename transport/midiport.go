package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ExcludedPatterns are virtual/system ports that are never auto-connected.
var ExcludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

const midiRescanInterval = time.Second

// OutWatcher keeps a connection to a host MIDI output port and mirrors
// messages to it. It handles hot-plug (port appears) and hot-unplug (port
// disappears or a send fails); while disconnected Send returns
// ErrNotConnected.
type OutWatcher struct {
	mu           sync.Mutex
	drv          drivers.Driver
	outPort      drivers.Out
	connected    bool
	selectedName string
	lastRescanAt time.Time

	preferred []string
	logger    *slog.Logger
}

// NewOutWatcher creates a watcher that connects to the first output whose
// name contains one of preferred (case-insensitive), or to the only output
// present when preferred is empty. Call Close when done.
func NewOutWatcher(preferred []string, logger *slog.Logger) (*OutWatcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return newOutWatcher(drv, preferred, logger), nil
}

func newOutWatcher(drv drivers.Driver, preferred []string, logger *slog.Logger) *OutWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutWatcher{
		drv:       drv,
		preferred: preferred,
		logger:    logger,
	}
}

// Close shuts down the active MIDI connection and the rtmidi driver.
func (m *OutWatcher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConn()
	_ = m.drv.Close()
}

// Run rescans every rescan interval until ctx is done. The ticker paces
// the scans, so the Tick rate limit does not apply. Let Run return before
// calling Close.
func (m *OutWatcher) Run(ctx context.Context) {
	m.rescan()
	ticker := time.NewTicker(midiRescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			m.rescan()
		}
	}
}

// Tick rescans unless the last scan was less than the rescan interval ago.
// It suits callers polling at an arbitrary rate.
func (m *OutWatcher) Tick() {
	m.mu.Lock()
	now := time.Now()
	due := m.lastRescanAt.IsZero() || now.Sub(m.lastRescanAt) >= midiRescanInterval
	m.mu.Unlock()
	if due {
		m.rescan()
	}
}

// rescan scans for ports, auto-connects to a preferred one, and detects
// disappearances.
func (m *OutWatcher) rescan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRescanAt = time.Now()

	outputs := m.listOutputs()

	if m.connected {
		for _, n := range outputs {
			if n == m.selectedName {
				return
			}
		}
		m.logger.Warn("midi: port disappeared", "port", m.selectedName)
		m.closeConn()
		m.lastRescanAt = time.Time{}
		return
	}

	if len(outputs) == 0 {
		return
	}
	cand, ok := pickPreferred(outputs, m.preferred)
	if !ok {
		return
	}
	if err := m.openByName(cand); err != nil {
		m.logger.Error("midi: connect failed", "port", cand, "err", err)
	}
}

// Send writes msg to the connected port. A failed send drops the
// connection; the next Tick reconnects.
func (m *OutWatcher) Send(msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	if err := m.outPort.Send(msg); err != nil {
		m.logger.Warn("midi: send failed", "port", m.selectedName, "err", err)
		m.closeConn()
		m.lastRescanAt = time.Time{}
		return fmt.Errorf("midi: send: %w", err)
	}
	return nil
}

// Connected returns the name of the connected port, if any.
func (m *OutWatcher) Connected() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedName, m.connected
}

// -------------------- internal --------------------

func (m *OutWatcher) listOutputs() []string {
	outs, err := m.drv.Outs()
	if err != nil {
		m.logger.Error("midi: list outputs failed", "err", err)
		return nil
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	names = filterExcluded(names)
	m.logger.Debug("midi: outputs found", "count", len(names), "ports", strings.Join(names, ", "))
	return names
}

func (m *OutWatcher) closeConn() {
	if m.outPort != nil {
		_ = m.outPort.Close()
		m.outPort = nil
	}
	m.connected = false
	m.selectedName = ""
}

func (m *OutWatcher) openByName(name string) error {
	outs, err := m.drv.Outs()
	if err != nil {
		return err
	}
	var found drivers.Out
	for _, out := range outs {
		if out.String() == name {
			found = out
			break
		}
	}
	if found == nil {
		return fmt.Errorf("output %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	m.outPort = found
	m.connected = true
	m.selectedName = name
	m.logger.Info("midi: connected", "port", name)
	return nil
}

// -------------------- utility --------------------

func filterExcluded(names []string) []string {
	out := names[:0]
	for _, name := range names {
		excluded := false
		for _, pat := range ExcludedPatterns {
			if containsCI(name, pat) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, name)
		}
	}
	return out
}

func pickPreferred(names, patterns []string) (string, bool) {
	for _, pat := range patterns {
		for _, name := range names {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(names) == 1 {
		return names[0], true
	}
	return "", false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
