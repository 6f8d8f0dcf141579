package panel

import "sync/atomic"

// Stats counts poller activity. Safe to read from other goroutines.
type Stats struct {
	emitted     atomic.Uint64
	writeErrors atomic.Uint64
	resets      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Emitted     uint64
	WriteErrors uint64
	Resets      uint64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Emitted:     s.emitted.Load(),
		WriteErrors: s.writeErrors.Load(),
		Resets:      s.resets.Load(),
	}
}
