package health

import (
	"sync"
	"sync/atomic"
	"time"
)

// warnAfterFailures and frozenAfterFailures bound the consecutive-failure
// count (corrupt-frame timeouts, decode errors) at which Tracker escalates
// Status from OK to Warn to Frozen. Not specified numerically by spec.md;
// recorded as an Open Question decision in DESIGN.md.
const (
	warnAfterFailures   = 3
	frozenAfterFailures = 10
)

// Tracker accumulates per-kind received/lost counts and a consecutive
// failure run using atomics, grounded on the teacher's
// `CameraRelay.videoPacketCount`/`GetStats` pattern generalized from a
// single video/audio pair to an arbitrary set of Kinds.
type Tracker struct {
	startTime time.Time

	mu      sync.RWMutex
	counts  map[Kind]*kindCounters

	consecutiveFailures atomic.Uint32
	recoveredFrames     atomic.Uint64
	frozenFrames        atomic.Uint64
	lastFailureAt       atomic.Int64
	hardError           atomic.Bool
}

type kindCounters struct {
	received atomic.Uint64
	lost     atomic.Uint64
}

// NewTracker creates a Tracker whose Uptime is measured from now.
func NewTracker() *Tracker {
	return &Tracker{
		startTime: time.Now(),
		counts:    make(map[Kind]*kindCounters),
	}
}

func (t *Tracker) countersFor(kind Kind) *kindCounters {
	t.mu.RLock()
	c, ok := t.counts[kind]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.counts[kind]; ok {
		return c
	}
	c = &kindCounters{}
	t.counts[kind] = c
	return c
}

// RecordReceived increments the received counter for kind.
func (t *Tracker) RecordReceived(kind Kind) {
	t.countersFor(kind).received.Add(1)
}

// RecordLost increments the lost counter for kind.
func (t *Tracker) RecordLost(kind Kind) {
	t.countersFor(kind).lost.Add(1)
}

// RecordFrameRecovered marks a frame that was reconstructed via FEC
// (pkg/avdemux) rather than lost outright, and resets the consecutive
// failure run.
func (t *Tracker) RecordFrameRecovered() {
	t.recoveredFrames.Add(1)
	t.consecutiveFailures.Store(0)
}

// RecordFrameFailure marks a frame that could not be assembled within
// the bounded corrupt-frame wait (pkg/avdemux.CorruptWaitBound),
// incrementing both the frozen-frame counter and the consecutive
// failure run.
func (t *Tracker) RecordFrameFailure() {
	t.frozenFrames.Add(1)
	t.consecutiveFailures.Add(1)
	t.lastFailureAt.Store(time.Now().UnixNano())
}

// RecordHardError marks a non-recoverable condition (e.g. handshake or
// transport failure) that immediately forces Status to StatusError
// regardless of the consecutive-failure count.
func (t *Tracker) RecordHardError() {
	t.hardError.Store(true)
}

// ClearHardError clears a previously recorded hard error, e.g. after a
// successful session restart.
func (t *Tracker) ClearHardError() {
	t.hardError.Store(false)
}

// Snapshot returns a consistent point-in-time read of the tracker.
func (t *Tracker) Snapshot() HealthSnapshot {
	failures := t.consecutiveFailures.Load()

	status := StatusOK
	switch {
	case t.hardError.Load():
		status = StatusError
	case failures >= frozenAfterFailures:
		status = StatusFrozen
	case failures >= warnAfterFailures:
		status = StatusWarn
	}

	t.mu.RLock()
	perKind := make(map[Kind]KindCounts, len(t.counts))
	for kind, c := range t.counts {
		perKind[kind] = KindCounts{Received: c.received.Load(), Lost: c.lost.Load()}
	}
	t.mu.RUnlock()

	return HealthSnapshot{
		Status:              status,
		ConsecutiveFailures: failures,
		RecoveredFrames:     t.recoveredFrames.Load(),
		FrozenFrames:        t.frozenFrames.Load(),
		PerKind:             perKind,
		Uptime:              time.Since(t.startTime),
	}
}
