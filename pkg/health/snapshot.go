// Package health tracks per-session stream health: consecutive failure
// runs, frozen/recovered frame counters, and per-kind received/lost
// totals, surfaced as a point-in-time HealthSnapshot (§3).
package health

import "time"

// Status classifies the current health of a session's media stream.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFrozen
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusFrozen:
		return "frozen"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Kind distinguishes the streams health is tracked per (§3: "per-kind
// received/lost").
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindControl
)

// KindCounts holds received/lost totals for one Kind.
type KindCounts struct {
	Received uint64
	Lost     uint64
}

// HealthSnapshot is an immutable point-in-time read of a Tracker's state
// (§3 HealthSnapshot).
type HealthSnapshot struct {
	Status             Status
	ConsecutiveFailures uint32
	RecoveredFrames     uint64
	FrozenFrames        uint64
	PerKind             map[Kind]KindCounts
	Uptime              time.Duration
}
