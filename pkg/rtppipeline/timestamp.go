package rtppipeline

import "time"

// VideoClockRate is the RTP clock rate used for H.264/HEVC video (§4.9),
// matching the teacher's `bridge.videoClockRate`.
const VideoClockRate = 90000

// fpsSamples caps sampleCount, the number of samples observed so far. The
// FPS estimate itself is the exponential moving average below and keeps no
// window of samples.
const fpsSamples = 30

// fpsSmoothing is the exponential-smoothing factor (α) applied to each new
// instantaneous FPS sample.
const fpsSmoothing = 0.3

const (
	minEstimatedFPS = 15.0
	maxEstimatedFPS = 120.0
)

// wraparoundGuard is how close to the uint32 max a timestamp delta must be
// before TimestampManager treats the next sample as a wraparound rather
// than a corrupted/backwards timestamp.
const wraparoundGuard = 0xFFFFFFFF - VideoClockRate

// TimestampManager tracks the RTP timestamp for outgoing video samples and
// maintains a rolling estimate of the source frame rate, handling 32-bit
// timestamp wraparound near 0xFFFFFFFF.
type TimestampManager struct {
	haveFirst    bool
	epoch        time.Time
	lastTS       uint32
	lastWallTime time.Time
	estimatedFPS float64
	sampleCount  int
}

// NewTimestampManager creates a TimestampManager with no history.
func NewTimestampManager() *TimestampManager {
	return &TimestampManager{estimatedFPS: 30.0}
}

// Observe records a newly arrived source RTP timestamp at wall-clock time
// now and updates the rolling FPS estimate. Call once per frame, in
// arrival order.
func (m *TimestampManager) Observe(ts uint32, now time.Time) {
	if !m.haveFirst {
		m.haveFirst = true
		m.lastTS = ts
		m.lastWallTime = now
		return
	}

	delta := ts - m.lastTS // wraps naturally for uint32
	if delta == 0 {
		return
	}

	var tsDelta uint32
	if delta > wraparoundGuard {
		// ts went backwards across the 32-bit boundary; treat the true
		// forward delta as the two's-complement distance.
		tsDelta = ^m.lastTS + ts + 1
	} else {
		tsDelta = delta
	}

	elapsed := now.Sub(m.lastWallTime).Seconds()
	if elapsed > 0 {
		instantaneous := float64(tsDelta) / VideoClockRate / elapsed
		if instantaneous > 0 {
			m.estimatedFPS = fpsSmoothing*instantaneous + (1-fpsSmoothing)*m.estimatedFPS
			if m.estimatedFPS < minEstimatedFPS {
				m.estimatedFPS = minEstimatedFPS
			}
			if m.estimatedFPS > maxEstimatedFPS {
				m.estimatedFPS = maxEstimatedFPS
			}
		}
	}

	if m.sampleCount < fpsSamples {
		m.sampleCount++
	}
	m.lastTS = ts
	m.lastWallTime = now
}

// EstimatedFPS returns the current rolling frame-rate estimate, bounded to
// [15, 120].
func (m *TimestampManager) EstimatedFPS() float64 {
	return m.estimatedFPS
}

// NextTimestamp derives a 90kHz RTP timestamp for a video unit arriving at
// now. IAVReceiver hands the adapter opaque frame bytes with no source
// timestamp, so the manager self-clocks off wall time: the first call
// anchors zero, and every later call advances by elapsed wall-clock time
// rather than a fixed per-frame step, so jitter in arrival doesn't
// accumulate drift the way a naive frame counter would.
func (m *TimestampManager) NextTimestamp(now time.Time) uint32 {
	if !m.haveFirst {
		m.epoch = now
	}
	ts := uint32(now.Sub(m.epoch).Seconds() * VideoClockRate)
	m.Observe(ts, now)
	return ts
}
