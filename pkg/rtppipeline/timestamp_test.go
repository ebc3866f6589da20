package rtppipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampManager_EstimatesFPSFromSteadyCadence(t *testing.T) {
	m := NewTimestampManager()
	start := time.Unix(0, 0)
	ts := uint32(0)

	for i := 0; i < fpsSamples*2; i++ {
		m.Observe(ts, start)
		ts += VideoClockRate / 30
		start = start.Add(time.Second / 30)
	}

	assert.InDelta(t, 30.0, m.EstimatedFPS(), 3.0)
}

func TestTimestampManager_HandlesWraparound(t *testing.T) {
	m := NewTimestampManager()
	start := time.Unix(0, 0)

	m.Observe(0xFFFFFFF0, start)
	m.Observe(0x00000010, start.Add(time.Millisecond*time.Duration(1000*32/VideoClockRate+1)))

	assert.GreaterOrEqual(t, m.EstimatedFPS(), minEstimatedFPS)
	assert.LessOrEqual(t, m.EstimatedFPS(), maxEstimatedFPS)
}

func TestTimestampManager_BoundsFPSEstimate(t *testing.T) {
	m := NewTimestampManager()
	start := time.Unix(0, 0)
	m.Observe(0, start)
	// Absurdly fast cadence should clamp to maxEstimatedFPS.
	m.Observe(VideoClockRate, start.Add(time.Microsecond))
	assert.LessOrEqual(t, m.EstimatedFPS(), maxEstimatedFPS)
}
