package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_StartsHealthy(t *testing.T) {
	tr := NewTracker()
	snap := tr.Snapshot()
	assert.Equal(t, StatusOK, snap.Status)
	assert.Zero(t, snap.ConsecutiveFailures)
}

func TestTracker_EscalatesToWarnThenFrozen(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < warnAfterFailures; i++ {
		tr.RecordFrameFailure()
	}
	assert.Equal(t, StatusWarn, tr.Snapshot().Status)

	for i := warnAfterFailures; i < frozenAfterFailures; i++ {
		tr.RecordFrameFailure()
	}
	assert.Equal(t, StatusFrozen, tr.Snapshot().Status)
}

func TestTracker_RecoveryResetsFailureRun(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < warnAfterFailures; i++ {
		tr.RecordFrameFailure()
	}
	tr.RecordFrameRecovered()

	snap := tr.Snapshot()
	assert.Equal(t, StatusOK, snap.Status)
	assert.Equal(t, uint64(1), snap.RecoveredFrames)
}

func TestTracker_HardErrorOverridesFailureCount(t *testing.T) {
	tr := NewTracker()
	tr.RecordHardError()
	assert.Equal(t, StatusError, tr.Snapshot().Status)

	tr.ClearHardError()
	assert.Equal(t, StatusOK, tr.Snapshot().Status)
}

func TestTracker_PerKindCounts(t *testing.T) {
	tr := NewTracker()
	tr.RecordReceived(KindVideo)
	tr.RecordReceived(KindVideo)
	tr.RecordLost(KindVideo)
	tr.RecordReceived(KindAudio)

	snap := tr.Snapshot()
	assert.Equal(t, KindCounts{Received: 2, Lost: 1}, snap.PerKind[KindVideo])
	assert.Equal(t, KindCounts{Received: 1, Lost: 0}, snap.PerKind[KindAudio])
}
