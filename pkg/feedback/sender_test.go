package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/transport"
)

type recordedSend struct {
	channel transport.Channel
	flags   transport.Flags
	payload []byte
}

type fakeSender struct {
	mu   sync.Mutex
	sent []recordedSend
}

func (f *fakeSender) Send(channel transport.Channel, flags transport.Flags, payload []byte, advanceBy uint64, encryptPayload bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, recordedSend{channel: channel, flags: flags, payload: cp})
	return nil
}

func (f *fakeSender) snapshot() []recordedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedSend, len(f.sent))
	copy(out, f.sent)
	return out
}

func testSenderLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.NewConfig())
	require.NoError(t, err)
	return log
}

func TestSender_EmitsHeartbeatOnIdleState(t *testing.T) {
	fs := &fakeSender{}
	s := NewSender(fs, testSenderLogger(t))
	s.Start()
	defer s.Close()

	s.Update(ControllerState{})

	require.Eventually(t, func() bool {
		return len(fs.snapshot()) >= 1
	}, time.Second, 5*time.Millisecond)

	sent := fs.snapshot()
	assert.Equal(t, transport.ChannelControl, sent[0].channel)
	assert.Equal(t, packetTypeState, sent[0].payload[0])
}

func TestSender_EmitsHistoryOnButtonEdge(t *testing.T) {
	fs := &fakeSender{}
	s := NewSender(fs, testSenderLogger(t))
	s.Start()
	defer s.Close()

	s.Update(ControllerState{})
	require.Eventually(t, func() bool { return len(fs.snapshot()) >= 1 }, time.Second, 5*time.Millisecond)

	s.Update(ControllerState{Buttons: 0x0001})

	require.Eventually(t, func() bool {
		for _, rec := range fs.snapshot() {
			if rec.payload[0] == packetTypeHistory {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestSender_IndependentSequenceSpaces(t *testing.T) {
	fs := &fakeSender{}
	s := NewSender(fs, testSenderLogger(t))
	s.Start()
	defer s.Close()

	s.Update(ControllerState{})
	require.Eventually(t, func() bool { return len(fs.snapshot()) >= 1 }, time.Second, 5*time.Millisecond)

	s.Update(ControllerState{Buttons: 0x0001})
	require.Eventually(t, func() bool {
		for _, rec := range fs.snapshot() {
			if rec.payload[0] == packetTypeHistory {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	var stateSeqs, historySeqs []uint32
	for _, rec := range fs.snapshot() {
		seq := uint32(rec.payload[1])<<8 | uint32(rec.payload[2])
		if rec.payload[0] == packetTypeState {
			stateSeqs = append(stateSeqs, seq)
		} else {
			historySeqs = append(historySeqs, seq)
		}
	}
	assert.NotEmpty(t, stateSeqs)
	assert.NotEmpty(t, historySeqs)
	assert.Equal(t, uint32(0), historySeqs[0])
}
