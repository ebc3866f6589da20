package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/transport"
)

// HeartbeatInterval is the maximum gap between Feedback State emissions
// (§4.8: "every ≤ 200 ms").
const HeartbeatInterval = 200 * time.Millisecond

// MinEventInterval is the minimum gap enforced between any two Feedback
// State emissions, heartbeat or change-triggered (§4.8: "≥ 8 ms between
// events").
const MinEventInterval = 8 * time.Millisecond

// packetSender is the subset of *transport.Stream the Sender needs,
// narrowed for testability.
type packetSender interface {
	Send(channel transport.Channel, flags transport.Flags, payload []byte, advanceBy uint64, encryptPayload bool) error
}

// feedbackPacketType matches §6.4: type 6 is STATE, type 7 is HISTORY.
// Both are single-byte headers prefixing the encrypted body when sent on
// the control channel.
const (
	packetTypeState   byte = 6
	packetTypeHistory byte = 7
)

// Sender owns two independent sequence spaces (state heartbeat, history
// events) and runs the feedback loop: a single task suspended on either a
// state-change notification or the 200 ms heartbeat timer (§4.8 design
// note 4).
type Sender struct {
	stream packetSender
	log    *logger.Logger

	mu       sync.Mutex
	current  ControllerState
	dirty    bool
	lastSent time.Time

	stateSeq   uint32
	historySeq uint32

	changed chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSender creates a Sender bound to a stream. Call Start to begin the
// feedback loop and Update whenever new controller samples arrive.
func NewSender(stream packetSender, log *logger.Logger) *Sender {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		stream:  stream,
		log:     log,
		changed: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the feedback loop goroutine.
func (s *Sender) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Close stops the feedback loop.
func (s *Sender) Close() {
	s.cancel()
	s.wg.Wait()
}

// Update records a new sampled ControllerState. If it differs from the
// last sent state (outside quaternion/float tolerance, or on any button
// or trigger edge), the loop wakes immediately rather than waiting for
// the heartbeat timer.
func (s *Sender) Update(state ControllerState) {
	s.mu.Lock()
	prev := s.current
	changed := !prev.Equal(state)
	s.current = state
	if changed {
		s.dirty = true
	}
	s.mu.Unlock()

	if changed {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
}

func (s *Sender) loop() {
	defer s.wg.Done()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	var prevState ControllerState
	havePrev := false

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.changed:
			s.emitIfDue(&prevState, &havePrev, false)
		case <-heartbeat.C:
			s.emitIfDue(&prevState, &havePrev, true)
		}
	}
}

// emitIfDue sends history records for any button/trigger edges since
// prevState, then a State heartbeat record if forceHeartbeat is set or the
// state changed, honoring MinEventInterval.
func (s *Sender) emitIfDue(prevState *ControllerState, havePrev *bool, forceHeartbeat bool) {
	s.mu.Lock()
	cur := s.current
	dirty := s.dirty
	s.dirty = false
	s.mu.Unlock()

	if *havePrev {
		for _, record := range DiffEvents(*prevState, cur) {
			if err := s.sendHistory(record); err != nil {
				s.log.DebugFeedback("history send failed", "error", err)
			}
		}
	}

	sinceLast := time.Since(s.lastSentAt())
	if forceHeartbeat || dirty {
		if sinceLast >= MinEventInterval {
			if err := s.sendState(cur); err != nil {
				s.log.DebugFeedback("state send failed", "error", err)
			}
			s.setLastSentAt(time.Now())
		}
	}

	*prevState = cur
	*havePrev = true
}

func (s *Sender) lastSentAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent
}

func (s *Sender) setLastSentAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent = t
}

func (s *Sender) sendState(state ControllerState) error {
	seq := s.nextStateSeq()
	payload := append([]byte{packetTypeState, byte(seq >> 8), byte(seq)}, PackState(state)...)
	return s.stream.Send(transport.ChannelControl, transport.FlagData, payload, transport.AdvanceBy(transport.KindFeedbackState, len(payload)), true)
}

func (s *Sender) sendHistory(record []byte) error {
	seq := s.nextHistorySeq()
	payload := append([]byte{packetTypeHistory, byte(seq >> 8), byte(seq)}, record...)
	return s.stream.Send(transport.ChannelControl, transport.FlagData, payload, transport.AdvanceBy(transport.KindFeedbackHistory, len(payload)), true)
}

func (s *Sender) nextStateSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.stateSeq
	s.stateSeq++
	return seq
}

func (s *Sender) nextHistorySeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.historySeq
	s.historySeq++
	return seq
}
