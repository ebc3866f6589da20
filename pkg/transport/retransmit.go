package transport

import (
	"container/heap"
	"sync"
	"time"
)

// RetransmitTimeout is how long an unacked DATA packet waits before it is
// due for resend.
const RetransmitTimeout = 200 * time.Millisecond

// MaxRetransmits bounds how many times a single TSN is resent before the
// tracker gives up on it (the caller treats this as a transport failure).
const MaxRetransmits = 5

// PendingPacket is one outstanding, unacknowledged DATA send.
type PendingPacket struct {
	tsn      uint32
	deadline time.Time
	attempts int
	payload  []byte
	channel  Channel
	index    int // heap.Interface bookkeeping
}

// TSN exposes the transmission sequence number for a caller that received
// this packet back from DuePackets.
func (p *PendingPacket) TSN() uint32 { return p.tsn }

// Payload exposes the original payload bytes for a resend.
func (p *PendingPacket) Payload() []byte { return p.payload }

// Channel exposes the channel the packet was sent on.
func (p *PendingPacket) Channel() Channel { return p.channel }

// retransmitHeap orders PendingPackets by deadline, earliest first —
// the same container/heap.Interface shape as the teacher's ticketHeap,
// re-keyed from priority class to deadline time.
type retransmitHeap []*PendingPacket

func (h retransmitHeap) Len() int            { return len(h) }
func (h retransmitHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h retransmitHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *retransmitHeap) Push(x interface{}) {
	p := x.(*PendingPacket)
	p.index = len(*h)
	*h = append(*h, p)
}

func (h *retransmitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.index = -1
	*h = old[:n-1]
	return p
}

// RetransmitTracker tracks outstanding DATA sends keyed by TSN and decides
// when each is due for resend (§4.5 "retransmissions are tracked by TSN").
type RetransmitTracker struct {
	mu      sync.Mutex
	byTSN   map[uint32]*PendingPacket
	heap    retransmitHeap
}

// NewRetransmitTracker creates an empty tracker.
func NewRetransmitTracker() *RetransmitTracker {
	t := &RetransmitTracker{byTSN: make(map[uint32]*PendingPacket)}
	heap.Init(&t.heap)
	return t
}

// Track registers a freshly sent DATA packet for retransmit bookkeeping.
func (t *RetransmitTracker) Track(tsn uint32, channel Channel, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &PendingPacket{
		tsn:      tsn,
		channel:  channel,
		payload:  payload,
		deadline: time.Now().Add(RetransmitTimeout),
	}
	t.byTSN[tsn] = p
	heap.Push(&t.heap, p)
}

// Ack removes a TSN from tracking once its DATA_ACK is received.
func (t *RetransmitTracker) Ack(tsn uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byTSN[tsn]
	if !ok {
		return
	}
	delete(t.byTSN, tsn)
	if p.index >= 0 {
		heap.Remove(&t.heap, p.index)
	}
}

// DuePackets pops every packet whose deadline has passed, bumping their
// attempt counters and rescheduling them, and returns the ones still under
// MaxRetransmits for the caller to resend. Packets that exceeded
// MaxRetransmits are dropped and returned separately as given up.
func (t *RetransmitTracker) DuePackets(now time.Time) (resend []*PendingPacket, givenUp []*PendingPacket) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.heap.Len() > 0 && t.heap[0].deadline.Before(now) {
		p := heap.Pop(&t.heap).(*PendingPacket)
		p.attempts++
		if p.attempts > MaxRetransmits {
			delete(t.byTSN, p.tsn)
			givenUp = append(givenUp, p)
			continue
		}
		p.deadline = now.Add(RetransmitTimeout)
		heap.Push(&t.heap, p)
		resend = append(resend, p)
	}
	return resend, givenUp
}

// Pending returns the number of packets still awaiting acknowledgment.
func (t *RetransmitTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byTSN)
}
