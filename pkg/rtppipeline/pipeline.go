package rtppipeline

import (
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"golang.org/x/time/rate"

	"github.com/ethan/rp-webrtc-gateway/pkg/avdemux"
	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
)

// Admission thresholds from §4.9: at or above dropThreshold pending, normal
// frames are dropped outright (admission depends on queue depth only; the
// sink's send failure rate is not tracked); in [probDropStart,
// dropThreshold) the drop probability rises linearly toward 1.0; above
// backpressureThreshold a keyframe request is issued and the normal queue
// is trimmed.
const (
	dropThreshold         = 38
	probDropStart         = 35
	backpressureThreshold = 30
	backpressureTrimTo    = 10
	idrTrimKeepNewest     = 5

	queueCapacity = 40

	keyframeCooldown = 2 * time.Second
)

// mtu is the safe RTP payload MTU used for fragmentation, matching the
// teacher's `bridge.writeVideoSampleDirect` constant.
const mtu = 1200

// Frame is one fully reassembled video unit admitted to the pipeline.
type Frame struct {
	Timestamp uint32
	IsIDR     bool
	Data      []byte // Annex-B NAL units, as produced by pkg/avdemux
}

// Sink receives fragmented, sequenced RTP packets ready for egress.
type Sink interface {
	WriteVideoRTP(packet *rtp.Packet) error
}

// Pipeline is the single-writer (PushFrame), single-reader (internal
// drain goroutine) bounded video queue with dual IDR/normal admission
// (§4.9), generalized from the teacher's `bridge.Pacer` leaky-bucket
// shape (bounded channel + dedicated goroutine + ticker-driven stats).
type Pipeline struct {
	codec avdemux.Codec
	sink  Sink
	log   *logger.Logger

	h264Payloader *codecs.H264Payloader
	hevcPayloader HEVCPayloader

	mu          sync.Mutex
	idrQueue    []Frame
	normalQueue []Frame
	notify      chan struct{}

	seqNum uint16

	keyframeLimiter   *rate.Limiter
	onKeyframeRequest func()

	ctx    chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewPipeline creates a Pipeline for the given codec, writing fragmented
// RTP packets to sink. onKeyframeRequest is invoked (rate-limited to once
// per keyframeCooldown) when sustained backpressure is detected.
func NewPipeline(codec avdemux.Codec, sink Sink, log *logger.Logger, onKeyframeRequest func()) *Pipeline {
	return &Pipeline{
		codec:             codec,
		sink:              sink,
		log:               log,
		h264Payloader:     &codecs.H264Payloader{},
		notify:            make(chan struct{}, 1),
		keyframeLimiter:   rate.NewLimiter(rate.Every(keyframeCooldown), 1),
		onKeyframeRequest: onKeyframeRequest,
		ctx:               make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// Start launches the drain goroutine.
func (p *Pipeline) Start() {
	p.wg.Add(1)
	go p.drainLoop()
}

// Close stops the drain goroutine and waits for it to exit.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.ctx)
	p.wg.Wait()
}

// PushFrame admits a frame under the §4.9 admission policy. IDR frames
// are always admitted and clear older normal-queue entries past the
// newest idrTrimKeepNewest. Normal frames are dropped outright at or
// above dropThreshold pending, probabilistically in [probDropStart,
// dropThreshold), and always admitted below that.
func (p *Pipeline) PushFrame(f Frame, rng func() float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := len(p.idrQueue) + len(p.normalQueue)

	if f.IsIDR {
		if len(p.normalQueue) > idrTrimKeepNewest {
			p.normalQueue = p.normalQueue[len(p.normalQueue)-idrTrimKeepNewest:]
		}
		p.idrQueue = append(p.idrQueue, f)
	} else {
		if pending >= dropThreshold {
			p.log.DebugRTP("dropping normal frame, queue saturated", "pending", pending)
			return
		}
		if pending >= probDropStart {
			span := float64(dropThreshold - probDropStart)
			dropProb := float64(pending-probDropStart) / span
			if rng() < dropProb {
				p.log.DebugRTP("probabilistically dropping normal frame", "pending", pending, "drop_prob", dropProb)
				return
			}
		}
		p.normalQueue = append(p.normalQueue, f)
	}

	pending = len(p.idrQueue) + len(p.normalQueue)
	if pending > backpressureThreshold {
		if len(p.normalQueue) > backpressureTrimTo {
			p.normalQueue = p.normalQueue[len(p.normalQueue)-backpressureTrimTo:]
		}
		if p.keyframeLimiter.Allow() && p.onKeyframeRequest != nil {
			p.onKeyframeRequest()
		}
	}

	// Hard drop-oldest bound regardless of admission policy above: the
	// probabilistic/IDR-trim logic keeps steady-state well under this, but
	// a burst (e.g. a run of back-to-back IDRs) must never grow the queue
	// past queueCapacity.
	for len(p.idrQueue)+len(p.normalQueue) > queueCapacity {
		if len(p.normalQueue) > 0 {
			p.normalQueue = p.normalQueue[1:]
		} else {
			p.idrQueue = p.idrQueue[1:]
		}
	}

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pipeline) drainLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx:
			return
		case <-p.notify:
			for {
				frame, ok := p.popNext()
				if !ok {
					break
				}
				if err := p.writeFrame(frame); err != nil {
					p.log.DebugRTP("failed to write frame", "error", err)
				}
			}
		}
	}
}

func (p *Pipeline) popNext() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idrQueue) > 0 {
		f := p.idrQueue[0]
		p.idrQueue = p.idrQueue[1:]
		return f, true
	}
	if len(p.normalQueue) > 0 {
		f := p.normalQueue[0]
		p.normalQueue = p.normalQueue[1:]
		return f, true
	}
	return Frame{}, false
}

func (p *Pipeline) writeFrame(f Frame) error {
	nalus := avdemux.SplitAnnexB(f.Data)
	for naluIdx, nalu := range nalus {
		var payloads [][]byte
		if p.codec == avdemux.CodecHEVC {
			payloads = p.hevcPayloader.Payload(mtu, nalu)
		} else {
			payloads = p.h264Payloader.Payload(mtu, nalu)
		}

		for i, payload := range payloads {
			packet := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    videoPayloadType(p.codec),
					SequenceNumber: p.seqNum,
					Timestamp:      f.Timestamp,
					Marker:         naluIdx == len(nalus)-1 && i == len(payloads)-1,
				},
				Payload: payload,
			}
			if err := p.sink.WriteVideoRTP(packet); err != nil {
				return err
			}
			p.seqNum++
		}
	}
	return nil
}

func videoPayloadType(codec avdemux.Codec) uint8 {
	if codec == avdemux.CodecHEVC {
		return 97
	}
	return 96
}

// PendingCount returns the total number of frames currently queued
// (IDR + normal), for diagnostics and tests.
func (p *Pipeline) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idrQueue) + len(p.normalQueue)
}
