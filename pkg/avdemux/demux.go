package avdemux

import (
	"sync"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// CorruptWaitBound is the maximum time the demuxer waits for FEC-
// reconstructible shards before giving up on a frame (§4.7: "≤ 40 ms").
const CorruptWaitBound = 40 * time.Millisecond

// Fragment is one shard of a frame as delivered by the transport layer,
// identified by (frame_index, fragment_index, total_fragments, fec_count).
type Fragment struct {
	FrameIndex     uint32
	FragmentIndex  uint16
	TotalFragments uint16
	FecCount       uint16
	Data           []byte
}

// VideoUnit is a fully reassembled (and, if needed, FEC-reconstructed)
// frame delivered to receivers.
type VideoUnit struct {
	FrameIndex uint32
	IsIDR      bool
	Data       []byte
}

// frameBuffer accumulates shards for one in-flight frame.
type frameBuffer struct {
	dataCount   int
	parityCount int
	shards      map[int][]byte
	firstSeen   time.Time
	timer       *time.Timer
}

// Demuxer reassembles fragmented video frames, invariant: frame_index is
// monotone — out-of-order late fragments for an already-delivered frame are
// discarded (§4.7).
type Demuxer struct {
	mu            sync.Mutex
	codec         Codec
	frames        map[uint32]*frameBuffer
	lastDelivered uint32
	haveDelivered bool

	log *logger.Logger

	onUnit            func(VideoUnit)
	onCorruptFrame    func(start, end uint32)
	onKeyframeRequest func()
}

// NewDemuxer creates a Demuxer for the given codec (used for IDR
// detection).
func NewDemuxer(codec Codec, log *logger.Logger, onUnit func(VideoUnit), onCorruptFrame func(start, end uint32), onKeyframeRequest func()) *Demuxer {
	return &Demuxer{
		codec:             codec,
		frames:            make(map[uint32]*frameBuffer),
		log:               log,
		onUnit:            onUnit,
		onCorruptFrame:    onCorruptFrame,
		onKeyframeRequest: onKeyframeRequest,
	}
}

// Close stops any pending corrupt-frame timers.
func (d *Demuxer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fb := range d.frames {
		if fb.timer != nil {
			fb.timer.Stop()
		}
	}
}

// PushFragment admits one shard. Data shards (fragment_index < dataCount)
// and parity shards (fragment_index >= dataCount) are indexed identically
// into the frame's shard map; dataCount = total_fragments - fec_count.
func (d *Demuxer) PushFragment(f Fragment) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.haveDelivered && f.FrameIndex <= d.lastDelivered {
		d.log.DebugAVDemux("discarding late fragment for delivered frame", "frame_index", f.FrameIndex, "last_delivered", d.lastDelivered)
		return
	}

	fb, ok := d.frames[f.FrameIndex]
	if !ok {
		dataCount := int(f.TotalFragments) - int(f.FecCount)
		fb = &frameBuffer{
			dataCount:   dataCount,
			parityCount: int(f.FecCount),
			shards:      make(map[int][]byte),
			firstSeen:   time.Now(),
		}
		d.frames[f.FrameIndex] = fb
		d.scheduleCorruptTimeout(f.FrameIndex)
	}
	fb.shards[int(f.FragmentIndex)] = f.Data

	if d.readyToAssemble(fb) {
		d.assemble(f.FrameIndex, fb)
	}
}

func (d *Demuxer) readyToAssemble(fb *frameBuffer) bool {
	present := 0
	for i := 0; i < fb.dataCount; i++ {
		if _, ok := fb.shards[i]; ok {
			present++
		}
	}
	if present == fb.dataCount {
		return true
	}
	// Attempt FEC if enough total shards (data+parity) are present to
	// cover the missing data shards.
	missing := fb.dataCount - present
	parityPresent := 0
	for i := fb.dataCount; i < fb.dataCount+fb.parityCount; i++ {
		if _, ok := fb.shards[i]; ok {
			parityPresent++
		}
	}
	return missing > 0 && missing <= parityPresent
}

// assemble must be called with mu held. It reconstructs missing data shards
// if needed, concatenates them in order, detects IDR, delivers the unit,
// stops the frame's corrupt-timeout timer, and advances lastDelivered.
func (d *Demuxer) assemble(frameIndex uint32, fb *frameBuffer) {
	dataShards, err := Reconstruct(fb.dataCount, fb.parityCount, fb.shards)
	if err != nil {
		d.log.DebugAVDemux("reconstruction failed, waiting for more shards", "frame_index", frameIndex, "error", err)
		return
	}

	if fb.timer != nil {
		fb.timer.Stop()
	}

	var frameData []byte
	for _, shard := range dataShards {
		frameData = append(frameData, shard...)
	}

	unit := VideoUnit{
		FrameIndex: frameIndex,
		IsIDR:      IsIDRUnit(frameData, d.codec),
		Data:       frameData,
	}

	delete(d.frames, frameIndex)
	d.lastDelivered = frameIndex
	d.haveDelivered = true

	d.onUnit(unit)
}

// scheduleCorruptTimeout arms the bounded wait for a frame; if it fires
// before the frame assembles, CorruptFrame is emitted and a keyframe is
// requested (§4.7).
func (d *Demuxer) scheduleCorruptTimeout(frameIndex uint32) {
	timer := time.AfterFunc(CorruptWaitBound, func() {
		d.handleCorruptTimeout(frameIndex)
	})
	d.frames[frameIndex].timer = timer
}

func (d *Demuxer) handleCorruptTimeout(frameIndex uint32) {
	d.mu.Lock()
	fb, ok := d.frames[frameIndex]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.frames, frameIndex)
	d.mu.Unlock()

	d.log.DebugAVDemux("frame corrupt after bounded wait", "frame_index", frameIndex, "shards_present", len(fb.shards))
	d.onCorruptFrame(frameIndex, frameIndex)
	if d.onKeyframeRequest != nil {
		d.onKeyframeRequest()
	}
}

// ErrNoIdrYet is returned by consumers that discard packets before the
// first IDR arrives (§4.10 EnterWaitForIdr semantics live in webrtcadapter,
// this sentinel is shared so both packages report the same Media code).
var ErrNoIdrYet = rperrors.ErrNoIdrYet
