package rtppipeline

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// Audio clock rates and frame sizes. RP ships audio as discrete frames
// rather than a continuous RTP stream, so AudioPipeline derives its own
// timestamp line from a running sample count instead of passing through a
// source timestamp, the same passthrough-vs-self-clocked tradeoff the
// teacher's Bridge.writeAudioSampleDirect makes explicit.
const (
	opusClockRate    = 48000
	opusFrameSamples = 960 // 20ms at 48kHz

	aacClockRate    = 48000
	aacFrameSamples = 1024 // one AAC access unit

	opusPayloadType = 111
	aacPayloadType  = 97
)

// AudioSink accepts already-packetized audio RTP packets, matching the
// teacher's Bridge.WriteAudioRTP contract.
type AudioSink interface {
	WriteAudioRTP(packet *rtp.Packet) error
}

// AudioPipeline turns raw decoded audio frames (Opus or AAC access units)
// into RTP packets. Unlike the video path there is no fragmentation or
// reordering concern: each frame maps to exactly one RTP packet, grounded
// on the teacher's writeAudioSampleDirect, generalized to self-clock since
// the IAVReceiver surface hands over opaque frame bytes with no source
// timestamp.
type AudioPipeline struct {
	sink AudioSink

	mu           sync.Mutex
	seqNum       uint16
	timestamp    uint32
	payloadType  uint8
	frameSamples uint32
}

// NewAudioPipeline builds a pipeline for codec ("opus" or "aac"). Unknown
// codec names default to the Opus parameters since that is RP's current
// default audio codec.
func NewAudioPipeline(codec string, sink AudioSink) *AudioPipeline {
	p := &AudioPipeline{sink: sink, payloadType: opusPayloadType, frameSamples: opusFrameSamples}
	if codec == "aac" {
		p.payloadType = aacPayloadType
		p.frameSamples = aacFrameSamples
	}
	return p
}

// PushFrame packetizes one decoded audio frame and writes it to the sink.
func (p *AudioPipeline) PushFrame(frame []byte) error {
	if len(frame) == 0 {
		return fmt.Errorf("rtppipeline: empty audio frame")
	}

	p.mu.Lock()
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    p.payloadType,
			SequenceNumber: p.seqNum,
			Timestamp:      p.timestamp,
		},
		Payload: frame,
	}
	p.seqNum++
	p.timestamp += p.frameSamples
	p.mu.Unlock()

	return p.sink.WriteAudioRTP(packet)
}
