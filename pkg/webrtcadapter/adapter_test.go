package webrtcadapter

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/rp-webrtc-gateway/pkg/avdemux"
	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/rtppipeline"
)

type fakeAudioSink struct {
	packets []*rtp.Packet
}

func (s *fakeAudioSink) WriteAudioRTP(packet *rtp.Packet) error {
	s.packets = append(s.packets, packet)
	return nil
}

func testAdapterLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.NewConfig())
	require.NoError(t, err)
	return log
}

func TestVideoCodecCapability_H264Default(t *testing.T) {
	mime, pt := videoCodecCapability("h264")
	assert.Equal(t, "video/H264", mime)
	assert.Equal(t, uint8(96), uint8(pt))
}

func TestVideoCodecCapability_HEVC(t *testing.T) {
	mime, pt := videoCodecCapability("hevc")
	assert.Equal(t, "video/H265", mime)
	assert.Equal(t, uint8(97), uint8(pt))
}

func TestAdapter_OnVideoPacketGatesUntilIDR(t *testing.T) {
	a := &Adapter{videoCodec: "h264"}
	a.EnterWaitForIdr()

	nonIdr := append([]byte{videoPacketPrefix}, []byte{0, 0, 1, 0x61, 0xAA}...)
	a.OnVideoPacket(nonIdr)

	a.mu.Lock()
	waiting := a.waitingForIdr
	a.mu.Unlock()
	assert.True(t, waiting, "non-IDR packet must not clear the wait gate")

	idr := append([]byte{videoPacketPrefix}, []byte{0, 0, 1, 0x65, 0xAA}...)
	a.OnVideoPacket(idr)

	a.mu.Lock()
	waiting = a.waitingForIdr
	a.mu.Unlock()
	assert.False(t, waiting, "IDR packet must clear the wait gate")
}

func TestAdapter_OnVideoPacketIgnoresWrongPrefix(t *testing.T) {
	a := &Adapter{videoCodec: "h264"}
	a.EnterWaitForIdr()
	a.OnVideoPacket([]byte{0x03, 0, 0, 1, 0x65})

	a.mu.Lock()
	waiting := a.waitingForIdr
	a.mu.Unlock()
	assert.True(t, waiting)
}

func TestAdapter_CodecSwitchReflectsInIDRDetection(t *testing.T) {
	a := &Adapter{}
	a.SetVideoCodec("hevc")
	a.EnterWaitForIdr()

	// HEVC IDR_W_RADL (type 19) header byte 0x26
	idr := append([]byte{videoPacketPrefix}, []byte{0, 0, 1, 0x26, 0x01, 0xAA}...)
	a.OnVideoPacket(idr)

	a.mu.Lock()
	waiting := a.waitingForIdr
	a.mu.Unlock()
	assert.False(t, waiting)

	_ = avdemux.CodecHEVC
}

func TestAdapter_OnAudioPacketPacketizesFrame(t *testing.T) {
	sink := &fakeAudioSink{}
	a := &Adapter{audioPipe: rtppipeline.NewAudioPipeline("opus", sink)}

	a.OnAudioPacket(append([]byte{audioPacketPrefix}, []byte{1, 2, 3}...))
	a.OnAudioPacket(append([]byte{audioPacketPrefix}, []byte{4, 5, 6}...))

	if assert.Len(t, sink.packets, 2) {
		assert.Equal(t, []byte{1, 2, 3}, sink.packets[0].Payload)
		assert.Less(t, sink.packets[0].Timestamp, sink.packets[1].Timestamp)
		assert.Equal(t, sink.packets[0].SequenceNumber+1, sink.packets[1].SequenceNumber)
	}
}

func TestAdapter_OnAudioPacketIgnoresWrongPrefix(t *testing.T) {
	sink := &fakeAudioSink{}
	a := &Adapter{audioPipe: rtppipeline.NewAudioPipeline("opus", sink)}

	a.OnAudioPacket([]byte{videoPacketPrefix, 1, 2, 3})

	assert.Empty(t, sink.packets)
}

type fakeVideoSink struct {
	mu      sync.Mutex
	packets []*rtp.Packet
}

func (s *fakeVideoSink) WriteVideoRTP(packet *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, packet)
	return nil
}

func (s *fakeVideoSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

func TestAdapter_OnVideoPacketPushesAdmittedUnitsToPipeline(t *testing.T) {
	sink := &fakeVideoSink{}
	pipe := rtppipeline.NewPipeline(avdemux.CodecH264, sink, testAdapterLogger(t), nil)
	pipe.Start()
	defer pipe.Close()

	a := &Adapter{videoCodec: "h264", videoPipe: pipe, videoTS: rtppipeline.NewTimestampManager()}
	a.EnterWaitForIdr()

	nonIdr := append([]byte{videoPacketPrefix}, []byte{0, 0, 1, 0x61, 0xAA}...)
	a.OnVideoPacket(nonIdr)
	idr := append([]byte{videoPacketPrefix}, []byte{0, 0, 1, 0x65, 0xAA}...)
	a.OnVideoPacket(idr)

	require.Eventually(t, func() bool {
		return sink.count() >= 1
	}, time.Second, 5*time.Millisecond)
}
