package rtppipeline

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudioSink struct {
	packets []*rtp.Packet
}

func (s *fakeAudioSink) WriteAudioRTP(packet *rtp.Packet) error {
	s.packets = append(s.packets, packet)
	return nil
}

func TestAudioPipeline_OpusAdvancesTimestampByFrameSize(t *testing.T) {
	sink := &fakeAudioSink{}
	p := NewAudioPipeline("opus", sink)

	require.NoError(t, p.PushFrame([]byte{1, 2, 3}))
	require.NoError(t, p.PushFrame([]byte{4, 5, 6}))

	require.Len(t, sink.packets, 2)
	assert.Equal(t, uint32(0), sink.packets[0].Timestamp)
	assert.Equal(t, uint32(opusFrameSamples), sink.packets[1].Timestamp)
	assert.Equal(t, uint8(opusPayloadType), sink.packets[0].PayloadType)
}

func TestAudioPipeline_AACUsesDistinctFrameSizeAndPayloadType(t *testing.T) {
	sink := &fakeAudioSink{}
	p := NewAudioPipeline("aac", sink)

	require.NoError(t, p.PushFrame([]byte{1, 2, 3}))
	require.NoError(t, p.PushFrame([]byte{4, 5, 6}))

	assert.Equal(t, uint32(aacFrameSamples), sink.packets[1].Timestamp)
	assert.Equal(t, uint8(aacPayloadType), sink.packets[0].PayloadType)
}

func TestAudioPipeline_RejectsEmptyFrame(t *testing.T) {
	sink := &fakeAudioSink{}
	p := NewAudioPipeline("opus", sink)

	assert.Error(t, p.PushFrame(nil))
	assert.Empty(t, sink.packets)
}

func TestAudioPipeline_SequenceNumberIncrementsPerFrame(t *testing.T) {
	sink := &fakeAudioSink{}
	p := NewAudioPipeline("opus", sink)

	require.NoError(t, p.PushFrame([]byte{1}))
	require.NoError(t, p.PushFrame([]byte{2}))
	require.NoError(t, p.PushFrame([]byte{3}))

	assert.Equal(t, uint16(0), sink.packets[0].SequenceNumber)
	assert.Equal(t, uint16(1), sink.packets[1].SequenceNumber)
	assert.Equal(t, uint16(2), sink.packets[2].SequenceNumber)
}
