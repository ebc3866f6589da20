package avdemux

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.NewConfig())
	require.NoError(t, err)
	return log
}

type demuxHarness struct {
	mu       sync.Mutex
	units    []VideoUnit
	corrupt  [][2]uint32
	keyframe int
}

func newDemuxHarness(t *testing.T, codec Codec) (*Demuxer, *demuxHarness) {
	h := &demuxHarness{}
	d := NewDemuxer(codec, testLogger(t), func(u VideoUnit) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.units = append(h.units, u)
	}, func(start, end uint32) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.corrupt = append(h.corrupt, [2]uint32{start, end})
	}, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.keyframe++
	})
	return d, h
}

func idrFrame() []byte {
	return append([]byte{0, 0, 1, 0x65}, []byte("idr-payload")...)
}

func splitIntoShards(frame []byte, dataCount int) [][]byte {
	shardLen := (len(frame) + dataCount - 1) / dataCount
	shards := make([][]byte, dataCount)
	for i := 0; i < dataCount; i++ {
		start := i * shardLen
		end := start + shardLen
		if start > len(frame) {
			start = len(frame)
		}
		if end > len(frame) {
			end = len(frame)
		}
		shard := make([]byte, shardLen)
		copy(shard, frame[start:end])
		shards[i] = shard
	}
	return shards
}

func TestDemuxer_AssemblesFrameOnAllDataShardsPresent(t *testing.T) {
	d, h := newDemuxHarness(t, CodecH264)
	defer d.Close()

	frame := idrFrame()
	shards := splitIntoShards(frame, 3)

	for i, s := range shards {
		d.PushFragment(Fragment{
			FrameIndex:     1,
			FragmentIndex:  uint16(i),
			TotalFragments: 5,
			FecCount:       2,
			Data:           s,
		})
	}

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.units) == 1
	}, time.Second, time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, uint32(1), h.units[0].FrameIndex)
	assert.True(t, h.units[0].IsIDR)
}

func TestDemuxer_ReconstructsMissingDataShardViaFEC(t *testing.T) {
	d, h := newDemuxHarness(t, CodecH264)
	defer d.Close()

	frame := idrFrame()
	dataShards := splitIntoShards(frame, 3)
	parity := EncodeParity(3, 2, dataShards)

	// data shard 1 never arrives; both parity shards do.
	d.PushFragment(Fragment{FrameIndex: 7, FragmentIndex: 0, TotalFragments: 5, FecCount: 2, Data: dataShards[0]})
	d.PushFragment(Fragment{FrameIndex: 7, FragmentIndex: 2, TotalFragments: 5, FecCount: 2, Data: dataShards[2]})
	d.PushFragment(Fragment{FrameIndex: 7, FragmentIndex: 3, TotalFragments: 5, FecCount: 2, Data: parity[0]})
	d.PushFragment(Fragment{FrameIndex: 7, FragmentIndex: 4, TotalFragments: 5, FecCount: 2, Data: parity[1]})

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.units) == 1
	}, time.Second, time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, uint32(7), h.units[0].FrameIndex)
}

func TestDemuxer_CorruptFrameTimeoutRequestsKeyframe(t *testing.T) {
	d, h := newDemuxHarness(t, CodecH264)
	defer d.Close()

	frame := idrFrame()
	dataShards := splitIntoShards(frame, 3)

	// Only one of three data shards, no parity: can never assemble.
	d.PushFragment(Fragment{FrameIndex: 3, FragmentIndex: 0, TotalFragments: 5, FecCount: 2, Data: dataShards[0]})

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.corrupt) == 1
	}, 2*time.Second, 2*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, [2]uint32{3, 3}, h.corrupt[0])
	assert.Equal(t, 1, h.keyframe)
	assert.Empty(t, h.units)
}

func TestDemuxer_DiscardsLateFragmentForDeliveredFrame(t *testing.T) {
	d, h := newDemuxHarness(t, CodecH264)
	defer d.Close()

	frame := idrFrame()
	shards := splitIntoShards(frame, 3)
	for i, s := range shards {
		d.PushFragment(Fragment{FrameIndex: 10, FragmentIndex: uint16(i), TotalFragments: 5, FecCount: 2, Data: s})
	}

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.units) == 1
	}, time.Second, time.Millisecond)

	// A late fragment for an earlier frame index must not start a new buffer.
	d.PushFragment(Fragment{FrameIndex: 9, FragmentIndex: 0, TotalFragments: 5, FecCount: 2, Data: shards[0]})

	d.mu.Lock()
	_, pending := d.frames[9]
	d.mu.Unlock()
	assert.False(t, pending)
}
