package avdemux_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/rp-webrtc-gateway/pkg/avdemux"
)

func TestParseFragment_DecodesHeaderAndData(t *testing.T) {
	raw := []byte{
		0, 0, 0, 7, // frame_index = 7
		0, 2, // fragment_index = 2
		0, 5, // total_fragments = 5
		0, 1, // fec_count = 1
		0xAA, 0xBB, 0xCC,
	}
	f, err := avdemux.ParseFragment(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), f.FrameIndex)
	assert.Equal(t, uint16(2), f.FragmentIndex)
	assert.Equal(t, uint16(5), f.TotalFragments)
	assert.Equal(t, uint16(1), f.FecCount)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, f.Data)
}

func TestParseFragment_RejectsShortInput(t *testing.T) {
	_, err := avdemux.ParseFragment([]byte{0, 0, 0, 1})
	assert.Error(t, err)
}
