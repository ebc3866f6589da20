package rtppipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHEVCPayloader_SmallNALUUnfragmented(t *testing.T) {
	var p HEVCPayloader
	nalu := []byte{0x26, 0x01, 0xAA, 0xBB}
	out := p.Payload(1200, nalu)
	require.Len(t, out, 1)
	assert.Equal(t, nalu, out[0])
}

func TestHEVCPayloader_LargeNALUFragmentsWithFUHeader(t *testing.T) {
	var p HEVCPayloader
	header := []byte{0x26, 0x01} // type 19 (IDR_W_RADL), layer 0, tid 1
	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i)
	}
	nalu := append(header, payload...)

	out := p.Payload(1200, nalu)
	require.Greater(t, len(out), 1)

	first := out[0]
	assert.Equal(t, byte(hevcFUType<<1), first[0]&0xFE)
	assert.NotZero(t, first[2]&0x80, "first fragment must set FU start bit")

	last := out[len(out)-1]
	assert.NotZero(t, last[2]&0x40, "last fragment must set FU end bit")

	for _, frag := range out[1 : len(out)-1] {
		assert.Zero(t, frag[2]&0xC0, "middle fragments must not set start/end bits")
	}
}
