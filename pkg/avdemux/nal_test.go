package avdemux

import "testing"

import "github.com/stretchr/testify/assert"

func TestSplitAnnexB_ThreeAndFourByteStartCodes(t *testing.T) {
	data := append([]byte{0, 0, 1, 0x67, 0xAA}, []byte{0, 0, 0, 1, 0x68, 0xBB}...)
	units := SplitAnnexB(data)
	if assert.Len(t, units, 2) {
		assert.Equal(t, []byte{0x67, 0xAA}, units[0])
		assert.Equal(t, []byte{0x68, 0xBB}, units[1])
	}
}

func TestIsIDRUnit_H264(t *testing.T) {
	idr := []byte{0, 0, 1, 0x65, 0x00} // nal_type 5
	nonIdr := []byte{0, 0, 1, 0x61, 0x00} // nal_type 1

	assert.True(t, IsIDRUnit(idr, CodecH264))
	assert.False(t, IsIDRUnit(nonIdr, CodecH264))
}

func TestIsIDRUnit_HEVC(t *testing.T) {
	// HEVC NAL header byte0 bits 6-1 = nal_type; type 19 (IDR_W_RADL) = 0b010011
	// byte0 = (19 << 1) = 0x26
	idr := []byte{0, 0, 1, 0x26, 0x01, 0x00}
	nonIdr := []byte{0, 0, 1, 0x02, 0x01, 0x00} // type 1 (TRAIL_R)

	assert.True(t, IsIDRUnit(idr, CodecHEVC))
	assert.False(t, IsIDRUnit(nonIdr, CodecHEVC))
}
