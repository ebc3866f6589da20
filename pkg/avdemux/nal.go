// Package avdemux reassembles fragmented video/audio frames (§4.7),
// recovering missing shards via Reed-Solomon-style FEC (fec.go) and
// detecting IDR frames from their leading NAL types.
package avdemux

// Codec distinguishes the NAL type numbering used for IDR detection.
type Codec int

const (
	CodecH264 Codec = iota
	CodecHEVC
)

// h264NALTypeIDR is the H.264 coded-slice-IDR NAL unit type (§4.7).
const h264NALTypeIDR = 5

// hevcIDRTypes are the three HEVC IDR/CRA NAL unit types (§4.7).
var hevcIDRTypes = map[byte]bool{19: true, 20: true, 21: true}

// SplitAnnexB splits an Annex-B byte stream on 3- or 4-byte start codes
// (00 00 01 / 00 00 00 01), returning each NAL unit's payload (start code
// stripped, trailing bytes up to the next start code or end of input).
func SplitAnnexB(data []byte) [][]byte {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil
	}
	units := make([][]byte, 0, len(starts))
	for i, s := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].offset
		}
		units = append(units, data[s.offset+s.length:end])
	}
	return units
}

type startCode struct {
	offset int
	length int
}

func findStartCodes(data []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			out = append(out, startCode{offset: i, length: 3})
			i += 2
			continue
		}
		if i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			out = append(out, startCode{offset: i, length: 4})
			i += 3
		}
	}
	return out
}

// nalType extracts the NAL unit type from a unit's first byte for the given
// codec: bits 0-4 for H.264, bits 1-6 for HEVC.
func nalType(unit []byte, codec Codec) byte {
	if len(unit) == 0 {
		return 0
	}
	if codec == CodecHEVC {
		return (unit[0] >> 1) & 0x3F
	}
	return unit[0] & 0x1F
}

// IsIDRUnit inspects the leading NAL unit of a frame's Annex-B data and
// reports whether it is an IDR (H.264 nal_type==5) or HEVC IDR/CRA
// (nal_type in {19,20,21}) unit (§4.7).
func IsIDRUnit(frameData []byte, codec Codec) bool {
	units := SplitAnnexB(frameData)
	if len(units) == 0 {
		return false
	}
	t := nalType(units[0], codec)
	if codec == CodecHEVC {
		return hevcIDRTypes[t]
	}
	return t == h264NALTypeIDR
}
