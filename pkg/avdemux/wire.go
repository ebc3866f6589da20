package avdemux

import (
	"encoding/binary"

	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// FragmentHeaderSize is the fixed prefix transport.Demux's raw channel-2/3
// payloads carry ahead of shard data: frame_index(4) + fragment_index(2) +
// total_fragments(2) + fec_count(2), big-endian. Neither the wire layout
// nor a console capture for it is available to this gateway (§4.7 names the
// four identifying fields but not their byte packing), so this is this
// package's own framing, analogous to how pkg/registration and
// pkg/transport's handshake salts are deployment-supplied black boxes; here
// there's nothing to plug in, so a fixed layout is declared and documented
// instead.
const FragmentHeaderSize = 4 + 2 + 2 + 2

// ParseFragment decodes one raw channel payload into a Fragment ready for
// Demuxer.PushFragment.
func ParseFragment(raw []byte) (Fragment, error) {
	if len(raw) < FragmentHeaderSize {
		return Fragment{}, rperrors.New(rperrors.KindMedia, rperrors.CodeCorruptFrame, "fragment shorter than header")
	}
	return Fragment{
		FrameIndex:     binary.BigEndian.Uint32(raw[0:4]),
		FragmentIndex:  binary.BigEndian.Uint16(raw[4:6]),
		TotalFragments: binary.BigEndian.Uint16(raw[6:8]),
		FecCount:       binary.BigEndian.Uint16(raw[8:10]),
		Data:           raw[FragmentHeaderSize:],
	}, nil
}
