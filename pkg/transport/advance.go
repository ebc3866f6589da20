package transport

import "github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"

// PacketKind selects the advance_by rule for a given message type (§4.4
// normative table). Protobuf control messages and FeedbackHistory advance
// by their payload length; FeedbackState, Congestion, and DATA_ACK use
// fixed widths.
type PacketKind int

const (
	KindControlProtobuf PacketKind = iota
	KindFeedbackState
	KindFeedbackHistory
	KindCongestion
	KindDataAck
)

// AdvanceBy returns the key_pos advance for a packet of the given kind and
// payload length.
func AdvanceBy(kind PacketKind, payloadLen int) uint64 {
	switch kind {
	case KindFeedbackState:
		return rpcrypto.AdvanceFeedbackState
	case KindCongestion:
		return rpcrypto.AdvanceCongestion
	case KindDataAck:
		return rpcrypto.AdvanceDataAck
	default: // control protobuf, feedback history: payload length
		return uint64(payloadLen)
	}
}
