// Package transport owns the single connected UDP socket to a console and
// multiplexes it into per-channel streams (§4.5, §6.2).
package transport

import (
	"encoding/binary"

	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// Channel identifies one of the RP datagram's four logical streams.
type Channel uint8

const (
	ChannelControl      Channel = 1
	ChannelVideo        Channel = 2
	ChannelAudio        Channel = 3
	ChannelStreamInfoAck Channel = 9
)

// Flags are the header's bit0..bit2 (§6.2).
type Flags uint8

const (
	FlagData       Flags = 1 << 0
	FlagAck        Flags = 1 << 1
	FlagRetransmit Flags = 1 << 2
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// channelIsEncrypted reports whether payloads inbound on channel are
// CFB-encrypted rather than plaintext-with-GMAC (§4.4). Only bits 0-2 of
// the flags byte are normative, so a receiver cannot carry this in the
// header itself; instead it follows from what each channel actually
// carries. Video/audio channels are always encrypted console media.
// Everything arriving on the control channel — protobuf commands, DATA_ACK,
// and heartbeat replies — is unencrypted+GMAC-only per the §4.4 table.
func channelIsEncrypted(channel Channel) bool {
	return channel == ChannelVideo || channel == ChannelAudio
}

// GmacSize is the width of the trailing authentication tag.
const GmacSize = 16

// HeaderSize is the fixed prefix length: channel(1) + flags(1) + tsn(4) +
// key_pos(8) + gmac(16) = 30 bytes (§6.2).
const HeaderSize = 1 + 1 + 4 + 8 + GmacSize

// Header is the decoded fixed prefix of every RP datagram.
type Header struct {
	Channel Channel
	Flags   Flags
	TSN     uint32
	KeyPos  uint64
	GMAC    [GmacSize]byte
}

// Encode writes the header (with GMAC left as given) into a fresh 30-byte
// buffer the caller may append payload bytes to.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Channel)
	buf[1] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[2:6], h.TSN)
	binary.BigEndian.PutUint64(buf[6:14], h.KeyPos)
	copy(buf[14:30], h.GMAC[:])
	return buf
}

// EncodeZeroGMAC writes the header with the GMAC field zeroed, for use as
// the additional-authenticated-data input before the real tag is computed.
func (h Header) EncodeZeroGMAC() []byte {
	buf := h.Encode()
	for i := 14; i < 30; i++ {
		buf[i] = 0
	}
	return buf
}

// DecodeHeader parses the fixed 30-byte prefix of a received datagram.
func DecodeHeader(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, rperrors.New(rperrors.KindTransport, rperrors.CodeDecodeError, "datagram shorter than header")
	}
	var h Header
	h.Channel = Channel(data[0])
	h.Flags = Flags(data[1])
	h.TSN = binary.BigEndian.Uint32(data[2:6])
	h.KeyPos = binary.BigEndian.Uint64(data[6:14])
	copy(h.GMAC[:], data[14:30])
	return h, data[HeaderSize:], nil
}
