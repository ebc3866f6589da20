package rpcrypto

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
)

// NonceSize is the AES-GCM nonce length used for every RP packet tag.
const NonceSize = 12

// StreamCipher implements the per-direction packet crypto described in the
// data model: a GCM key, a base nonce, and a monotonically advancing
// key_pos. Every packet computes its nonce from baseNonce XOR big-endian
// key_pos, optionally XORs the payload with a keystream addressed at the
// same key_pos, then authenticates header+payload with a GMAC tag. A
// StreamCipher owns exactly one direction (send or receive) of one Stream.
type StreamCipher struct {
	mu        sync.Mutex
	block     cipher.Block
	baseNonce [NonceSize]byte
	keyPos    uint64
}

// NewStreamCipher constructs a StreamCipher from a 16-byte AES-128 key and a
// 12-byte base nonce, both produced by the handshake's HKDF derivation.
func NewStreamCipher(key, baseNonce []byte) (*StreamCipher, error) {
	if len(baseNonce) != NonceSize {
		return nil, fmt.Errorf("base nonce must be %d bytes, got %d", NonceSize, len(baseNonce))
	}
	block, err := NewAESBlock(key)
	if err != nil {
		return nil, err
	}
	sc := &StreamCipher{block: block}
	copy(sc.baseNonce[:], baseNonce)
	return sc, nil
}

// KeyPos returns the current key_pos for this direction.
func (sc *StreamCipher) KeyPos() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.keyPos
}

// nonceAt returns baseNonce XOR big-endian keyPos, folded into the trailing
// 8 bytes of the 12-byte nonce (the leading 4 bytes carry no counter).
func (sc *StreamCipher) nonceAt(keyPos uint64) []byte {
	nonce := make([]byte, NonceSize)
	copy(nonce, sc.baseNonce[:])
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], keyPos)
	for i := 0; i < 8; i++ {
		nonce[NonceSize-8+i] ^= ctr[i]
	}
	return nonce
}

// Seal authenticates header (with its GMAC field already zeroed by the
// caller) and payload at the current key_pos, optionally encrypting payload
// via the keystream into a new slice (payload itself is not modified), then
// advances key_pos by advanceBy. It
// returns the (possibly encrypted) payload and the GMAC tag to place in the
// packet header.
func (sc *StreamCipher) Seal(header, payload []byte, advanceBy uint64, encryptPayload bool) (outPayload []byte, gmac [GmacSize]byte, err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	nonce := sc.nonceAt(sc.keyPos)

	outPayload = payload
	if encryptPayload && len(payload) > 0 {
		outPayload = XORKeystream(sc.block, nonce, sc.keyPos, payload)
	}

	data := append(append([]byte{}, header...), outPayload...)
	gmac, err = ComputeGMAC(sc.block, nonce, data)
	if err != nil {
		return nil, gmac, err
	}

	sc.keyPos += advanceBy
	return outPayload, gmac, nil
}

// Open verifies the GMAC over header (with its GMAC field zeroed) and
// payload at the given key_pos (which must equal this cipher's current
// key_pos — a gap is rejected per the key_pos-gap invariant), decrypts the
// payload if encryptPayload is set, and advances key_pos by advanceBy.
func (sc *StreamCipher) Open(header, payload []byte, gmac [GmacSize]byte, keyPos, advanceBy uint64, encryptPayload bool) ([]byte, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if keyPos != sc.keyPos {
		return nil, rperrors.Wrap(rperrors.KindTransport, rperrors.CodeKeyPosGap, "", fmt.Errorf("expected %d, got %d", sc.keyPos, keyPos))
	}

	nonce := sc.nonceAt(keyPos)
	data := append(append([]byte{}, header...), payload...)
	if err := VerifyGMAC(sc.block, nonce, data, gmac); err != nil {
		return nil, rperrors.Wrap(rperrors.KindTransport, rperrors.CodeGmacInvalid, "", err)
	}

	plaintext := payload
	if encryptPayload && len(payload) > 0 {
		plaintext = XORKeystream(sc.block, nonce, keyPos, payload)
	}

	sc.keyPos += advanceBy
	return plaintext, nil
}

// Advance_by values by packet type, normative per §4.4.
const (
	AdvanceFeedbackState = 28
	AdvanceCongestion    = 15
	AdvanceDataAck       = 29
)

// AdvanceForControl returns the advance_by for an opaque-payload control
// message (Protobuf, FeedbackHistory): the payload length.
func AdvanceForControl(payloadLen int) uint64 {
	return uint64(payloadLen)
}
