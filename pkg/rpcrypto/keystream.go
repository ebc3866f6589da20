package rpcrypto

import (
	"crypto/cipher"
	"encoding/binary"
)

// keystreamAt returns `length` bytes of a block-cipher keystream starting at
// byte `offset` of the infinite stream seeded by (block, nonce). key_pos
// selects this offset directly, per the StreamCipher invariant that key_pos
// both advances the nonce counter and addresses the CFB keystream.
//
// Implemented as AES-CTR with the counter folded from the byte offset so
// arbitrary positions are O(1) to reach, rather than requiring the caller to
// have produced every prior byte of true CFB feedback.
func keystreamAt(block cipher.Block, nonce []byte, offset uint64, length int) []byte {
	blockSize := block.BlockSize()
	counterStart := offset / uint64(blockSize)
	discard := int(offset % uint64(blockSize))

	iv := make([]byte, blockSize)
	copy(iv, nonce)
	addCounter(iv, counterStart)

	buf := make([]byte, discard+length)
	cipher.NewCTR(block, iv).XORKeyStream(buf, buf)
	return buf[discard:]
}

// addCounter adds n to the big-endian integer held in the trailing 8 bytes
// of iv, wrapping modulo 2^64; the preceding bytes are left unchanged.
func addCounter(iv []byte, n uint64) {
	if len(iv) < 8 {
		return
	}
	tail := iv[len(iv)-8:]
	carry := binary.BigEndian.Uint64(tail) + n
	binary.BigEndian.PutUint64(tail, carry)
}

// XORKeystream XORs src with `length` bytes of keystream starting at offset,
// returning a new slice. Used both for StreamCipher payload encryption and
// for the LaunchSpec session keystream in §6.5.
func XORKeystream(block cipher.Block, nonce []byte, offset uint64, src []byte) []byte {
	ks := keystreamAt(block, nonce, offset, len(src))
	out := make([]byte, len(src))
	for i := range src {
		out[i] = src[i] ^ ks[i]
	}
	return out
}
