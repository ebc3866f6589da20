package rpcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// GmacSize is the length in bytes of the GMAC field in the RP packet header.
const GmacSize = 16

// ComputeGMAC authenticates data (header with its GMAC field zeroed, followed
// by payload) under an AES-GCM tag with no ciphertext: the tag is the sole
// output, matching the wire's GMAC-only packets and the GMAC field of
// payload-encrypted packets alike.
func ComputeGMAC(block cipher.Block, nonce []byte, data []byte) ([GmacSize]byte, error) {
	var tag [GmacSize]byte
	aead, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return tag, fmt.Errorf("new gcm: %w", err)
	}
	sealed := aead.Seal(nil, nonce, nil, data)
	if len(sealed) != GmacSize {
		return tag, fmt.Errorf("unexpected gmac length %d", len(sealed))
	}
	copy(tag[:], sealed)
	return tag, nil
}

// VerifyGMAC recomputes the tag over data and compares it against want in
// constant time (via cipher.NewGCM's own Open, which performs that
// comparison internally).
func VerifyGMAC(block cipher.Block, nonce []byte, data []byte, want [GmacSize]byte) error {
	aead, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return fmt.Errorf("new gcm: %w", err)
	}
	if _, err := aead.Open(nil, nonce, want[:], data); err != nil {
		return fmt.Errorf("gmac mismatch: %w", err)
	}
	return nil
}

// NewAESBlock is a thin wrapper over aes.NewCipher used throughout the
// package so callers never import crypto/aes directly.
func NewAESBlock(key []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	return block, nil
}

// SealGCM performs full AES-GCM authenticated encryption, used for the
// handshake's pre-stream messages that carry their own tag rather than the
// packet-header GMAC field.
func SealGCM(block cipher.Block, nonce, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

// OpenGCM is the inverse of SealGCM.
func OpenGCM(block cipher.Block, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return plaintext, nil
}
