package rpcrypto_test

import (
	"testing"

	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXORKeystream_SeekMatchesSequential(t *testing.T) {
	block, err := rpcrypto.NewAESBlock(make([]byte, 16))
	require.NoError(t, err)
	nonce := make([]byte, rpcrypto.NonceSize)

	whole := make([]byte, 64)
	sequential := rpcrypto.XORKeystream(block, nonce, 0, whole)

	tailLen := 20
	offset := uint64(len(whole) - tailLen)
	tail := make([]byte, tailLen)
	seeked := rpcrypto.XORKeystream(block, nonce, offset, tail)

	assert.Equal(t, sequential[offset:], seeked)
}

func TestXORKeystream_RoundTrip(t *testing.T) {
	block, err := rpcrypto.NewAESBlock(make([]byte, 16))
	require.NoError(t, err)
	nonce := make([]byte, rpcrypto.NonceSize)

	plaintext := []byte("launchspec-json-payload-bytes")
	ciphertext := rpcrypto.XORKeystream(block, nonce, 42, plaintext)
	roundTrip := rpcrypto.XORKeystream(block, nonce, 42, ciphertext)

	assert.Equal(t, plaintext, roundTrip)
}
